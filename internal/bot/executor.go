package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dcabot/internal/config"
	"dcabot/internal/exchange"
	"dcabot/internal/models"
	"dcabot/pkg/ratelimit"
	"dcabot/pkg/retry"
	"dcabot/pkg/utils"
)

// OrderExecutor - дисциплина исполнения ордеров
//
// Каждый вызов биржи оборачивается единообразно:
// - Идемпотентность: клиентский orderLinkId вида {symbol}-{purpose}-{unixms};
//   ответ "duplicate" трактуется как успешный no-op
// - Классифицированный retry с exponential backoff (только транзиентные ошибки)
// - Откат объёма при отказе "max. limit" с повторной квантизацией
// - Ожидание исполнения с ограниченным по времени поллингом
// - Квантизация количества по шагу лота (кэш шагов по символам)
// - Token bucket rate limiter на все REST вызовы
type OrderExecutor struct {
	venue   exchange.Venue
	cfg     config.BotConfig
	limiter *ratelimit.RateLimiter
	log     *utils.Logger
	dryRun  bool

	// Кэш лимитов инструментов: symbol -> *exchange.InstrumentStep
	stepCache sync.Map
}

// ExecResult - результат исполнения рыночного ордера
type ExecResult struct {
	OrderLinkID string
	FilledQty   float64
	AvgPrice    float64
	Duplicate   bool // ордер уже был принят биржей (повтор после сбоя)
	Noop        bool // исполнять было нечего (qty=0 или позиция уже закрыта)
}

// NewOrderExecutor создаёт исполнитель поверх клиента биржи
func NewOrderExecutor(venue exchange.Venue, cfg config.BotConfig, dryRun bool, log *utils.Logger) *OrderExecutor {
	if log == nil {
		log = utils.L()
	}
	return &OrderExecutor{
		venue:   venue,
		cfg:     cfg,
		limiter: ratelimit.NewRateLimiter(cfg.RestRate, cfg.RestBurst),
		log:     log.WithComponent("executor"),
		dryRun:  dryRun,
	}
}

// GenLinkID генерирует клиентский идентификатор ордера.
// Детерминированная схема {symbol}-{purpose}-{unixms} позволяет бирже
// распознать повторную отправку после неоднозначного сетевого сбоя.
func (oe *OrderExecutor) GenLinkID(symbol, purpose string) string {
	return fmt.Sprintf("%s-%s-%d", symbol, purpose, utils.UnixMillis())
}

// retryConfig собирает конфигурацию backoff из настроек движка
func (oe *OrderExecutor) retryConfig() retry.Config {
	cfg := retry.NetworkConfig()
	cfg.MaxRetries = oe.cfg.MaxRetries
	if oe.cfg.RetryBackoff > 0 {
		cfg.InitialDelay = oe.cfg.RetryBackoff
	}
	cfg.RetryIf = exchange.IsRetryable
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		oe.log.Warn("повтор запроса к бирже",
			utils.Int("attempt", attempt),
			utils.String("delay", delay.String()),
			utils.Err(err))
	}
	return cfg
}

// Step возвращает лимиты инструмента (кэшируются на всё время работы)
func (oe *OrderExecutor) Step(ctx context.Context, symbol string) (*exchange.InstrumentStep, error) {
	if cached, ok := oe.stepCache.Load(symbol); ok {
		return cached.(*exchange.InstrumentStep), nil
	}

	if err := oe.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	step, err := retry.DoWithResult(ctx, func() (*exchange.InstrumentStep, error) {
		return oe.venue.GetInstrumentStep(ctx, symbol)
	}, oe.retryConfig())
	if err != nil {
		return nil, fmt.Errorf("лимиты инструмента %s: %w", symbol, err)
	}

	oe.stepCache.Store(symbol, step)
	return step, nil
}

// SnapQty квантизирует количество по шагу лота инструмента
func (oe *OrderExecutor) SnapQty(ctx context.Context, symbol string, qty float64) (float64, error) {
	step, err := oe.Step(ctx, symbol)
	if err != nil {
		return 0, err
	}
	snapped := utils.SnapQty(qty, step.QtyStep)
	if snapped < step.MinOrderQty {
		return 0, nil
	}
	return snapped, nil
}

// MarketOrder размещает рыночный ордер с полной дисциплиной исполнения.
//
// refPrice - текущая цена, используется для синтетического результата
// в dry-run и как fallback, когда поллинг исполнения не успел подтвердиться.
func (oe *OrderExecutor) MarketOrder(ctx context.Context, symbol string, side models.Side, qty, refPrice float64, reduceOnly bool, purpose string) (*ExecResult, error) {
	snapped, err := oe.SnapQty(ctx, symbol, qty)
	if err != nil {
		return nil, err
	}
	if snapped <= 0 {
		return &ExecResult{Noop: true}, nil
	}

	linkID := oe.GenLinkID(symbol, purpose)

	if oe.dryRun {
		oe.log.Info("dry-run: ордер не отправлен",
			utils.Symbol(symbol),
			utils.Side(string(side)),
			utils.Qty(snapped),
			utils.String("purpose", purpose))
		return &ExecResult{OrderLinkID: linkID, FilledQty: snapped, AvgPrice: refPrice}, nil
	}

	started := time.Now()
	result, err := oe.placeWithSizeFallback(ctx, symbol, side, snapped, reduceOnly, linkID)
	RecordOrderLatency(symbol, string(side), float64(time.Since(started).Milliseconds()))
	if err != nil {
		return nil, err
	}
	if result.Noop {
		return result, nil
	}

	oe.awaitFill(ctx, symbol, result, refPrice)
	return result, nil
}

// placeWithSizeFallback размещает ордер, откатывая объём при отказе
// "max. limit". orderLinkId сохраняется между попытками: если предыдущая
// отправка всё же прошла, биржа ответит duplicate.
func (oe *OrderExecutor) placeWithSizeFallback(ctx context.Context, symbol string, side models.Side, qty float64, reduceOnly bool, linkID string) (*ExecResult, error) {
	step, err := oe.Step(ctx, symbol)
	if err != nil {
		return nil, err
	}

	for qty > 0 {
		if err := oe.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attemptQty := qty
		ack, err := retry.DoWithResult(ctx, func() (*exchange.OrderAck, error) {
			return oe.venue.PlaceOrder(ctx, &exchange.OrderRequest{
				Symbol:      symbol,
				Side:        string(side),
				Qty:         attemptQty,
				ReduceOnly:  reduceOnly,
				OrderLinkID: linkID,
			})
		}, oe.retryConfig())

		if err == nil {
			return &ExecResult{OrderLinkID: ack.OrderLinkID, FilledQty: attemptQty}, nil
		}

		if exchange.IsDuplicate(err) {
			oe.log.Info("ордер уже принят биржей, повтор пропущен",
				utils.Symbol(symbol), utils.OrderID(linkID))
			return &ExecResult{OrderLinkID: linkID, FilledQty: attemptQty, Duplicate: true}, nil
		}

		if reduceOnly && exchange.IsReduceOnlyNoop(err) {
			oe.log.Info("закрывать нечего, позиция уже плоская", utils.Symbol(symbol))
			return &ExecResult{OrderLinkID: linkID, Noop: true}, nil
		}

		if exchange.IsMaxOrderSize(err) {
			OrderRetries.WithLabelValues(symbol).Inc()
			reduced := utils.SnapQty(qty*oe.cfg.QtyReduceRatio, step.QtyStep)
			oe.log.Warn("объём превышает лимит биржи, уменьшаем",
				utils.Symbol(symbol),
				utils.Qty(qty),
				utils.Float64("reduced", reduced))
			if reduced >= qty || reduced < step.MinOrderQty {
				return nil, fmt.Errorf("объём не удалось уместить в лимит биржи: %w", err)
			}
			qty = reduced
			continue
		}

		return nil, fmt.Errorf("размещение ордера %s: %w", symbol, err)
	}

	return &ExecResult{Noop: true}, nil
}

// awaitFill поллит состояние ордера до терминального статуса или таймаута.
// Таймаут не фатален: ledger должен отразить предполагаемое исполнение,
// поэтому результат заполняется refPrice и запрошенным объёмом.
func (oe *OrderExecutor) awaitFill(ctx context.Context, symbol string, result *ExecResult, refPrice float64) {
	deadline := time.Now().Add(oe.cfg.OrderTimeout)
	interval := 200 * time.Millisecond

poll:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break poll
		case <-time.After(interval):
		}

		if err := oe.limiter.Wait(ctx); err != nil {
			break poll
		}

		status, err := oe.venue.GetOrder(ctx, symbol, result.OrderLinkID)
		if err != nil {
			continue
		}
		if status.IsTerminal() {
			if status.FilledQty > 0 {
				result.FilledQty = status.FilledQty
			}
			if status.AvgFillPrice > 0 {
				result.AvgPrice = status.AvgFillPrice
			}
			if result.AvgPrice == 0 {
				result.AvgPrice = refPrice
			}
			return
		}
	}

	// Подтверждение не получено: считаем ордер исполненным по опорной цене
	oe.log.Warn("исполнение не подтвердилось за таймаут, принимаем по опорной цене",
		utils.Symbol(symbol),
		utils.OrderID(result.OrderLinkID))
	if result.AvgPrice == 0 {
		result.AvgPrice = refPrice
	}
}

// CancelOrder отменяет активный ордер с retry
func (oe *OrderExecutor) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if oe.dryRun {
		return nil
	}
	if err := oe.limiter.Wait(ctx); err != nil {
		return err
	}
	return retry.Do(ctx, func() error {
		return oe.venue.CancelOrder(ctx, symbol, orderID)
	}, oe.retryConfig())
}

// SetStopLoss выставляет стоп-лосс на стороне биржи
func (oe *OrderExecutor) SetStopLoss(ctx context.Context, symbol string, stopPrice float64) error {
	if oe.dryRun {
		return nil
	}
	if err := oe.limiter.Wait(ctx); err != nil {
		return err
	}
	return retry.Do(ctx, func() error {
		return oe.venue.SetTradingStop(ctx, symbol, stopPrice)
	}, oe.retryConfig())
}
