package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dcabot/internal/config"
	"dcabot/internal/exchange"
	"dcabot/internal/models"
	"dcabot/pkg/utils"
)

// manager.go - супервизор движков по инструментам
//
// Назначение:
// EngineManager владеет набором SymbolEngine: раздаёт тики по
// буферизованным каналам инструментов, перезапускает упавшие движки
// с экспоненциальным бэкоффом и периодически сверяет equity с
// дневными лимитами guard.
//
// Каналы тиков принадлежат менеджеру и переживают перезапуски движка:
// подписка WebSocket оформляется один раз на инструмент.

const (
	tickBufferSize      = 256
	restartBackoffBase  = 2 * time.Second
	restartBackoffMax   = 64 * time.Second
	equityCheckInterval = time.Minute
	guardGaugesInterval = 15 * time.Second
)

// EngineManager управляет жизненным циклом движков инструментов
type EngineManager struct {
	cfg   *config.Config
	venue exchange.Venue
	exec  *OrderExecutor
	guard *AccountGuard

	signals  SignalSource
	features func(symbol string) FeatureView // nil допустим

	notifyCh chan *models.Notification
	trades   TradeStore
	log      *utils.Logger

	mu      sync.RWMutex
	engines map[string]*SymbolEngine
	ticks   map[string]chan *exchange.Tick

	lockNotified struct {
		drawdown bool
		profit   bool
	}
}

// NewEngineManager создаёт менеджер для символов из конфигурации
func NewEngineManager(
	cfg *config.Config,
	venue exchange.Venue,
	exec *OrderExecutor,
	guard *AccountGuard,
	signals SignalSource,
	features func(symbol string) FeatureView,
	notifyCh chan *models.Notification,
	trades TradeStore,
	log *utils.Logger,
) *EngineManager {
	if log == nil {
		log = utils.L()
	}
	return &EngineManager{
		cfg:      cfg,
		venue:    venue,
		exec:     exec,
		guard:    guard,
		signals:  signals,
		features: features,
		notifyCh: notifyCh,
		trades:   trades,
		log:      log.WithComponent("engine-manager"),
		engines:  make(map[string]*SymbolEngine),
		ticks:    make(map[string]chan *exchange.Tick),
	}
}

// Run подписывается на потоки тиков и запускает супервизоры движков.
// Блокируется до отмены контекста.
func (m *EngineManager) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, symbol := range m.cfg.Bybit.Symbols {
		ch := make(chan *exchange.Tick, tickBufferSize)
		m.mu.Lock()
		m.ticks[symbol] = ch
		m.mu.Unlock()

		sym := symbol
		if err := m.venue.SubscribeTrades(sym, func(t *exchange.Tick) {
			m.offerTick(ch, t)
		}); err != nil {
			return fmt.Errorf("подписка на тики %s: %w", sym, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.supervise(ctx, sym, ch)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.watchAccount(ctx)
	}()

	m.log.Info("менеджер запущен", utils.Int("symbols", len(m.cfg.Bybit.Symbols)))
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// offerTick кладёт тик в буфер инструмента без блокировки.
// При переполнении тик отбрасывается: для принятия решений важен
// актуальный хвост потока, а не полнота.
func (m *EngineManager) offerTick(ch chan *exchange.Tick, t *exchange.Tick) {
	select {
	case ch <- t:
	default:
		RecordBufferOverflow("tick")
	}
}

// supervise перезапускает движок инструмента после паники или ошибки
// с бэкоффом min(2s * 2^n, 64s). Удачный запуск сбрасывает счётчик.
func (m *EngineManager) supervise(ctx context.Context, symbol string, ticks <-chan *exchange.Tick) {
	restarts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		cfg := m.cfg.Resolve(symbol)
		engine := NewSymbolEngine(
			symbol, cfg, m.cfg.Bot,
			m.venue, m.exec, m.guard,
			m.signals, m.featureView(symbol),
			ticks, m.notifyCh, m.trades, m.log,
		)

		m.mu.Lock()
		m.engines[symbol] = engine
		m.mu.Unlock()

		started := time.Now()
		err := m.runEngine(ctx, engine)
		if ctx.Err() != nil {
			return
		}

		// Достаточно долгая сессия означает, что прошлый сбой изжит
		if time.Since(started) > time.Minute {
			restarts = 0
		}

		backoff := restartBackoffBase << uint(restarts)
		if backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
		restarts++

		EngineRestarts.WithLabelValues(symbol).Inc()
		m.log.Error("движок остановился, перезапуск",
			utils.Symbol(symbol),
			utils.Err(err),
			utils.String("backoff", backoff.String()))
		tryEnqueueNotification(m.notifyCh, &models.Notification{
			Timestamp: time.Now(),
			Type:      models.NotificationTypeRestart,
			Severity:  models.SeverityError,
			Symbol:    symbol,
			Message:   fmt.Sprintf("♻️ %s: движок перезапущен (#%d): %v", symbol, restarts, err),
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// runEngine запускает движок, перехватывая панику горутины
func (m *EngineManager) runEngine(ctx context.Context, engine *SymbolEngine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника движка: %v", r)
		}
	}()
	return engine.Run(ctx)
}

// watchAccount периодически сверяет equity с дневными лимитами
// и публикует метрики guard.
func (m *EngineManager) watchAccount(ctx context.Context) {
	equityTicker := time.NewTicker(equityCheckInterval)
	gaugesTicker := time.NewTicker(guardGaugesInterval)
	defer equityTicker.Stop()
	defer gaugesTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gaugesTicker.C:
			UpdateGuardGauges(m.guard.Snapshot())
		case <-equityTicker.C:
			m.checkEquity(ctx)
		}
	}
}

// checkEquity запрашивает баланс и уведомляет о взведении дневных замков
func (m *EngineManager) checkEquity(ctx context.Context) {
	equity, err := m.venue.GetWalletBalance(ctx)
	if err != nil {
		m.log.Warn("не удалось получить баланс", utils.Err(err))
		return
	}

	m.guard.CheckEquity(equity, time.Now())
	snap := m.guard.Snapshot()

	pnlPct := 0.0
	if snap.DayStartEquity > 0 {
		pnlPct = snap.DailyPnl / snap.DayStartEquity * 100
	}

	if snap.DrawdownLocked && !m.lockNotified.drawdown {
		m.lockNotified.drawdown = true
		m.notifyLock(fmt.Sprintf(
			"🚫 Дневной лимит просадки достигнут (%.2f%%). Новые входы заблокированы до конца суток UTC.",
			pnlPct))
	}
	if snap.ProfitLocked && !m.lockNotified.profit {
		m.lockNotified.profit = true
		m.notifyLock(fmt.Sprintf(
			"🎯 Дневная цель по прибыли достигнута (%.2f%%). Новые входы остановлены до конца суток UTC.",
			pnlPct))
	}
	if !snap.DrawdownLocked {
		m.lockNotified.drawdown = false
	}
	if !snap.ProfitLocked {
		m.lockNotified.profit = false
	}
}

func (m *EngineManager) notifyLock(message string) {
	m.log.Warn(message)
	tryEnqueueNotification(m.notifyCh, &models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeLock,
		Severity:  models.SeverityWarn,
		Message:   message,
	})
}

// featureView возвращает источник индикаторов для символа (может быть nil)
func (m *EngineManager) featureView(symbol string) FeatureView {
	if m.features == nil {
		return nil
	}
	return m.features(symbol)
}

// Engine возвращает движок инструмента (для API)
func (m *EngineManager) Engine(symbol string) (*SymbolEngine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.engines[symbol]
	return e, ok
}

// Positions возвращает снимки позиций всех движков (для API)
func (m *EngineManager) Positions() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Position, 0, len(m.engines))
	for _, e := range m.engines {
		out = append(out, e.Position())
	}
	return out
}

// PositionStatus - позиция вместе с состоянием выхода
type PositionStatus struct {
	Symbol   string           `json:"symbol"`
	Position models.Position  `json:"position"`
	Exit     models.ExitState `json:"exit"`
}

// StatusSnapshots возвращает позиции и состояния выхода всех движков (для API)
func (m *EngineManager) StatusSnapshots() []PositionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PositionStatus, 0, len(m.engines))
	for _, e := range m.engines {
		out = append(out, PositionStatus{
			Symbol:   e.symbol,
			Position: e.Position(),
			Exit:     e.ExitStateSnapshot(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
