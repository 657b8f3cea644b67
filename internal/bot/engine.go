package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dcabot/internal/config"
	"dcabot/internal/exchange"
	"dcabot/internal/models"
	"dcabot/pkg/utils"
)

// TradeStore - долговременное хранилище завершённых сделок.
// Реализуется internal/repository.TradeRepository.
type TradeStore interface {
	SaveTrade(ctx context.Context, rec *models.TradeRecord) error
}

// SymbolEngine - движок жизненного цикла позиции по одному инструменту
//
// Архитектура:
// - Одна горутина на инструмент, тики обрабатываются строго последовательно
// - Position и ExitState принадлежат только этой горутине (конфайнмент)
// - Единственное разделяемое состояние - AccountGuard
// - Вход, усреднение, частичные и полные выходы идут через OrderExecutor
//
// Поток данных:
// WebSocket → EngineManager (fan-out по символу) → SymbolEngine.loop → CheckExit
type SymbolEngine struct {
	symbol string
	cfg    config.TradingConfig
	botCfg config.BotConfig

	venue    exchange.Venue
	exec     *OrderExecutor
	guard    *AccountGuard
	signals  SignalSource
	features FeatureView

	notifyCh chan<- *models.Notification
	trades   TradeStore
	log      *utils.Logger

	// Канал тиков принадлежит менеджеру и переживает перезапуски движка
	ticks <-chan *exchange.Tick

	// Состояние, конфайненное горутине движка
	pos        models.Position
	st         models.ExitState
	hedgeCount int
	currentSL  float64 // стоп на стороне биржи (двигается только в плюс)

	// Снимок для API, обновляется после каждого тика
	snapMu  sync.Mutex
	snapPos models.Position
	snapSt  models.ExitState
}

// NewSymbolEngine создаёт движок инструмента
func NewSymbolEngine(
	symbol string,
	cfg config.TradingConfig,
	botCfg config.BotConfig,
	venue exchange.Venue,
	exec *OrderExecutor,
	guard *AccountGuard,
	signals SignalSource,
	features FeatureView,
	ticks <-chan *exchange.Tick,
	notifyCh chan<- *models.Notification,
	trades TradeStore,
	log *utils.Logger,
) *SymbolEngine {
	if log == nil {
		log = utils.L()
	}
	e := &SymbolEngine{
		symbol:   symbol,
		cfg:      cfg,
		botCfg:   botCfg,
		venue:    venue,
		exec:     exec,
		guard:    guard,
		signals:  signals,
		features: features,
		ticks:    ticks,
		notifyCh: notifyCh,
		trades:   trades,
		log:      log.WithSymbol(symbol),
	}
	e.pos.Symbol = symbol
	e.st.Reset()
	return e
}

// Run восстанавливает позицию с биржи и входит в цикл обработки тиков.
// Блокируется до отмены контекста.
func (e *SymbolEngine) Run(ctx context.Context) error {
	if err := e.restore(ctx); err != nil {
		return fmt.Errorf("восстановление позиции %s: %w", e.symbol, err)
	}
	e.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-e.ticks:
			if !ok {
				return nil
			}
			e.handleTick(ctx, tick)
		}
	}
}

// handleTick обрабатывает один тик: решение, ордер, мутация состояния.
// Следующий тик не рассматривается, пока этот не обработан полностью.
func (e *SymbolEngine) handleTick(ctx context.Context, tick *exchange.Tick) {
	started := time.Now()
	defer func() {
		TickProcessingLatency.WithLabelValues(e.symbol).
			Observe(float64(time.Since(started).Microseconds()) / 1000)
	}()

	if tick.Price <= 0 {
		return
	}

	if e.pos.IsOpen() {
		e.managePosition(ctx, tick.Price, tick.Timestamp)
	} else {
		e.tryEnter(ctx, tick.Price, tick.Timestamp)
	}

	e.publishSnapshot()
}

// publishSnapshot копирует состояние под мьютекс для читателей из API
func (e *SymbolEngine) publishSnapshot() {
	e.snapMu.Lock()
	e.snapPos = e.pos
	e.snapSt = e.st
	e.snapMu.Unlock()
}

// ============================================================
// Вход
// ============================================================

// tryEnter запрашивает внешний источник сигналов и при разрешении
// guard открывает позицию.
func (e *SymbolEngine) tryEnter(ctx context.Context, price float64, now time.Time) {
	if e.signals == nil {
		return
	}

	side, reason, ok := e.signals.Evaluate(e.symbol, price)
	if !ok || side == models.SideNone {
		return
	}

	riskPct := e.cfg.InitialRiskPercent
	if e.cfg.EnableRiskCap && riskPct > e.cfg.MaxPositionRiskPercent {
		riskPct = e.cfg.MaxPositionRiskPercent
	}

	admitted, deny := e.guard.Admit(e.symbol, riskPct, now)
	if !admitted {
		RecordDenied(deny)
		return
	}

	qty, err := e.entryQty(ctx, price, riskPct)
	if err != nil || qty <= 0 {
		e.guard.Release(e.symbol)
		if err != nil {
			e.log.Warn("не удалось рассчитать объём входа", utils.Err(err))
		}
		return
	}

	result, err := e.exec.MarketOrder(ctx, e.symbol, side, qty, price, false, "entry")
	if err != nil || result.Noop {
		e.guard.Release(e.symbol)
		if err != nil {
			e.log.Error("вход не исполнен", utils.Err(err))
			e.notify(models.NotificationTypeError, models.SeverityError,
				fmt.Sprintf("❌ %s: вход не исполнен: %v", e.symbol, err))
		}
		return
	}

	e.pos.ApplyFill(side, result.FilledQty, result.AvgPrice, now)
	e.st.Reset()
	e.st.Stage = models.StageOpen
	e.hedgeCount = 0
	e.currentSL = 0

	e.armInitialStop(ctx, result.AvgPrice)

	e.log.Info("позиция открыта",
		utils.Side(string(side)),
		utils.Qty(result.FilledQty),
		utils.Price(result.AvgPrice),
		utils.String("reason", reason))
	e.notify(models.NotificationTypeEntry, models.SeverityInfo,
		fmt.Sprintf("📈 %s: вход %s %.6g @ %.6g (%s)",
			e.symbol, side, result.FilledQty, result.AvgPrice, reason))
}

// entryQty рассчитывает объём первого входа из equity, риска и плеча
func (e *SymbolEngine) entryQty(ctx context.Context, price, riskPct float64) (float64, error) {
	equity, err := e.venue.GetWalletBalance(ctx)
	if err != nil {
		return 0, err
	}
	if equity <= 0 || price <= 0 {
		return 0, nil
	}

	notional := equity * riskPct / 100 * float64(e.cfg.Leverage)
	return notional / price, nil
}

// armInitialStop выставляет жёсткий стоп на стороне биржи
func (e *SymbolEngine) armInitialStop(ctx context.Context, avgPrice float64) {
	if e.cfg.HardSLPercent <= 0 {
		return
	}
	stop := utils.SoftStopPrice(avgPrice, e.cfg.HardSLPercent, e.pos.Side.IsLong())
	e.setStop(ctx, stop, avgPrice)
}

// ============================================================
// Ведение открытой позиции
// ============================================================

// managePosition выполняет процедуру выхода и исполняет её сигнал.
// При отсутствии сигнала подтягивает биржевой стоп за трейлингом.
func (e *SymbolEngine) managePosition(ctx context.Context, price float64, now time.Time) {
	d := CheckExit(&e.pos, &e.st, price, now, e.cfg, e.features)
	RecordSignal(e.symbol, d.Signal)

	switch d.Signal {
	case SignalHardSL, SignalTimeout:
		e.closePosition(ctx, price, d)

	case SignalSoftSL, SignalTrail:
		if e.cfg.EnableHedging {
			hedged, err := e.maybeHedge(ctx, price, now)
			if err != nil {
				e.log.Error("хедж не выполнен, закрываем позицию", utils.Err(err))
			}
			if hedged {
				return
			}
		}
		e.closePosition(ctx, price, d)

	case SignalTP:
		e.closePosition(ctx, price, d)

	case SignalTP1:
		e.handleTP1(ctx, price, d)

	case SignalTP2:
		e.handleTP2(ctx, price, d)

	case SignalDCA:
		e.handleDCA(ctx, price, now, d)

	default:
		e.ratchetStop(ctx, price)
	}
}

// handleTP1 частично закрывает позицию и переводит стоп в безубыток
func (e *SymbolEngine) handleTP1(ctx context.Context, price float64, d Decision) {
	filled, ok := e.partialClose(ctx, e.cfg.TP1CloseRatio, price, "tp1")
	if !ok {
		return
	}

	e.st.TP1Done = true
	e.st.Stage = models.StagePostTP1

	// Стоп в безубыток с буфером MinProfitToBE
	be := e.pos.AvgPrice * (1 + e.cfg.MinProfitToBE/100)
	if !e.pos.Side.IsLong() {
		be = e.pos.AvgPrice * (1 - e.cfg.MinProfitToBE/100)
	}
	e.setStop(ctx, be, price)

	e.log.Info("TP1 исполнен", utils.Qty(filled), utils.Price(price))
	e.notify(models.NotificationTypeTP1, models.SeverityInfo,
		fmt.Sprintf("✅ %s: TP1, закрыто %.6g @ %.6g (%s)", e.symbol, filled, price, d.Reason))
}

// handleTP2 закрывает вторую часть позиции
func (e *SymbolEngine) handleTP2(ctx context.Context, price float64, d Decision) {
	filled, ok := e.partialClose(ctx, e.cfg.TP2CloseRatio, price, "tp2")
	if !ok {
		return
	}

	e.st.TP2Done = true
	e.st.Stage = models.StagePostTP2

	e.log.Info("TP2 исполнен", utils.Qty(filled), utils.Price(price))
	e.notify(models.NotificationTypeTP2, models.SeverityInfo,
		fmt.Sprintf("✅ %s: TP2, закрыто %.6g @ %.6g (%s)", e.symbol, filled, price, d.Reason))
}

// handleDCA исполняет усреднение: объём растёт с уровнем,
// прирост риска регистрируется в guard до отправки ордера.
func (e *SymbolEngine) handleDCA(ctx context.Context, price float64, now time.Time, d Decision) {
	level := e.pos.DCACount

	riskPct := e.cfg.InitialRiskPercent
	for i := 0; i < level+1; i++ {
		riskPct *= e.cfg.DCARiskMultiplier
	}

	if !e.guard.Increase(e.symbol, riskPct) {
		RecordDenied(DenyRiskCap)
		return
	}

	qty, err := e.entryQty(ctx, price, riskPct)
	if err != nil || qty <= 0 {
		// Откат одобренного риска: без исполнения за ним нет позиции,
		// следующий тик переоценит попытку с чистым учётом
		e.guard.Decrease(e.symbol, riskPct)
		if err != nil {
			e.log.Warn("не удалось рассчитать объём усреднения", utils.Err(err))
		}
		return
	}

	result, err := e.exec.MarketOrder(ctx, e.symbol, e.pos.Side, qty, price, false, fmt.Sprintf("dca%d", level+1))
	if err != nil || result.Noop {
		e.guard.Decrease(e.symbol, riskPct)
		if err != nil {
			e.log.Error("усреднение не исполнено", utils.Err(err))
		}
		return
	}

	// Уровень растёт только после подтверждённого исполнения
	e.pos.ApplyFill(e.pos.Side, result.FilledQty, result.AvgPrice, now)
	e.pos.DCACount++
	e.st.LastDCAPrice = result.AvgPrice
	e.st.LastDCATime = now

	DCAFillsTotal.WithLabelValues(e.symbol).Inc()
	e.log.Info("усреднение исполнено",
		utils.Int("level", e.pos.DCACount),
		utils.Qty(result.FilledQty),
		utils.Price(result.AvgPrice))
	e.notify(models.NotificationTypeDCA, models.SeverityInfo,
		fmt.Sprintf("➕ %s: усреднение #%d, %.6g @ %.6g, средняя %.6g (%s)",
			e.symbol, e.pos.DCACount, result.FilledQty, result.AvgPrice, e.pos.AvgPrice, d.Reason))

	// Средняя цена сместилась - пересчитываем жёсткий стоп
	e.armInitialStop(ctx, e.pos.AvgPrice)
}

// partialClose закрывает долю позиции reduce-only ордером
// и аккумулирует реализованный PNL в ledger.
func (e *SymbolEngine) partialClose(ctx context.Context, ratio, price float64, purpose string) (float64, bool) {
	if ratio <= 0 || ratio > 1 {
		return 0, false
	}

	side := e.pos.Side
	result, err := e.exec.MarketOrder(ctx, e.symbol, side.Opposite(), e.pos.Qty*ratio, price, true, purpose)
	if err != nil {
		e.log.Error("частичное закрытие не исполнено", utils.Err(err))
		return 0, false
	}
	if result.Noop {
		return 0, false
	}

	pnl := utils.CalculatePNL(string(side), e.pos.AvgPrice, result.AvgPrice, result.FilledQty)
	e.pos.RealizedPnl += pnl
	e.pos.ReduceQty(result.FilledQty)

	// Биржа могла закрыть позицию целиком (остаток меньше шага лота)
	if !e.pos.IsOpen() {
		e.finishTrade(ctx, side, result.AvgPrice, Decision{SignalTP, "остаток закрыт целиком"})
	}

	return result.FilledQty, true
}

// closePosition полностью закрывает позицию и завершает сделку
func (e *SymbolEngine) closePosition(ctx context.Context, price float64, d Decision) {
	side := e.pos.Side
	result, err := e.exec.MarketOrder(ctx, e.symbol, side.Opposite(), e.pos.Qty, price, true, "close")
	if err != nil {
		e.log.Error("закрытие не исполнено", utils.Err(err), utils.Signal(string(d.Signal)))
		e.notify(models.NotificationTypeError, models.SeverityError,
			fmt.Sprintf("❌ %s: закрытие не исполнено (%s): %v", e.symbol, d.Signal, err))
		return
	}

	fillPrice := result.AvgPrice
	if fillPrice <= 0 {
		fillPrice = price
	}
	pnl := utils.CalculatePNL(string(side), e.pos.AvgPrice, fillPrice, e.pos.Qty)
	e.pos.RealizedPnl += pnl
	e.pos.ReduceQty(e.pos.Qty)

	e.finishTrade(ctx, side, fillPrice, d)
}

// finishTrade завершает сделку: запись в хранилище, учёт в guard,
// уведомление, сброс состояния.
func (e *SymbolEngine) finishTrade(ctx context.Context, side models.Side, fillPrice float64, d Decision) {
	totalPnl := e.pos.RealizedPnl
	now := time.Now()

	rec := &models.TradeRecord{
		Symbol:    e.symbol,
		Side:      string(side),
		Qty:       e.pos.ClosedQty,
		Price:     fillPrice,
		AvgEntry:  e.pos.AvgPrice,
		Pnl:       totalPnl,
		Reason:    string(d.Signal),
		DCACount:  e.pos.DCACount,
		CreatedAt: now,
	}
	if e.trades != nil {
		if err := e.trades.SaveTrade(ctx, rec); err != nil {
			e.log.Warn("сделка не сохранена", utils.Err(err))
		}
	}

	e.guard.Release(e.symbol)
	e.guard.RecordTradePnl(totalPnl, now)
	RecordTrade(e.symbol, string(d.Signal), totalPnl)

	severity := models.SeverityInfo
	notifType := models.NotificationTypeClose
	emoji := "🏁"
	if d.Signal == SignalHardSL || d.Signal == SignalSoftSL {
		severity = models.SeverityWarn
		notifType = models.NotificationTypeSL
		emoji = "🚫"
	}
	e.notify(notifType, severity,
		fmt.Sprintf("%s %s: позиция закрыта (%s), PNL %.2f USDT. %s",
			emoji, e.symbol, d.Signal, totalPnl, d.Reason))

	e.log.Info("сделка завершена",
		utils.Signal(string(d.Signal)),
		utils.PNL(totalPnl))

	e.pos.Reset()
	e.st.Reset()
	e.hedgeCount = 0
	e.currentSL = 0
}

// ============================================================
// Ведение стопа на стороне биржи
// ============================================================

// ratchetStop подтягивает биржевой стоп за трейлингом.
// Стоп двигается только в выгодную сторону и зажимается вплотную
// к текущей цене, чтобы биржа его приняла.
func (e *SymbolEngine) ratchetStop(ctx context.Context, price float64) {
	if e.st.TrailPrice <= 0 {
		return
	}

	candidate := e.st.TrailPrice
	if e.pos.Side.IsLong() {
		if e.currentSL > 0 && candidate <= e.currentSL {
			return
		}
	} else {
		if e.currentSL > 0 && candidate >= e.currentSL {
			return
		}
	}

	e.setStop(ctx, candidate, price)
}

// setStop выставляет стоп, зажимая его рядом с текущей ценой
func (e *SymbolEngine) setStop(ctx context.Context, stop, price float64) {
	clamped := utils.ClampStop(stop, price, e.pos.Side.IsLong())
	if clamped <= 0 {
		return
	}
	if err := e.exec.SetStopLoss(ctx, e.symbol, clamped); err != nil {
		e.log.Warn("стоп не выставлен", utils.Err(err), utils.Price(clamped))
		return
	}
	e.currentSL = clamped
}

// ============================================================
// Уведомления
// ============================================================

func (e *SymbolEngine) notify(notifType, severity, message string) {
	tryEnqueueNotification(e.notifyCh, &models.Notification{
		Timestamp: time.Now(),
		Type:      notifType,
		Severity:  severity,
		Symbol:    e.symbol,
		Message:   message,
	})
}

// Position возвращает копию текущей позиции (для API)
func (e *SymbolEngine) Position() models.Position {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.snapPos
}

// ExitStateSnapshot возвращает копию состояния выхода (для API)
func (e *SymbolEngine) ExitStateSnapshot() models.ExitState {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.snapSt
}
