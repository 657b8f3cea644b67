package bot

import (
	"sync"
	"time"

	"dcabot/internal/config"
	"dcabot/pkg/utils"
)

// AccountGuard - портфельный арбитр допуска новых позиций
//
// Функции:
// - Лимит одновременно открытых позиций
// - Лимит суммарного риска в процентах капитала
// - Дневной лимит количества сделок
// - Дневные замки по просадке и по прибыли (до следующих суток UTC)
//
// Единственное состояние, которое мутируют несколько движков одновременно.
// Проверка и регистрация допуска выполняются в одной критической секции:
// два движка не могут одновременно пройти проверку по устаревшей сумме.
type AccountGuard struct {
	mu sync.Mutex

	cfg config.RiskConfig

	// Открытые позиции: символ -> занятый риск в %
	openRisk map[string]float64

	// Дневное состояние (сбрасывается на границе суток UTC)
	day             time.Time
	dailyTradeCount int
	dayStartEquity  float64
	dailyPnl        float64
	drawdownLocked  bool
	profitLocked    bool
}

// GuardSnapshot - снимок состояния для API и уведомлений
type GuardSnapshot struct {
	OpenPositions   int                `json:"open_positions"`
	TotalRisk       float64            `json:"total_risk_percent"`
	RiskBySymbol    map[string]float64 `json:"risk_by_symbol"`
	DailyTradeCount int                `json:"daily_trade_count"`
	DayStartEquity  float64            `json:"day_start_equity"`
	DailyPnl        float64            `json:"daily_pnl"`
	DrawdownLocked  bool               `json:"drawdown_locked"`
	ProfitLocked    bool               `json:"profit_locked"`
}

// DenyReason - причина отказа в допуске
type DenyReason string

const (
	DenyNone           DenyReason = ""
	DenyDrawdownLock   DenyReason = "дневной замок по просадке"
	DenyProfitLock     DenyReason = "дневной замок по прибыли"
	DenyMaxPositions   DenyReason = "достигнут лимит открытых позиций"
	DenyRiskCap        DenyReason = "превышен суммарный риск-кап"
	DenyDailyTrades    DenyReason = "достигнут дневной лимит сделок"
)

// NewAccountGuard создаёт guard с заданными портфельными лимитами
func NewAccountGuard(cfg config.RiskConfig) *AccountGuard {
	return &AccountGuard{
		cfg:      cfg,
		openRisk: make(map[string]float64),
		day:      utils.GetDayStart(),
	}
}

// rollDayLocked сбрасывает дневное состояние на границе суток UTC.
// Вызывается под mu.
func (g *AccountGuard) rollDayLocked(now time.Time) {
	if utils.SameUTCDay(g.day, now) {
		return
	}
	g.day = utils.GetDayStartFrom(now)
	g.dailyTradeCount = 0
	g.dailyPnl = 0
	g.dayStartEquity = 0 // снимется при первой проверке equity нового дня
	g.drawdownLocked = false
	g.profitLocked = false
}

// Admit атомарно проверяет и регистрирует допуск новой позиции.
//
// При успехе позиция сразу учтена в openRisk и dailyTradeCount:
// проверка и регистрация - одна критическая секция.
func (g *AccountGuard) Admit(symbol string, riskPercent float64, now time.Time) (bool, DenyReason) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked(now)

	if g.drawdownLocked {
		return false, DenyDrawdownLock
	}
	if g.profitLocked {
		return false, DenyProfitLock
	}
	if len(g.openRisk) >= g.cfg.MaxOpenPositions {
		return false, DenyMaxPositions
	}
	if g.totalRiskLocked()+riskPercent > g.cfg.TotalRiskCapPercent {
		return false, DenyRiskCap
	}
	if g.cfg.EnableDailyTradesGuard && g.dailyTradeCount >= g.cfg.DailyTradesLimit {
		return false, DenyDailyTrades
	}

	g.openRisk[symbol] = riskPercent
	g.dailyTradeCount++
	return true, DenyNone
}

// Increase наращивает занятый риск открытой позиции (усреднение).
// Возвращает false, если прирост не помещается под риск-кап.
func (g *AccountGuard) Increase(symbol string, addRiskPercent float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.openRisk[symbol]
	if !ok {
		return false
	}
	if g.totalRiskLocked()+addRiskPercent > g.cfg.TotalRiskCapPercent {
		return false
	}
	g.openRisk[symbol] = current + addRiskPercent
	return true
}

// Decrease откатывает ранее одобренный Increase, когда ордер
// усреднения не исполнился: добавленного риска за ним нет,
// и он не должен занимать место в общем риск-капе.
func (g *AccountGuard) Decrease(symbol string, riskPercent float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.openRisk[symbol]
	if !ok {
		return
	}
	reduced := current - riskPercent
	if reduced < 0 {
		reduced = 0
	}
	g.openRisk[symbol] = reduced
}

// Restore регистрирует позицию, найденную на бирже при рестарте.
// Лимиты не проверяются: позиция уже существует, её надо вести,
// а не отклонять.
func (g *AccountGuard) Restore(symbol string, riskPercent float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openRisk[symbol] = riskPercent
}

// Release снимает позицию с учёта при возврате в flat
func (g *AccountGuard) Release(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.openRisk, symbol)
}

// RecordTradePnl учитывает реализованный результат завершённой сделки
// и взводит дневные замки при пересечении порогов.
func (g *AccountGuard) RecordTradePnl(pnl float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked(now)
	g.dailyPnl += pnl
	g.updateLocksLocked()
}

// CheckEquity снимает equity начала дня (при первом вызове за сутки)
// и пересчитывает дневные замки. Возвращает true, если торговля заблокирована.
func (g *AccountGuard) CheckEquity(equity float64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked(now)
	if g.dayStartEquity == 0 && equity > 0 {
		g.dayStartEquity = equity
	}
	g.updateLocksLocked()
	return g.drawdownLocked || g.profitLocked
}

// updateLocksLocked взводит замки про просадке/прибыли. Вызывается под mu.
// Взведённый замок держится до границы суток.
func (g *AccountGuard) updateLocksLocked() {
	if g.dayStartEquity <= 0 {
		return
	}
	pnlPct := g.dailyPnl / g.dayStartEquity * 100

	if g.cfg.EnableDailyDrawdownGuard && pnlPct <= -g.cfg.DailyDrawdownPercent {
		g.drawdownLocked = true
	}
	if g.cfg.EnableDailyProfitGuard && pnlPct >= g.cfg.DailyProfitPercent {
		g.profitLocked = true
	}
}

// totalRiskLocked суммирует занятый риск. Вызывается под mu.
func (g *AccountGuard) totalRiskLocked() float64 {
	total := 0.0
	for _, r := range g.openRisk {
		total += r
	}
	return total
}

// Snapshot возвращает копию состояния guard
func (g *AccountGuard) Snapshot() GuardSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	risk := make(map[string]float64, len(g.openRisk))
	for s, r := range g.openRisk {
		risk[s] = r
	}

	return GuardSnapshot{
		OpenPositions:   len(g.openRisk),
		TotalRisk:       g.totalRiskLocked(),
		RiskBySymbol:    risk,
		DailyTradeCount: g.dailyTradeCount,
		DayStartEquity:  g.dayStartEquity,
		DailyPnl:        g.dailyPnl,
		DrawdownLocked:  g.drawdownLocked,
		ProfitLocked:    g.profitLocked,
	}
}
