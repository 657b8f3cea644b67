package models

import "time"

// position.go - позиция по инструменту и состояние логики выхода
//
// Позиция и ExitState принадлежат движку символа и мутируются только
// его горутиной. Никаких блокировок внутри - конфайнмент по горутине.

// Side - направление позиции
type Side string

const (
	SideNone Side = ""     // нет позиции
	SideBuy  Side = "Buy"  // лонг
	SideSell Side = "Sell" // шорт
)

// Opposite возвращает противоположное направление.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}

// IsLong сообщает, лонг ли это.
func (s Side) IsLong() bool { return s == SideBuy }

// Этапы жизненного цикла выхода из позиции
const (
	StageFlat    = "FLAT"     // позиции нет
	StageOpen    = "OPEN"     // позиция открыта, TP1 не сработал
	StagePostTP1 = "POST_TP1" // TP1 исполнен, трейлинг взведён
	StagePostTP2 = "POST_TP2" // TP2 исполнен, остаток ведётся трейлингом
)

// Position - агрегированная позиция по одному инструменту.
//
// Инвариант: Qty == 0 тогда и только тогда, когда Side == SideNone.
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Qty           float64   `json:"qty"`
	AvgPrice      float64   `json:"avg_price"`
	EntryNotional float64   `json:"entry_notional"` // суммарный нотионал входов
	ClosedQty     float64   `json:"closed_qty"`     // фактически закрытый объём за цикл
	RealizedPnl   float64   `json:"realized_pnl"`   // накоплено частичными закрытиями
	DCACount      int       `json:"dca_count"`      // число исполненных усреднений
	OpenTime      time.Time `json:"open_time"`
}

// IsOpen сообщает, открыта ли позиция.
func (p *Position) IsOpen() bool {
	return p.Side != SideNone && p.Qty > 0
}

// ApplyFill применяет исполнение ордера того же направления:
// объём складывается, средняя цена пересчитывается как VWAP.
//
// Первый филл открывает позицию и фиксирует OpenTime.
func (p *Position) ApplyFill(side Side, qty, price float64, at time.Time) {
	if qty <= 0 || price <= 0 {
		return
	}
	if !p.IsOpen() {
		p.Side = side
		p.Qty = qty
		p.AvgPrice = price
		p.EntryNotional = qty * price
		p.OpenTime = at
		return
	}
	if side != p.Side {
		return
	}
	newQty := p.Qty + qty
	p.AvgPrice = (p.AvgPrice*p.Qty + price*qty) / newQty
	p.Qty = newQty
	p.EntryNotional += qty * price
}

// ReduceQty уменьшает объём после частичного закрытия.
// Объём ниже dust-порога схлопывается в ноль.
func (p *Position) ReduceQty(qty float64) {
	p.Qty -= qty
	p.ClosedQty += qty
	if p.Qty < 1e-12 {
		p.Qty = 0
		p.Side = SideNone
	}
}

// Reset сбрасывает позицию в плоское состояние.
func (p *Position) Reset() {
	symbol := p.Symbol
	*p = Position{Symbol: symbol}
}

// ExitState - рабочее состояние процедуры выхода.
//
// Нулевые значения цен означают "не установлено".
type ExitState struct {
	Stage        string    `json:"stage"`
	TP1Done      bool      `json:"tp1_done"`
	TP2Done      bool      `json:"tp2_done"`
	TrailPrice   float64   `json:"trail_price"`    // текущий уровень трейлинг-стопа
	BestPrice    float64   `json:"best_price"`     // лучшая цена в пользу позиции
	LastDCAPrice float64   `json:"last_dca_price"` // цена последнего усреднения
	LastDCATime  time.Time `json:"last_dca_time"`
}

// Reset приводит состояние выхода к свежему входу.
func (s *ExitState) Reset() {
	*s = ExitState{Stage: StageFlat}
}
