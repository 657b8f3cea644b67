package exchange

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Venue определяет унифицированный интерфейс для работы с биржей деривативов
type Venue interface {
	// GetWalletBalance возвращает equity фьючерсного аккаунта в USDT
	GetWalletBalance(ctx context.Context) (float64, error)

	// GetPosition возвращает открытую позицию по символу (nil если позиции нет)
	GetPosition(ctx context.Context, symbol string) (*PositionInfo, error)

	// GetOpenOrders возвращает список активных ордеров по символу
	GetOpenOrders(ctx context.Context, symbol string) ([]*OrderStatus, error)

	// GetInstrumentStep возвращает шаг количества и минимальный размер ордера
	GetInstrumentStep(ctx context.Context, symbol string) (*InstrumentStep, error)

	// GetKline возвращает свечи старшего таймфрейма (новые первыми)
	GetKline(ctx context.Context, symbol, interval string, limit int) ([]*Kline, error)

	// PlaceOrder размещает рыночный ордер с клиентским идентификатором
	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderAck, error)

	// GetOrder возвращает состояние ордера по клиентскому идентификатору
	GetOrder(ctx context.Context, symbol, orderLinkID string) (*OrderStatus, error)

	// CancelOrder отменяет активный ордер
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// SetTradingStop устанавливает стоп-лосс на стороне биржи
	SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error

	// SubscribeTrades подписывается на поток сделок через WebSocket
	SubscribeTrades(symbol string, callback func(*Tick)) error

	// SubscribeOrderbook подписывается на верх стакана через WebSocket
	SubscribeOrderbook(symbol string, callback func(*BookTop)) error

	// Close закрывает соединения с биржей
	Close() error
}

// Tick представляет одну сделку из публичного потока
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	Side      string    `json:"side"` // "Buy" или "Sell" (сторона тейкера)
	Timestamp time.Time `json:"timestamp"`
}

// BookTop представляет верх стакана (лучшие bid/ask)
type BookTop struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	BidQty    float64   `json:"bid_qty"`
	AskPrice  float64   `json:"ask_price"`
	AskQty    float64   `json:"ask_qty"`
	Timestamp time.Time `json:"timestamp"`
}

// Kline представляет свечу
type Kline struct {
	Start  time.Time `json:"start"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// OrderRequest описывает рыночный ордер для размещения
type OrderRequest struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"` // "Buy" или "Sell"
	Qty         float64 `json:"qty"`
	ReduceOnly  bool    `json:"reduce_only"`
	OrderLinkID string  `json:"order_link_id"` // клиентский идентификатор для идемпотентности
}

// OrderAck - подтверждение размещения ордера
type OrderAck struct {
	OrderID     string `json:"order_id"`
	OrderLinkID string `json:"order_link_id"`
}

// OrderStatus представляет состояние ордера на бирже
type OrderStatus struct {
	OrderID      string    `json:"order_id"`
	OrderLinkID  string    `json:"order_link_id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Qty          float64   `json:"qty"`
	FilledQty    float64   `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	ReduceOnly   bool      `json:"reduce_only"`
	Status       string    `json:"status"` // Filled, PartiallyFilled, Cancelled, Rejected, New
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsFilled сообщает, полностью ли исполнен ордер
func (o *OrderStatus) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// IsTerminal сообщает, находится ли ордер в конечном состоянии
func (o *OrderStatus) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// PositionInfo представляет открытую позицию на бирже
type PositionInfo struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"` // "Buy" (long) или "Sell" (short)
	Size          float64   `json:"size"`
	AvgPrice      float64   `json:"avg_price"`
	MarkPrice     float64   `json:"mark_price"`
	Leverage      int       `json:"leverage"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	StopLoss      float64   `json:"stop_loss"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InstrumentStep содержит лимиты инструмента для квантизации количества
type InstrumentStep struct {
	Symbol      string  `json:"symbol"`
	QtyStep     float64 `json:"qty_step"`
	MinOrderQty float64 `json:"min_order_qty"`
	MaxOrderQty float64 `json:"max_order_qty"`
	TickSize    float64 `json:"tick_size"`
	MinNotional float64 `json:"min_notional"`
}

// Order status constants (формат Bybit v5)
const (
	OrderStatusNew             = "New"
	OrderStatusPartiallyFilled = "PartiallyFilled"
	OrderStatusFilled          = "Filled"
	OrderStatusCancelled       = "Cancelled"
	OrderStatusRejected        = "Rejected"
)

// Side constants (формат Bybit v5)
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// Коды ошибок Bybit v5, требующие особой обработки
const (
	// codeDuplicateOrderLinkID - повторное использование orderLinkId:
	// ордер уже принят биржей, повтор трактуется как успех
	codeDuplicateOrderLinkID = 110030

	// codeReduceOnlyRejected - reduce-only ордер отклонён, потому что
	// закрывать уже нечего: трактуется как no-op
	codeReduceOnlyRejected = 110017

	// Транзиентные коды: можно повторять запрос
	codeTimestampOutOfWindow = 10002
	codeRateLimitExceeded    = 10006
	codeServerBusy           = 10016
)

// VenueError представляет классифицированную ошибку биржи
type VenueError struct {
	Code      int    // retCode биржи (0 если ошибка транспортного уровня)
	Message   string // retMsg биржи
	Transient bool   // можно ли повторить запрос
	Err       error  // исходная ошибка (для транспортных сбоев)
}

func (e *VenueError) Error() string {
	if e.Code != 0 {
		return "bybit: " + e.Message
	}
	if e.Err != nil {
		return "bybit: " + e.Err.Error()
	}
	return "bybit: " + e.Message
}

// Unwrap возвращает исходную ошибку для поддержки errors.Is() и errors.As()
func (e *VenueError) Unwrap() error {
	return e.Err
}

// Retryable реализует контракт retry.RetryableError
func (e *VenueError) Retryable() bool {
	return e.Transient
}

// newAPIError создаёт VenueError по retCode ответа биржи
func newAPIError(code int, message string) *VenueError {
	transient := false
	switch code {
	case codeTimestampOutOfWindow, codeRateLimitExceeded, codeServerBusy:
		transient = true
	}
	return &VenueError{Code: code, Message: message, Transient: transient}
}

// newTransportError оборачивает сетевую ошибку: такие ошибки всегда транзиентны
func newTransportError(err error) *VenueError {
	return &VenueError{Message: err.Error(), Transient: true, Err: err}
}

// IsRetryable сообщает, можно ли повторить запрос после данной ошибки
func IsRetryable(err error) bool {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsDuplicate сообщает, что ордер с таким orderLinkId уже принят биржей.
// Повтор размещения в этом случае считается успешным no-op.
func IsDuplicate(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.Code == codeDuplicateOrderLinkID
}

// IsMaxOrderSize сообщает, что биржа отклонила ордер из-за превышения
// максимального размера. Количество нужно уменьшить и повторить.
func IsMaxOrderSize(err error) bool {
	var ve *VenueError
	if !errors.As(err, &ve) {
		return false
	}
	return strings.Contains(strings.ToLower(ve.Message), "max. limit")
}

// IsReduceOnlyNoop сообщает, что reduce-only ордер отклонён, потому что
// позиция уже закрыта. Трактуется как успешный no-op.
func IsReduceOnlyNoop(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.Code == codeReduceOnlyRejected
}
