package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"dcabot/internal/config"
	"dcabot/internal/exchange"
	"dcabot/internal/models"
)

// fakeVenue - управляемый клиент биржи для тестов исполнителя
type fakeVenue struct {
	mu         sync.Mutex
	step       *exchange.InstrumentStep
	placeErrs  []error // очередь ошибок на последовательные PlaceOrder
	balanceErr error
	placeCalls []*exchange.OrderRequest
	order      *exchange.OrderStatus
	cancelled  []string
	stops      []float64
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		step: &exchange.InstrumentStep{
			Symbol:      "BTCUSDT",
			QtyStep:     0.001,
			MinOrderQty: 0.001,
			MaxOrderQty: 100,
		},
	}
}

func (v *fakeVenue) GetWalletBalance(ctx context.Context) (float64, error) {
	if v.balanceErr != nil {
		return 0, v.balanceErr
	}
	return 10000, nil
}

func (v *fakeVenue) GetPosition(ctx context.Context, symbol string) (*exchange.PositionInfo, error) {
	return nil, nil
}

func (v *fakeVenue) GetOpenOrders(ctx context.Context, symbol string) ([]*exchange.OrderStatus, error) {
	return nil, nil
}

func (v *fakeVenue) GetInstrumentStep(ctx context.Context, symbol string) (*exchange.InstrumentStep, error) {
	return v.step, nil
}

func (v *fakeVenue) GetKline(ctx context.Context, symbol, interval string, limit int) ([]*exchange.Kline, error) {
	return nil, nil
}

func (v *fakeVenue) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.OrderAck, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.placeCalls = append(v.placeCalls, req)
	if len(v.placeErrs) > 0 {
		err := v.placeErrs[0]
		v.placeErrs = v.placeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &exchange.OrderAck{OrderID: "1", OrderLinkID: req.OrderLinkID}, nil
}

func (v *fakeVenue) GetOrder(ctx context.Context, symbol, orderLinkID string) (*exchange.OrderStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.order == nil {
		return nil, &exchange.VenueError{Code: 1, Message: "order not found"}
	}
	return v.order, nil
}

func (v *fakeVenue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelled = append(v.cancelled, orderID)
	return nil
}

func (v *fakeVenue) SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stops = append(v.stops, stopLoss)
	return nil
}

func (v *fakeVenue) SubscribeTrades(symbol string, callback func(*exchange.Tick)) error { return nil }

func (v *fakeVenue) SubscribeOrderbook(symbol string, callback func(*exchange.BookTop)) error {
	return nil
}

func (v *fakeVenue) Close() error { return nil }

func testBotConfig() config.BotConfig {
	return config.BotConfig{
		MaxRetries:     0,
		OrderTimeout:   500 * time.Millisecond,
		QtyReduceRatio: 0.8,
		RestRate:       1000,
		RestBurst:      1000,
	}
}

func filledOrder(qty, price float64) *exchange.OrderStatus {
	return &exchange.OrderStatus{
		OrderID:      "1",
		FilledQty:    qty,
		AvgFillPrice: price,
		Status:       exchange.OrderStatusFilled,
	}
}

func TestGenLinkID(t *testing.T) {
	oe := NewOrderExecutor(newFakeVenue(), testBotConfig(), false, nil)

	before := time.Now().UnixMilli()
	linkID := oe.GenLinkID("BTCUSDT", "dca2")
	after := time.Now().UnixMilli()

	const prefix = "BTCUSDT-dca2-"
	if !strings.HasPrefix(linkID, prefix) {
		t.Fatalf("неожиданный формат orderLinkId: %q", linkID)
	}
	ms, err := strconv.ParseInt(strings.TrimPrefix(linkID, prefix), 10, 64)
	if err != nil {
		t.Fatalf("суффикс должен быть отметкой времени в миллисекундах: %v", err)
	}
	if ms < before || ms > after {
		t.Errorf("отметка %d вне окна [%d, %d]", ms, before, after)
	}
}

func TestMarketOrder_HappyPath(t *testing.T) {
	venue := newFakeVenue()
	venue.order = filledOrder(0.5, 50001.0)
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)

	result, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.5, 50000.0, false, "entry")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.FilledQty != 0.5 || result.AvgPrice != 50001.0 {
		t.Errorf("ожидалось исполнение 0.5 @ 50001, получено %.6g @ %.6g", result.FilledQty, result.AvgPrice)
	}
	if !strings.HasPrefix(result.OrderLinkID, "BTCUSDT-entry-") {
		t.Errorf("неожиданный формат orderLinkId: %q", result.OrderLinkID)
	}
	if len(venue.placeCalls) != 1 {
		t.Errorf("ожидался один PlaceOrder, было %d", len(venue.placeCalls))
	}
}

func TestMarketOrder_SnapToZeroIsNoop(t *testing.T) {
	venue := newFakeVenue()
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)

	// Объём ниже минимального лота квантизируется в ноль
	result, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideSell, 0.0004, 50000.0, true, "close")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !result.Noop {
		t.Error("ожидался no-op для нулевого объёма")
	}
	if len(venue.placeCalls) != 0 {
		t.Errorf("ордер не должен отправляться, было %d вызовов", len(venue.placeCalls))
	}
}

func TestMarketOrder_DuplicateIsSuccess(t *testing.T) {
	venue := newFakeVenue()
	venue.placeErrs = []error{
		&exchange.VenueError{Code: 110030, Message: "Duplicate orderId"},
	}
	venue.order = filledOrder(0.5, 50000.0)
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)

	result, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.5, 50000.0, false, "entry")
	if err != nil {
		t.Fatalf("duplicate должен быть успехом, получена ошибка: %v", err)
	}
	if !result.Duplicate {
		t.Error("флаг Duplicate не взведён")
	}
	if len(venue.placeCalls) != 1 {
		t.Errorf("повторная отправка после duplicate: %d вызовов", len(venue.placeCalls))
	}
}

func TestMarketOrder_MaxLimitReducesQty(t *testing.T) {
	venue := newFakeVenue()
	venue.placeErrs = []error{
		&exchange.VenueError{Code: 110007, Message: "Order qty exceeded upper limit, max. limit is 100"},
	}
	venue.order = filledOrder(0.8, 50000.0)
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)

	result, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 1.0, 50000.0, false, "entry")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if len(venue.placeCalls) != 2 {
		t.Fatalf("ожидалось 2 попытки, было %d", len(venue.placeCalls))
	}
	if got := venue.placeCalls[1].Qty; got != 0.8 {
		t.Errorf("объём второй попытки %.6g, ожидался 0.8", got)
	}
	// Идемпотентность: linkID сохраняется между попытками
	if venue.placeCalls[0].OrderLinkID != venue.placeCalls[1].OrderLinkID {
		t.Error("orderLinkId изменился между попытками отката объёма")
	}
	if result.FilledQty != 0.8 {
		t.Errorf("исполненный объём %.6g, ожидался 0.8", result.FilledQty)
	}
}

func TestMarketOrder_ReduceOnlyNoop(t *testing.T) {
	venue := newFakeVenue()
	venue.placeErrs = []error{
		&exchange.VenueError{Code: 110017, Message: "Reduce-only rule not satisfied"},
	}
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)

	result, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideSell, 0.5, 50000.0, true, "close")
	if err != nil {
		t.Fatalf("reduce-only отказ на плоской позиции должен быть no-op: %v", err)
	}
	if !result.Noop {
		t.Error("флаг Noop не взведён")
	}

	// Для обычного (не reduce-only) ордера тот же код - ошибка
	venue.placeErrs = []error{
		&exchange.VenueError{Code: 110017, Message: "Reduce-only rule not satisfied"},
	}
	if _, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.5, 50000.0, false, "entry"); err == nil {
		t.Error("ожидалась ошибка для не-reduce-only ордера")
	}
}

func TestMarketOrder_PermanentErrorFails(t *testing.T) {
	venue := newFakeVenue()
	venue.placeErrs = []error{
		&exchange.VenueError{Code: 110004, Message: "Insufficient wallet balance"},
	}
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)

	if _, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.5, 50000.0, false, "entry"); err == nil {
		t.Fatal("постоянная ошибка биржи должна прерывать исполнение")
	}
	if len(venue.placeCalls) != 1 {
		t.Errorf("постоянная ошибка не должна повторяться, было %d вызовов", len(venue.placeCalls))
	}
}

func TestMarketOrder_DryRun(t *testing.T) {
	venue := newFakeVenue()
	oe := NewOrderExecutor(venue, testBotConfig(), true, nil)

	result, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.5, 50000.0, false, "entry")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.FilledQty != 0.5 || result.AvgPrice != 50000.0 {
		t.Errorf("dry-run должен вернуть синтетическое исполнение, получено %.6g @ %.6g",
			result.FilledQty, result.AvgPrice)
	}
	if len(venue.placeCalls) != 0 {
		t.Errorf("dry-run отправил ордер на биржу: %d вызовов", len(venue.placeCalls))
	}
}

func TestMarketOrder_FillTimeoutFallsBackToRefPrice(t *testing.T) {
	venue := newFakeVenue() // venue.order == nil: подтверждение не приходит
	cfg := testBotConfig()
	cfg.OrderTimeout = 250 * time.Millisecond
	oe := NewOrderExecutor(venue, cfg, false, nil)

	result, err := oe.MarketOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.5, 50000.0, false, "entry")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.AvgPrice != 50000.0 {
		t.Errorf("ожидался fallback на опорную цену, получено %.6g", result.AvgPrice)
	}
	if result.FilledQty != 0.5 {
		t.Errorf("ожидался запрошенный объём, получено %.6g", result.FilledQty)
	}
}

func TestSnapQty(t *testing.T) {
	venue := newFakeVenue()
	venue.step.QtyStep = 0.25
	venue.step.MinOrderQty = 0.5
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		qty  float64
		want float64
	}{
		{"snaps down to step", 1.3, 1.25},
		{"exact step unchanged", 1.5, 1.5},
		{"below min is zero", 0.3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oe.SnapQty(ctx, "BTCUSDT", tt.qty)
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("SnapQty(%v) = %v, ожидалось %v", tt.qty, got, tt.want)
			}
		})
	}
}

func TestSetStopLoss(t *testing.T) {
	venue := newFakeVenue()
	oe := NewOrderExecutor(venue, testBotConfig(), false, nil)

	if err := oe.SetStopLoss(context.Background(), "BTCUSDT", 49000.0); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(venue.stops) != 1 || venue.stops[0] != 49000.0 {
		t.Errorf("стоп не дошёл до биржи: %v", venue.stops)
	}
}
