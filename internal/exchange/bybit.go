package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"dcabot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	bybitMainnetURL   = "https://api.bybit.com"
	bybitTestnetURL   = "https://api-testnet.bybit.com"
	bybitWSMainnet    = "wss://stream.bybit.com/v5/public/linear"
	bybitWSTestnet    = "wss://stream-testnet.bybit.com/v5/public/linear"
	bybitRecvWindow   = "5000"
	bybitCategory     = "linear"
)

// Bybit реализует интерфейс Venue для Bybit v5 (USDT perpetual)
type Bybit struct {
	apiKey    string
	secretKey string
	baseURL   string
	wsURL     string

	httpClient *http.Client
	log        *utils.Logger

	// Публичный WebSocket с автоматическим переподключением
	wsManager *WSReconnectManager
	wsOnce    sync.Once
	wsErr     error

	// Callbacks по символам
	tradeCallbacks map[string]func(*Tick)
	bookCallbacks  map[string]func(*BookTop)
	callbackMu     sync.RWMutex

	// Последний известный верх стакана по символу (для дельта-обновлений)
	bookState   map[string]*BookTop
	bookStateMu sync.Mutex
}

// NewBybit создаёт клиент Bybit.
// Использует глобальный HTTP клиент с connection pooling.
func NewBybit(apiKey, secret string, testnet bool, log *utils.Logger) *Bybit {
	baseURL := bybitMainnetURL
	wsURL := bybitWSMainnet
	if testnet {
		baseURL = bybitTestnetURL
		wsURL = bybitWSTestnet
	}
	if log == nil {
		log = utils.L()
	}
	return &Bybit{
		apiKey:         apiKey,
		secretKey:      secret,
		baseURL:        baseURL,
		wsURL:          wsURL,
		httpClient:     GetGlobalHTTPClient().GetClient(),
		log:            log.WithComponent("bybit"),
		tradeCallbacks: make(map[string]func(*Tick)),
		bookCallbacks:  make(map[string]func(*BookTop)),
		bookState:      make(map[string]*BookTop),
	}
}

// sign создаёт подпись запроса к Bybit API v5
func (b *Bybit) sign(timestamp, payload string) string {
	message := timestamp + b.apiKey + bybitRecvWindow + payload
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Bybit API.
// Ошибки транспорта и ненулевой retCode возвращаются как *VenueError.
func (b *Bybit) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	var payload string
	var reqURL string

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		payload = query.Encode()
		reqURL = b.baseURL + endpoint
		if payload != "" {
			reqURL += "?" + payload
		}
	} else {
		reqURL = b.baseURL + endpoint
		if len(params) > 0 {
			jsonBytes, err := json.Marshal(params)
			if err != nil {
				return nil, err
			}
			payload = string(jsonBytes)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-SIGN", b.sign(timestamp, payload))
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, fmt.Errorf("некорректный ответ биржи: %w", err)
	}

	if baseResp.RetCode != 0 {
		return nil, newAPIError(baseResp.RetCode, baseResp.RetMsg)
	}

	return body, nil
}

func (b *Bybit) GetWalletBalance(ctx context.Context) (float64, error) {
	params := map[string]string{
		"accountType": "UNIFIED",
		"coin":        "USDT",
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", params, true)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Coin []struct {
					Coin   string `json:"coin"`
					Equity string `json:"equity"`
				} `json:"coin"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	if len(resp.Result.List) > 0 {
		for _, coin := range resp.Result.List[0].Coin {
			if coin.Coin == "USDT" {
				equity, _ := strconv.ParseFloat(coin.Equity, 64)
				return equity, nil
			}
		}
	}

	return 0, nil
}

func (b *Bybit) GetPosition(ctx context.Context, symbol string) (*PositionInfo, error) {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbol,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/position/list", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				Side          string `json:"side"`
				Size          string `json:"size"`
				AvgPrice      string `json:"avgPrice"`
				MarkPrice     string `json:"markPrice"`
				Leverage      string `json:"leverage"`
				UnrealisedPnl string `json:"unrealisedPnl"`
				StopLoss      string `json:"stopLoss"`
				UpdatedTime   string `json:"updatedTime"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp.Result.List {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 {
			continue
		}

		avgPrice, _ := strconv.ParseFloat(p.AvgPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		leverage, _ := strconv.Atoi(p.Leverage)
		unrealizedPnl, _ := strconv.ParseFloat(p.UnrealisedPnl, 64)
		stopLoss, _ := strconv.ParseFloat(p.StopLoss, 64)
		updatedTime, _ := strconv.ParseInt(p.UpdatedTime, 10, 64)

		return &PositionInfo{
			Symbol:        p.Symbol,
			Side:          p.Side,
			Size:          size,
			AvgPrice:      avgPrice,
			MarkPrice:     markPrice,
			Leverage:      leverage,
			UnrealizedPnl: unrealizedPnl,
			StopLoss:      stopLoss,
			UpdatedAt:     utils.FromUnixMillis(updatedTime),
		}, nil
	}

	// Позиции нет
	return nil, nil
}

func (b *Bybit) GetOpenOrders(ctx context.Context, symbol string) ([]*OrderStatus, error) {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbol,
		"openOnly": "0",
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params, true)
	if err != nil {
		return nil, err
	}

	orders, err := parseOrderList(body)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (b *Bybit) GetInstrumentStep(ctx context.Context, symbol string) (*InstrumentStep, error) {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbol,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/market/instruments-info", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				LotSizeFilter struct {
					MinOrderQty string `json:"minOrderQty"`
					MaxOrderQty string `json:"maxOrderQty"`
					QtyStep     string `json:"qtyStep"`
				} `json:"lotSizeFilter"`
				PriceFilter struct {
					TickSize string `json:"tickSize"`
				} `json:"priceFilter"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("инструмент %s не найден", symbol)
	}

	info := resp.Result.List[0]
	minOrderQty, _ := strconv.ParseFloat(info.LotSizeFilter.MinOrderQty, 64)
	maxOrderQty, _ := strconv.ParseFloat(info.LotSizeFilter.MaxOrderQty, 64)
	qtyStep, _ := strconv.ParseFloat(info.LotSizeFilter.QtyStep, 64)
	tickSize, _ := strconv.ParseFloat(info.PriceFilter.TickSize, 64)

	return &InstrumentStep{
		Symbol:      symbol,
		QtyStep:     qtyStep,
		MinOrderQty: minOrderQty,
		MaxOrderQty: maxOrderQty,
		TickSize:    tickSize,
		MinNotional: 5.0, // минимум Bybit для USDT perpetual
	}, nil
}

func (b *Bybit) GetKline(ctx context.Context, symbol, interval string, limit int) ([]*Kline, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/market/kline", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	klines := make([]*Kline, 0, len(resp.Result.List))
	for _, row := range resp.Result.List {
		if len(row) < 6 {
			continue
		}
		startMs, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePrice, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)

		klines = append(klines, &Kline{
			Start:  utils.FromUnixMillis(startMs),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return klines, nil
}

func (b *Bybit) PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderAck, error) {
	params := map[string]string{
		"category":    bybitCategory,
		"symbol":      req.Symbol,
		"side":        req.Side,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(req.Qty, 'f', -1, 64),
		"timeInForce": "IOC",
	}
	if req.OrderLinkID != "" {
		params["orderLinkId"] = req.OrderLinkID
	}
	if req.ReduceOnly {
		params["reduceOnly"] = "true"
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			OrderID     string `json:"orderId"`
			OrderLinkID string `json:"orderLinkId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &OrderAck{
		OrderID:     resp.Result.OrderID,
		OrderLinkID: resp.Result.OrderLinkID,
	}, nil
}

func (b *Bybit) GetOrder(ctx context.Context, symbol, orderLinkID string) (*OrderStatus, error) {
	params := map[string]string{
		"category":    bybitCategory,
		"symbol":      symbol,
		"orderLinkId": orderLinkID,
	}

	// Сначала ищем среди активных, затем в истории
	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params, true)
	if err == nil {
		if orders, perr := parseOrderList(body); perr == nil && len(orders) > 0 {
			return orders[0], nil
		}
	}

	body, err = b.doRequest(ctx, http.MethodGet, "/v5/order/history", params, true)
	if err != nil {
		return nil, err
	}

	orders, err := parseOrderList(body)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("ордер %s не найден", orderLinkID)
	}
	return orders[0], nil
}

func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/order/cancel", params, true)
	return err
}

func (b *Bybit) SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error {
	params := map[string]string{
		"category":    bybitCategory,
		"symbol":      symbol,
		"stopLoss":    strconv.FormatFloat(stopLoss, 'f', -1, 64),
		"positionIdx": "0", // one-way mode
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/trading-stop", params, true)
	return err
}

// parseOrderList разбирает список ордеров из ответов realtime/history
func parseOrderList(body []byte) ([]*OrderStatus, error) {
	var resp struct {
		Result struct {
			List []struct {
				OrderID     string `json:"orderId"`
				OrderLinkID string `json:"orderLinkId"`
				Symbol      string `json:"symbol"`
				Side        string `json:"side"`
				Qty         string `json:"qty"`
				CumExecQty  string `json:"cumExecQty"`
				AvgPrice    string `json:"avgPrice"`
				ReduceOnly  bool   `json:"reduceOnly"`
				OrderStatus string `json:"orderStatus"`
				CreatedTime string `json:"createdTime"`
				UpdatedTime string `json:"updatedTime"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	orders := make([]*OrderStatus, 0, len(resp.Result.List))
	for _, o := range resp.Result.List {
		qty, _ := strconv.ParseFloat(o.Qty, 64)
		filledQty, _ := strconv.ParseFloat(o.CumExecQty, 64)
		avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)
		createdTime, _ := strconv.ParseInt(o.CreatedTime, 10, 64)
		updatedTime, _ := strconv.ParseInt(o.UpdatedTime, 10, 64)

		orders = append(orders, &OrderStatus{
			OrderID:      o.OrderID,
			OrderLinkID:  o.OrderLinkID,
			Symbol:       o.Symbol,
			Side:         o.Side,
			Qty:          qty,
			FilledQty:    filledQty,
			AvgFillPrice: avgPrice,
			ReduceOnly:   o.ReduceOnly,
			Status:       o.OrderStatus,
			CreatedAt:    utils.FromUnixMillis(createdTime),
			UpdatedAt:    utils.FromUnixMillis(updatedTime),
		})
	}

	return orders, nil
}

// ============================================================
// WebSocket: публичные потоки рыночных данных
// ============================================================

// ensureWSManager лениво создаёт и подключает публичный WebSocket
func (b *Bybit) ensureWSManager() error {
	b.wsOnce.Do(func() {
		config := DefaultWSReconnectConfig()
		b.wsManager = NewWSReconnectManager("bybit-public", b.wsURL, config, b.log)
		b.wsManager.SetOnMessage(b.handlePublicMessage)
		b.wsManager.SetOnDisconnect(func(err error) {
			// После разрыва верх стакана устарел: дельты применять нельзя
			b.bookStateMu.Lock()
			b.bookState = make(map[string]*BookTop)
			b.bookStateMu.Unlock()
		})
		b.wsErr = b.wsManager.Connect()
	})
	return b.wsErr
}

func (b *Bybit) SubscribeTrades(symbol string, callback func(*Tick)) error {
	if err := b.ensureWSManager(); err != nil {
		return fmt.Errorf("не удалось подключить WebSocket: %w", err)
	}

	b.callbackMu.Lock()
	b.tradeCallbacks[symbol] = callback
	b.callbackMu.Unlock()

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"publicTrade." + symbol},
	}
	b.wsManager.AddSubscription(subMsg)
	return b.wsManager.Send(subMsg)
}

func (b *Bybit) SubscribeOrderbook(symbol string, callback func(*BookTop)) error {
	if err := b.ensureWSManager(); err != nil {
		return fmt.Errorf("не удалось подключить WebSocket: %w", err)
	}

	b.callbackMu.Lock()
	b.bookCallbacks[symbol] = callback
	b.callbackMu.Unlock()

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"orderbook.1." + symbol},
	}
	b.wsManager.AddSubscription(subMsg)
	return b.wsManager.Send(subMsg)
}

// handlePublicMessage маршрутизирует сообщения публичного WebSocket
func (b *Bybit) handlePublicMessage(message []byte) {
	var envelope struct {
		Topic string              `json:"topic"`
		Type  string              `json:"type"`
		Data  jsoniter.RawMessage `json:"data"`
		Ts    int64               `json:"ts"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return
	}

	switch {
	case strings.HasPrefix(envelope.Topic, "publicTrade."):
		b.handleTradeMessage(envelope.Data)
	case strings.HasPrefix(envelope.Topic, "orderbook.1."):
		symbol := strings.TrimPrefix(envelope.Topic, "orderbook.1.")
		b.handleOrderbookMessage(symbol, envelope.Type, envelope.Data, envelope.Ts)
	}
}

// handleTradeMessage разбирает пакет сделок publicTrade
func (b *Bybit) handleTradeMessage(data jsoniter.RawMessage) {
	var trades []struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
		Qty    string `json:"v"`
		Side   string `json:"S"`
		Ts     int64  `json:"T"`
	}
	if err := json.Unmarshal(data, &trades); err != nil {
		return
	}

	for _, t := range trades {
		b.callbackMu.RLock()
		callback, ok := b.tradeCallbacks[t.Symbol]
		b.callbackMu.RUnlock()
		if !ok || callback == nil {
			continue
		}

		price, _ := strconv.ParseFloat(t.Price, 64)
		qty, _ := strconv.ParseFloat(t.Qty, 64)

		callback(&Tick{
			Symbol:    t.Symbol,
			Price:     price,
			Qty:       qty,
			Side:      t.Side,
			Timestamp: utils.FromUnixMillis(t.Ts),
		})
	}
}

// handleOrderbookMessage разбирает snapshot/delta верха стакана.
// Для delta пустая сторона означает "без изменений", сохраняем предыдущее значение.
func (b *Bybit) handleOrderbookMessage(symbol, msgType string, data jsoniter.RawMessage, ts int64) {
	var book struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
	}
	if err := json.Unmarshal(data, &book); err != nil {
		return
	}

	b.bookStateMu.Lock()
	top, ok := b.bookState[symbol]
	if !ok || msgType == "snapshot" {
		top = &BookTop{Symbol: symbol}
		b.bookState[symbol] = top
	}

	if len(book.Bids) > 0 && len(book.Bids[0]) >= 2 {
		price, _ := strconv.ParseFloat(book.Bids[0][0], 64)
		qty, _ := strconv.ParseFloat(book.Bids[0][1], 64)
		if qty > 0 {
			top.BidPrice = price
			top.BidQty = qty
		}
	}
	if len(book.Asks) > 0 && len(book.Asks[0]) >= 2 {
		price, _ := strconv.ParseFloat(book.Asks[0][0], 64)
		qty, _ := strconv.ParseFloat(book.Asks[0][1], 64)
		if qty > 0 {
			top.AskPrice = price
			top.AskQty = qty
		}
	}
	top.Timestamp = utils.FromUnixMillis(ts)
	snapshot := *top
	b.bookStateMu.Unlock()

	if snapshot.BidPrice == 0 || snapshot.AskPrice == 0 {
		return
	}

	b.callbackMu.RLock()
	callback := b.bookCallbacks[symbol]
	b.callbackMu.RUnlock()

	if callback != nil {
		callback(&snapshot)
	}
}

func (b *Bybit) Close() error {
	if b.wsManager != nil {
		return b.wsManager.Close()
	}
	return nil
}
