package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dcabot/internal/models"
)

// ============ TradeHandler Tests ============

func TestTradeHandler_GetTrades(t *testing.T) {
	sample := []*models.TradeRecord{
		{ID: 2, Symbol: "BTCUSDT", Side: "Buy", Qty: 0.5, Price: 50500, AvgEntry: 50000, Pnl: 250, Reason: "TP", CreatedAt: time.Now()},
		{ID: 1, Symbol: "ETHUSDT", Side: "Sell", Qty: 2, Price: 2950, AvgEntry: 3000, Pnl: 100, Reason: "TRAIL", CreatedAt: time.Now().Add(-time.Hour)},
	}

	t.Run("returns recent trades", func(t *testing.T) {
		source := &mockTradeSource{trades: sample}
		handler := NewTradeHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil)
		w := httptest.NewRecorder()

		handler.GetTrades(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetTradesResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 2 {
			t.Errorf("expected total 2, got %d", response.Total)
		}
		if source.lastLimit != 100 {
			t.Errorf("expected default limit 100, got %d", source.lastLimit)
		}
	})

	t.Run("filters by symbol", func(t *testing.T) {
		source := &mockTradeSource{trades: sample}
		handler := NewTradeHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades?symbol=BTCUSDT", nil)
		w := httptest.NewRecorder()

		handler.GetTrades(w, req)

		var response GetTradesResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 1 {
			t.Fatalf("expected total 1, got %d", response.Total)
		}
		if response.Trades[0].Symbol != "BTCUSDT" {
			t.Errorf("expected BTCUSDT, got %q", response.Trades[0].Symbol)
		}
		if source.lastSymbol != "BTCUSDT" {
			t.Errorf("expected symbol filter passed to store, got %q", source.lastSymbol)
		}
	})

	t.Run("caps limit at maximum", func(t *testing.T) {
		source := &mockTradeSource{}
		handler := NewTradeHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades?limit=9999", nil)
		w := httptest.NewRecorder()

		handler.GetTrades(w, req)

		if source.lastLimit != 500 {
			t.Errorf("expected limit capped at 500, got %d", source.lastLimit)
		}
	})

	t.Run("store error returns 500", func(t *testing.T) {
		source := &mockTradeSource{err: errors.New("соединение с БД потеряно")}
		handler := NewTradeHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil)
		w := httptest.NewRecorder()

		handler.GetTrades(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestTradeHandler_GetStats(t *testing.T) {
	t.Run("returns aggregated stats", func(t *testing.T) {
		source := &mockTradeSource{
			stats: &models.TradeStats{
				TotalTrades: 42,
				TotalPnl:    1234.5,
				TodayTrades: 3,
				TodayPnl:    -15.2,
			},
		}
		handler := NewTradeHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/stats", nil)
		w := httptest.NewRecorder()

		handler.GetStats(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var stats models.TradeStats
		if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if stats.TotalTrades != 42 {
			t.Errorf("expected 42 trades, got %d", stats.TotalTrades)
		}
		if stats.TodayPnl != -15.2 {
			t.Errorf("expected today pnl -15.2, got %v", stats.TodayPnl)
		}
	})

	t.Run("store error returns 500", func(t *testing.T) {
		source := &mockTradeSource{err: errors.New("соединение с БД потеряно")}
		handler := NewTradeHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/stats", nil)
		w := httptest.NewRecorder()

		handler.GetStats(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
