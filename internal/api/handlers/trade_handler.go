package handlers

import (
	"context"
	"net/http"

	"dcabot/internal/models"
)

// TradeHandler отвечает за журнал закрытых сделок
//
// Endpoints:
// - GET /api/v1/trades - последние сделки
// - GET /api/v1/trades?symbol=BTCUSDT - сделки по инструменту
// - GET /api/v1/trades?limit=50 - с ограничением количества
// - GET /api/v1/trades/stats - агрегированная статистика (день/неделя/месяц)
type TradeHandler struct {
	trades TradeSource
}

// TradeSource - доступ к журналу сделок
type TradeSource interface {
	GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error)
	GetBySymbol(ctx context.Context, symbol string, limit int) ([]*models.TradeRecord, error)
	GetStats(ctx context.Context) (*models.TradeStats, error)
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимости
func NewTradeHandler(trades TradeSource) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// GetTradesResponse представляет ответ списка сделок
type GetTradesResponse struct {
	Trades []*models.TradeRecord `json:"trades"`
	Total  int                   `json:"total"`
}

// GetTrades возвращает закрытые сделки
//
// GET /api/v1/trades
//
// Query параметры:
// - symbol (string): фильтр по инструменту
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка БД
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 500)
	symbol := r.URL.Query().Get("symbol")

	var (
		trades []*models.TradeRecord
		err    error
	)
	if symbol != "" {
		trades, err = h.trades.GetBySymbol(r.Context(), symbol, limit)
	} else {
		trades, err = h.trades.GetRecent(r.Context(), limit)
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get trades: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, GetTradesResponse{
		Trades: trades,
		Total:  len(trades),
	})
}

// GetStats возвращает агрегированную статистику сделок
//
// GET /api/v1/trades/stats
//
// Возвращает количество сделок и суммарный PnL за всё время,
// за текущие сутки (UTC), за 7 дней и за месяц.
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка БД
func (h *TradeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.trades.GetStats(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get stats: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
