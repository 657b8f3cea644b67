package handlers

import (
	"context"
	"net/http"
	"time"

	"dcabot/internal/bot"
)

// StatusHandler отвечает за состояние позиций и счёта
//
// Endpoints:
// - GET /api/v1/positions - позиции всех движков с состоянием выхода
// - GET /api/v1/account - снимок портфельного guard и текущий equity
//
// Назначение:
// Отдаёт read-only снимки рабочего состояния бота: открытые позиции,
// стадии выходного автомата, суммарный риск, дневные замки.
// Управляющих операций нет - бот полностью автономен.
type StatusHandler struct {
	positions PositionSource
	guard     GuardSource
	balance   BalanceSource
}

// PositionSource отдаёт снимки позиций движков
type PositionSource interface {
	StatusSnapshots() []bot.PositionStatus
}

// GuardSource отдаёт снимок портфельных лимитов
type GuardSource interface {
	Snapshot() bot.GuardSnapshot
}

// BalanceSource отдаёт equity аккаунта
type BalanceSource interface {
	GetWalletBalance(ctx context.Context) (float64, error)
}

// NewStatusHandler создает новый StatusHandler с внедрением зависимостей
func NewStatusHandler(positions PositionSource, guard GuardSource, balance BalanceSource) *StatusHandler {
	return &StatusHandler{
		positions: positions,
		guard:     guard,
		balance:   balance,
	}
}

// GetPositionsResponse представляет ответ списка позиций
type GetPositionsResponse struct {
	Positions []bot.PositionStatus `json:"positions"`
	Total     int                  `json:"total"`
}

// GetPositions возвращает позиции всех движков
//
// GET /api/v1/positions
//
// Каждый элемент содержит позицию (сторона, объём, средняя цена,
// накопленный PnL, число усреднений) и состояние выхода (стадия,
// флаги TP1/TP2, уровень трейлинг-стопа).
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив позиций (включая плоские)
func (h *StatusHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	snapshots := h.positions.StatusSnapshots()

	respondWithJSON(w, http.StatusOK, GetPositionsResponse{
		Positions: snapshots,
		Total:     len(snapshots),
	})
}

// GetAccountResponse представляет снимок счёта
type GetAccountResponse struct {
	Equity float64           `json:"equity"`
	Guard  bot.GuardSnapshot `json:"guard"`
}

// GetAccount возвращает equity и состояние портфельного guard
//
// GET /api/v1/account
//
// Equity запрашивается у биржи; при недоступности REST API
// возвращается 0 без ошибки запроса - снимок guard важнее.
//
// HTTP коды:
// - 200 OK: успешно
func (h *StatusHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	equity, err := h.balance.GetWalletBalance(ctx)
	if err != nil {
		equity = 0
	}

	respondWithJSON(w, http.StatusOK, GetAccountResponse{
		Equity: equity,
		Guard:  h.guard.Snapshot(),
	})
}
