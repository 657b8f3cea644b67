package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"dcabot/internal/models"
)

// NotificationHandler отвечает за журнал событий бота
//
// Endpoints:
// - GET /api/v1/notifications - последние уведомления
// - GET /api/v1/notifications?symbol=BTCUSDT - по инструменту
// - GET /api/v1/notifications?limit=50 - с ограничением количества
// - DELETE /api/v1/notifications?older_than_days=7 - очистка старых записей
//
// Типы уведомлений: ENTRY, DCA, TP1, TP2, CLOSE, SL, HEDGE, LOCK,
// RESTART, ERROR.
type NotificationHandler struct {
	notifications NotificationSource
}

// NotificationSource - доступ к журналу уведомлений
type NotificationSource interface {
	GetRecent(ctx context.Context, limit int) ([]*models.Notification, error)
	GetBySymbol(ctx context.Context, symbol string, limit int) ([]*models.Notification, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notifications NotificationSource) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int                    `json:"total"`
}

// GetNotifications возвращает уведомления
//
// GET /api/v1/notifications
//
// Query параметры:
// - symbol (string): фильтр по инструменту
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка БД
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 500)
	symbol := r.URL.Query().Get("symbol")

	var (
		notifs []*models.Notification
		err    error
	)
	if symbol != "" {
		notifs, err = h.notifications.GetBySymbol(r.Context(), symbol, limit)
	} else {
		notifs, err = h.notifications.GetRecent(r.Context(), limit)
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: notifs,
		Total:         len(notifs),
	})
}

// ClearNotificationsResponse представляет ответ очистки журнала
type ClearNotificationsResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// ClearNotifications удаляет старые уведомления
//
// DELETE /api/v1/notifications
//
// Query параметры:
// - older_than_days (int): возраст записей в сутках (по умолчанию 30)
//
// Удаление необратимо.
//
// HTTP коды:
// - 200 OK: успешно, возвращает число удалённых записей
// - 400 Bad Request: некорректный параметр
// - 500 Internal Server Error: ошибка БД
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("older_than_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid older_than_days parameter")
			return
		}
		days = parsed
	}

	deleted, err := h.notifications.DeleteOlderThan(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to clear notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, ClearNotificationsResponse{
		Message: "Notifications cleared successfully",
		Deleted: deleted,
	})
}
