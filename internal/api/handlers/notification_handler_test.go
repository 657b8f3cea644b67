package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dcabot/internal/models"
)

// ============ NotificationHandler Tests ============

func TestNotificationHandler_GetNotifications(t *testing.T) {
	sample := []*models.Notification{
		{ID: 2, Timestamp: time.Now(), Type: models.NotificationTypeEntry, Severity: models.SeverityInfo, Symbol: "BTCUSDT", Message: "вход"},
		{ID: 1, Timestamp: time.Now().Add(-time.Hour), Type: models.NotificationTypeSL, Severity: models.SeverityWarn, Symbol: "ETHUSDT", Message: "стоп"},
	}

	t.Run("returns recent notifications", func(t *testing.T) {
		source := &mockNotificationSource{notifs: sample}
		handler := NewNotificationHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetNotificationsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 2 {
			t.Errorf("expected total 2, got %d", response.Total)
		}
	})

	t.Run("filters by symbol", func(t *testing.T) {
		source := &mockNotificationSource{notifs: sample}
		handler := NewNotificationHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?symbol=ETHUSDT", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		var response GetNotificationsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 1 {
			t.Fatalf("expected total 1, got %d", response.Total)
		}
		if response.Notifications[0].Symbol != "ETHUSDT" {
			t.Errorf("expected ETHUSDT, got %q", response.Notifications[0].Symbol)
		}
	})

	t.Run("store error returns 500", func(t *testing.T) {
		source := &mockNotificationSource{err: errors.New("соединение с БД потеряно")}
		handler := NewNotificationHandler(source)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestNotificationHandler_ClearNotifications(t *testing.T) {
	t.Run("clears with default age", func(t *testing.T) {
		source := &mockNotificationSource{deleted: 7}
		handler := NewNotificationHandler(source)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/notifications", nil)
		w := httptest.NewRecorder()

		handler.ClearNotifications(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if source.lastAge != 30*24*time.Hour {
			t.Errorf("expected default age 720h, got %v", source.lastAge)
		}

		var response ClearNotificationsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Deleted != 7 {
			t.Errorf("expected 7 deleted, got %d", response.Deleted)
		}
	})

	t.Run("accepts custom age", func(t *testing.T) {
		source := &mockNotificationSource{}
		handler := NewNotificationHandler(source)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/notifications?older_than_days=7", nil)
		w := httptest.NewRecorder()

		handler.ClearNotifications(w, req)

		if source.lastAge != 7*24*time.Hour {
			t.Errorf("expected age 168h, got %v", source.lastAge)
		}
	})

	t.Run("rejects invalid age", func(t *testing.T) {
		source := &mockNotificationSource{}
		handler := NewNotificationHandler(source)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/notifications?older_than_days=abc", nil)
		w := httptest.NewRecorder()

		handler.ClearNotifications(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("store error returns 500", func(t *testing.T) {
		source := &mockNotificationSource{err: errors.New("соединение с БД потеряно")}
		handler := NewNotificationHandler(source)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/notifications", nil)
		w := httptest.NewRecorder()

		handler.ClearNotifications(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
