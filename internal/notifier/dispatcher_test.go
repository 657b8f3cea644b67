package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dcabot/internal/config"
	"dcabot/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	created []*models.Notification
	err     error
}

func (s *fakeStore) Create(ctx context.Context, notif *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, notif)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func TestDispatcher_PersistsNotifications(t *testing.T) {
	ch := make(chan *models.Notification, 8)
	store := &fakeStore{}
	d := NewDispatcher(ch, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	ch <- &models.Notification{Type: models.NotificationTypeEntry, Symbol: "BTCUSDT", Message: "вход"}
	ch <- &models.Notification{Type: models.NotificationTypeClose, Symbol: "BTCUSDT", Message: "закрытие"}

	deadline := time.After(2 * time.Second)
	for store.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("записано %d уведомлений из 2", store.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestDispatcher_StoreErrorDoesNotStop(t *testing.T) {
	ch := make(chan *models.Notification, 8)
	store := &fakeStore{err: errors.New("database error")}
	d := NewDispatcher(ch, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	ch <- &models.Notification{Type: models.NotificationTypeError, Message: "ошибка"}
	ch <- &models.Notification{Type: models.NotificationTypeError, Message: "ещё ошибка"}

	// Диспетчер остаётся жив после сбоев БД
	select {
	case <-done:
		t.Fatal("диспетчер остановился после ошибки БД")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTelegramSender_DisabledIsNoop(t *testing.T) {
	s := NewTelegramSender(config.TelegramConfig{Enabled: false}, nil)
	if s.Enabled() {
		t.Error("отправитель без токена не должен быть включён")
	}
	if err := s.Send(context.Background(), "test"); err != nil {
		t.Errorf("no-op отправка вернула ошибку: %v", err)
	}
}

func TestTelegramSender_RequiresToken(t *testing.T) {
	s := NewTelegramSender(config.TelegramConfig{Enabled: true, ChatID: "42"}, nil)
	if s.Enabled() {
		t.Error("отправитель без токена не должен быть включён")
	}
}

func TestDispatcher_Format(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)

	plain := d.format(&models.Notification{Severity: models.SeverityInfo, Message: "вход"})
	if plain != "вход" {
		t.Errorf("неожиданный текст: %q", plain)
	}

	errText := d.format(&models.Notification{Severity: models.SeverityError, Message: "сбой"})
	if errText == "сбой" {
		t.Error("сообщение об ошибке должно получать пометку важности")
	}
}
