package notifier

import (
	"context"
	"fmt"

	"dcabot/internal/models"
	"dcabot/pkg/utils"
)

// NotificationStore - долговременный журнал уведомлений.
// Реализуется internal/repository.NotificationRepository.
type NotificationStore interface {
	Create(ctx context.Context, notif *models.Notification) error
}

// Dispatcher разгребает канал уведомлений движков: пишет журнал в БД
// и рассылает оператору в Telegram.
//
// Канал буферизованный, отправители не блокируются: переполнение
// роняет уведомление, а не тик-цикл движка.
type Dispatcher struct {
	ch       <-chan *models.Notification
	store    NotificationStore
	telegram *TelegramSender
	log      *utils.Logger
}

// NewDispatcher создает диспетчер поверх канала уведомлений
func NewDispatcher(ch <-chan *models.Notification, store NotificationStore, telegram *TelegramSender, log *utils.Logger) *Dispatcher {
	if log == nil {
		log = utils.L()
	}
	return &Dispatcher{
		ch:       ch,
		store:    store,
		telegram: telegram,
		log:      log.WithComponent("notifier"),
	}
}

// Run обрабатывает уведомления до отмены контекста.
// Сбой БД или Telegram логируется и не останавливает диспетчер.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-d.ch:
			if !ok {
				return
			}
			d.handle(ctx, notif)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, notif *models.Notification) {
	if d.store != nil {
		if err := d.store.Create(ctx, notif); err != nil {
			d.log.Error("уведомление не записано в журнал",
				utils.String("type", notif.Type),
				utils.Err(err))
		}
	}

	if d.telegram != nil && d.telegram.Enabled() {
		if err := d.telegram.Send(ctx, d.format(notif)); err != nil {
			d.log.Warn("уведомление не доставлено в Telegram",
				utils.String("type", notif.Type),
				utils.Err(err))
		}
	}
}

// format собирает текст сообщения для оператора.
// Движки уже включают символ в текст, поэтому добавляется только
// пометка важности для событий уровня warn и выше.
func (d *Dispatcher) format(notif *models.Notification) string {
	if notif.Severity == models.SeverityError {
		return fmt.Sprintf("⚠️ %s", notif.Message)
	}
	return notif.Message
}
