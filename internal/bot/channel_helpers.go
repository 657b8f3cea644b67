package bot

import "dcabot/internal/models"

// tryEnqueueNotification отправляет уведомление в канал без блокировки.
// Переполнение буфера учитывается в метриках, уведомление отбрасывается.
func tryEnqueueNotification(ch chan<- *models.Notification, notif *models.Notification) bool {
	if ch == nil || notif == nil {
		return false
	}

	select {
	case ch <- notif:
		return true
	default:
		RecordBufferOverflow("notification")
		return false
	}
}
