package models

import "time"

// Notification представляет уведомление о событии
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`         // ENTRY, DCA, TP1, TP2, CLOSE, SL, HEDGE, LOCK, RESTART, ERROR
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	Symbol    string                 `json:"symbol,omitempty" db:"symbol"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeEntry   = "ENTRY"   // открытие позиции
	NotificationTypeDCA     = "DCA"     // усреднение
	NotificationTypeTP1     = "TP1"     // частичное закрытие по первому тейку
	NotificationTypeTP2     = "TP2"     // частичное закрытие по второму тейку
	NotificationTypeClose   = "CLOSE"   // полное закрытие позиции
	NotificationTypeSL      = "SL"      // срабатывание стопа
	NotificationTypeHedge   = "HEDGE"   // переворот позиции хеджем
	NotificationTypeLock    = "LOCK"    // дневной лимит: торговля остановлена
	NotificationTypeRestart = "RESTART" // рестарт движка символа
	NotificationTypeError   = "ERROR"   // ошибка API/ордера
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
