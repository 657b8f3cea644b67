package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"dcabot/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки репозитория уведомлений
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository - работа с таблицей notifications
//
// Назначение: журнал событий движка (входы, усреднения, тейки, стопы,
// замки, рестарты) для API статуса и истории Telegram-рассылки.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create создает новое уведомление
func (r *NotificationRepository) Create(ctx context.Context, notif *models.Notification) error {
	query := `
		INSERT INTO notifications (timestamp, type, severity, symbol, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}

	var meta []byte
	if notif.Meta != nil {
		data, err := json.Marshal(notif.Meta)
		if err != nil {
			return err
		}
		meta = data
	}

	return r.db.QueryRowContext(
		ctx,
		query,
		notif.Timestamp,
		notif.Type,
		notif.Severity,
		notif.Symbol,
		notif.Message,
		meta,
	).Scan(&notif.ID)
}

// GetRecent возвращает последние N уведомлений (новые первыми)
func (r *NotificationRepository) GetRecent(ctx context.Context, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, symbol, message, meta
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []*models.Notification
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, notif)
	}

	return notifs, rows.Err()
}

// GetBySymbol возвращает уведомления по инструменту (новые первыми)
func (r *NotificationRepository) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, symbol, message, meta
		FROM notifications
		WHERE symbol = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []*models.Notification
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, notif)
	}

	return notifs, rows.Err()
}

// DeleteOlderThan удаляет уведомления старше указанного возраста.
// Возвращает количество удаленных записей.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM notifications WHERE timestamp < $1`

	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// scanNotification сканирует строку уведомления с распаковкой meta
func scanNotification(rows *sql.Rows) (*models.Notification, error) {
	notif := &models.Notification{}
	var symbol sql.NullString
	var meta []byte

	err := rows.Scan(
		&notif.ID,
		&notif.Timestamp,
		&notif.Type,
		&notif.Severity,
		&symbol,
		&notif.Message,
		&meta,
	)
	if err != nil {
		return nil, err
	}

	notif.Symbol = symbol.String
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &notif.Meta); err != nil {
			return nil, err
		}
	}

	return notif, nil
}
