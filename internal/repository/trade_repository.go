package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dcabot/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
//
// Назначение: история завершённых сделок (полные и частичные закрытия)
// для API статуса и дневной статистики.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// SaveTrade создает запись о завершённой сделке
func (r *TradeRepository) SaveTrade(ctx context.Context, trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (symbol, side, qty, price, avg_entry, pnl, reason, dca_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}

	return r.db.QueryRowContext(
		ctx,
		query,
		trade.Symbol,
		trade.Side,
		trade.Qty,
		trade.Price,
		trade.AvgEntry,
		trade.Pnl,
		trade.Reason,
		trade.DCACount,
		trade.CreatedAt,
	).Scan(&trade.ID)
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(ctx context.Context, id int) (*models.TradeRecord, error) {
	query := `
		SELECT id, symbol, side, qty, price, avg_entry, pnl, reason, dca_count, created_at
		FROM trades
		WHERE id = $1`

	trade := &models.TradeRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&trade.ID,
		&trade.Symbol,
		&trade.Side,
		&trade.Qty,
		&trade.Price,
		&trade.AvgEntry,
		&trade.Pnl,
		&trade.Reason,
		&trade.DCACount,
		&trade.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetRecent возвращает последние сделки (новые первыми)
func (r *TradeRepository) GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, symbol, side, qty, price, avg_entry, pnl, reason, dca_count, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`

	return r.queryTrades(ctx, query, limit)
}

// GetBySymbol возвращает сделки по инструменту (новые первыми)
func (r *TradeRepository) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, symbol, side, qty, price, avg_entry, pnl, reason, dca_count, created_at
		FROM trades
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryTrades(ctx, query, symbol, limit)
}

// GetStats возвращает агрегированную статистику за день/неделю/месяц.
// Границы периодов считаются по UTC.
func (r *TradeRepository) GetStats(ctx context.Context) (*models.TradeStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(pnl), 0),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COALESCE(SUM(pnl) FILTER (WHERE created_at >= $1), 0),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COALESCE(SUM(pnl) FILTER (WHERE created_at >= $2), 0),
			COUNT(*) FILTER (WHERE created_at >= $3),
			COALESCE(SUM(pnl) FILTER (WHERE created_at >= $3), 0)
		FROM trades`

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.AddDate(0, 0, -7)
	monthStart := now.AddDate(0, -1, 0)

	stats := &models.TradeStats{}
	err := r.db.QueryRowContext(ctx, query, dayStart, weekStart, monthStart).Scan(
		&stats.TotalTrades,
		&stats.TotalPnl,
		&stats.TodayTrades,
		&stats.TodayPnl,
		&stats.WeekTrades,
		&stats.WeekPnl,
		&stats.MonthTrades,
		&stats.MonthPnl,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOlderThan удаляет сделки старше указанного возраста.
// Возвращает количество удаленных записей.
func (r *TradeRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM trades WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// queryTrades выполняет запрос списка сделок и сканирует строки
func (r *TradeRepository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*models.TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&trade.Side,
			&trade.Qty,
			&trade.Price,
			&trade.AvgEntry,
			&trade.Pnl,
			&trade.Reason,
			&trade.DCACount,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}
