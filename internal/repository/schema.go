package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Схема БД создается при старте. ALTER-миграций нет: таблицы
// append-only, структура меняется только с новыми колонками.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id SERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		qty DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		avg_entry DOUBLE PRECISION NOT NULL,
		pnl DOUBLE PRECISION NOT NULL,
		reason TEXT NOT NULL,
		dca_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades (symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades (created_at)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		type TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'info',
		symbol TEXT,
		message TEXT NOT NULL,
		meta JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_timestamp ON notifications (timestamp)`,
}

// EnsureSchema создает таблицы и индексы, если их еще нет
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("создание схемы БД: %w", err)
		}
	}
	return nil
}
