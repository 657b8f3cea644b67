package handlers

import (
	"context"
	"time"

	"dcabot/internal/bot"
	"dcabot/internal/models"
)

// ============ Mocks для handler-тестов ============

type mockPositionSource struct {
	snapshots []bot.PositionStatus
}

func (m *mockPositionSource) StatusSnapshots() []bot.PositionStatus {
	return m.snapshots
}

type mockGuardSource struct {
	snap bot.GuardSnapshot
}

func (m *mockGuardSource) Snapshot() bot.GuardSnapshot {
	return m.snap
}

type mockBalanceSource struct {
	equity float64
	err    error
}

func (m *mockBalanceSource) GetWalletBalance(ctx context.Context) (float64, error) {
	return m.equity, m.err
}

type mockTradeSource struct {
	trades []*models.TradeRecord
	stats  *models.TradeStats
	err    error

	lastSymbol string
	lastLimit  int
}

func (m *mockTradeSource) GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error) {
	m.lastLimit = limit
	return m.trades, m.err
}

func (m *mockTradeSource) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*models.TradeRecord, error) {
	m.lastSymbol = symbol
	m.lastLimit = limit

	out := make([]*models.TradeRecord, 0)
	for _, tr := range m.trades {
		if tr.Symbol == symbol {
			out = append(out, tr)
		}
	}
	return out, m.err
}

func (m *mockTradeSource) GetStats(ctx context.Context) (*models.TradeStats, error) {
	return m.stats, m.err
}

type mockNotificationSource struct {
	notifs  []*models.Notification
	deleted int64
	err     error

	lastSymbol string
	lastAge    time.Duration
}

func (m *mockNotificationSource) GetRecent(ctx context.Context, limit int) ([]*models.Notification, error) {
	return m.notifs, m.err
}

func (m *mockNotificationSource) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*models.Notification, error) {
	m.lastSymbol = symbol

	out := make([]*models.Notification, 0)
	for _, n := range m.notifs {
		if n.Symbol == symbol {
			out = append(out, n)
		}
	}
	return out, m.err
}

func (m *mockNotificationSource) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	m.lastAge = age
	return m.deleted, m.err
}
