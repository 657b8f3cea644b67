package models

import "time"

// TradeRecord - запись о завершённой сделке (полное или частичное закрытие).
//
// Пишется в БД при каждом закрытии для истории и дневной статистики.
type TradeRecord struct {
	ID        int       `json:"id" db:"id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Side      string    `json:"side" db:"side"` // направление закрытого объёма: Buy, Sell
	Qty       float64   `json:"qty" db:"qty"`
	Price     float64   `json:"price" db:"price"`         // цена закрытия
	AvgEntry  float64   `json:"avg_entry" db:"avg_entry"` // средняя цена входа
	Pnl       float64   `json:"pnl" db:"pnl"`
	Reason    string    `json:"reason" db:"reason"` // сигнал: HARD_SL, SOFT_SL, TP, TP1, TP2, TRAIL, TIMEOUT, DCA_FLIP
	DCACount  int       `json:"dca_count" db:"dca_count"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TradeStats - агрегированная статистика сделок для API.
type TradeStats struct {
	TotalTrades int     `json:"total_trades"`
	TotalPnl    float64 `json:"total_pnl"`
	TodayTrades int     `json:"today_trades"`
	TodayPnl    float64 `json:"today_pnl"`
	WeekTrades  int     `json:"week_trades"`
	WeekPnl     float64 `json:"week_pnl"`
	MonthTrades int     `json:"month_trades"`
	MonthPnl    float64 `json:"month_pnl"`
}
