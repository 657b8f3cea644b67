package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

// ============ Латентность ============

// TickProcessingLatency - время обработки одного тика движком символа
var TickProcessingLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "tick_processing_latency_ms",
		Help:      "Time to process one price tick in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	},
	[]string{"symbol"},
)

// OrderExecutionLatency - время исполнения ордера на бирже
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dcabot",
		Subsystem: "executor",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute order on the venue in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"symbol", "side"},
)

// ============ Счётчики событий ============

// SignalsTotal - сигналы процедуры выхода по типам
var SignalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "signals_total",
		Help:      "Total number of exit/DCA signals emitted",
	},
	[]string{"symbol", "signal"},
)

// TradesTotal - завершённые сделки
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "trades_total",
		Help:      "Total number of completed trades",
	},
	[]string{"symbol", "reason"},
)

// RealizedPnlTotal - суммарный реализованный PNL в USDT.
// Gauge, потому что PNL бывает отрицательным.
var RealizedPnlTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "realized_pnl_usdt_total",
		Help:      "Total realized PnL in USDT",
	},
)

// DCAFillsTotal - исполненные усреднения
var DCAFillsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "dca_fills_total",
		Help:      "Total number of executed scale-in fills",
	},
	[]string{"symbol"},
)

// HedgeFlipsTotal - выполненные хедж-перевороты
var HedgeFlipsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "hedge_flips_total",
		Help:      "Total number of hedge flips",
	},
	[]string{"symbol"},
)

// ============ Состояние ============

// OpenPositions - открытые позиции
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dcabot",
		Subsystem: "guard",
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// TotalRiskPercent - суммарный занятый риск
var TotalRiskPercent = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dcabot",
		Subsystem: "guard",
		Name:      "total_risk_percent",
		Help:      "Aggregate risk percent of open positions",
	},
)

// AdmissionsDenied - отказы guard по причинам
var AdmissionsDenied = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "guard",
		Name:      "admissions_denied_total",
		Help:      "Total number of denied position admissions",
	},
	[]string{"reason"},
)

// DailyLockActive - активность дневных замков (1 = активен)
var DailyLockActive = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dcabot",
		Subsystem: "guard",
		Name:      "daily_lock_active",
		Help:      "Daily trading lock state (1=locked)",
	},
	[]string{"lock"}, // drawdown, profit
)

// EngineRestarts - перезапуски движков супервизором
var EngineRestarts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "restarts_total",
		Help:      "Total number of engine restarts after crash",
	},
	[]string{"symbol"},
)

// ============ Производительность ============

// BufferOverflows - переполнения буферов каналов (события отброшены)
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "engine",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"}, // tick, notification
)

// OrderRetries - повторы запросов к бирже
var OrderRetries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dcabot",
		Subsystem: "executor",
		Name:      "order_retries_total",
		Help:      "Total number of venue call retries",
	},
	[]string{"symbol"},
)

// ============ Вспомогательные функции ============

// RecordSignal записывает сигнал процедуры выхода
func RecordSignal(symbol string, sig Signal) {
	if sig != SignalNone {
		SignalsTotal.WithLabelValues(symbol, string(sig)).Inc()
	}
}

// RecordTrade записывает завершённую сделку
func RecordTrade(symbol, reason string, pnl float64) {
	TradesTotal.WithLabelValues(symbol, reason).Inc()
	RealizedPnlTotal.Add(pnl)
}

// RecordOrderLatency записывает латентность исполнения ордера
func RecordOrderLatency(symbol, side string, latencyMs float64) {
	OrderExecutionLatency.WithLabelValues(symbol, side).Observe(latencyMs)
}

// RecordBufferOverflow записывает переполнение буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}

// RecordDenied записывает отказ в допуске
func RecordDenied(reason DenyReason) {
	AdmissionsDenied.WithLabelValues(string(reason)).Inc()
}

// UpdateGuardGauges обновляет gauge-метрики guard по снимку
func UpdateGuardGauges(snap GuardSnapshot) {
	OpenPositions.Set(float64(snap.OpenPositions))
	TotalRiskPercent.Set(snap.TotalRisk)
	setLockGauge("drawdown", snap.DrawdownLocked)
	setLockGauge("profit", snap.ProfitLocked)
}

func setLockGauge(name string, locked bool) {
	v := 0.0
	if locked {
		v = 1.0
	}
	DailyLockActive.WithLabelValues(name).Set(v)
}
