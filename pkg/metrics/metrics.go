package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_sweep_runs_total",
			Help: "Sweep runs by task and final status",
		},
		[]string{"task", "status"},
	)

	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surge_sweep_duration_seconds",
			Help:    "Duration of sweep runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	SweepItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_sweep_items_total",
			Help: "Items processed inside sweeps by outcome (succeeded, failed, skipped)",
		},
		[]string{"task", "outcome"},
	)

	SignalsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_signals_created_total",
			Help: "Signals persisted by pattern",
		},
		[]string{"pattern"},
	)

	SignalsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_signals_closed_total",
			Help: "Signals reaching a terminal status",
		},
		[]string{"status", "reason"},
	)

	AutoTradeDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_auto_trade_decisions_total",
			Help: "Auto-trade decisions by outcome",
		},
		[]string{"outcome"},
	)

	ExchangeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_exchange_requests_total",
			Help: "Exchange API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	ExchangeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surge_exchange_request_duration_seconds",
			Help:    "Exchange API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SweepRunsTotal,
		SweepDuration,
		SweepItemsTotal,
		SignalsCreatedTotal,
		SignalsClosedTotal,
		AutoTradeDecisionsTotal,
		ExchangeRequestsTotal,
		ExchangeRequestDuration,
	)
}
