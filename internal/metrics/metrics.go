// Package metrics exposes the exchange's Prometheus instrumentation:
// orders processed, trades executed, per-stage queue depth, and
// pending-request count. No HTTP /metrics exporter is wired here —
// the Registry is exposed for a transport layer to serve.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exchange holds every counter/gauge the core registers. The core
// updates OrdersSubmitted, OrdersRejected, TradesExecuted and
// TradeVolume; QueueDepth, PendingRequests and FeesCollected are
// registered but nothing in the core sets them, so they read zero.
type Exchange struct {
	Registry *prometheus.Registry

	OrdersSubmitted   prometheus.Counter
	OrdersRejected    *prometheus.CounterVec
	TradesExecuted    prometheus.Counter
	TradeVolume       prometheus.Counter
	QueueDepth        *prometheus.GaugeVec
	PendingRequests   prometheus.Gauge
	FeesCollected     prometheus.Counter
}

// New constructs and registers every metric against a fresh registry.
func New() *Exchange {
	registry := prometheus.NewRegistry()

	m := &Exchange{
		Registry: registry,
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_orders_submitted_total",
			Help: "Total number of orders accepted by the response coordinator.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_orders_rejected_total",
			Help: "Total number of orders rejected, by error code.",
		}, []string{"error_code"}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_trades_executed_total",
			Help: "Total number of trades produced by either matching engine.",
		}),
		TradeVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_trade_volume_total",
			Help: "Total traded quantity across all instruments.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exchange_queue_depth",
			Help: "Approximate depth of each pipeline stage's input queue.",
		}, []string{"stage"}),
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_pending_requests",
			Help: "Number of requests currently registered with the response coordinator.",
		}),
		FeesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_fees_collected_total",
			Help: "Sum of maker rebates and taker fees applied across all trades (signed).",
		}),
	}

	registry.MustRegister(
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.TradesExecuted,
		m.TradeVolume,
		m.QueueDepth,
		m.PendingRequests,
		m.FeesCollected,
	)
	return m
}

// RecordTrade updates trade-count and volume counters for one fill.
func (m *Exchange) RecordTrade(quantity int64) {
	m.TradesExecuted.Inc()
	m.TradeVolume.Add(float64(quantity))
}

// RecordRejection increments the per-error-code rejection counter.
func (m *Exchange) RecordRejection(errorCode string) {
	m.OrdersRejected.WithLabelValues(errorCode).Inc()
}
