package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// --- Balance reconstruction ---
	RecomputeTotal        *prometheus.CounterVec
	RecomputeDuration     prometheus.Histogram
	RecomputeEventsFolded prometheus.Histogram

	// --- Trade analytics ---
	QueryTotal         *prometheus.CounterVec
	QueryDuration      prometheus.Histogram
	QueryTradesScanned prometheus.Histogram

	// --- Persistence ---
	StoreErrors *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	durationBuckets := []float64{
		0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
	}

	return &Metrics{
		RecomputeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wlog_recompute_total",
			Help: "Balance reconstructions by outcome",
		}, []string{"outcome"}),

		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wlog_recompute_duration_seconds",
			Help:    "Time to replay and persist one account's ledger",
			Buckets: durationBuckets,
		}),

		RecomputeEventsFolded: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wlog_recompute_events_folded",
			Help:    "Ledger events folded per reconstruction",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),

		QueryTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wlog_trade_query_total",
			Help: "Trade filter queries by outcome",
		}, []string{"outcome"}),

		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wlog_trade_query_duration_seconds",
			Help:    "Time to filter, aggregate and page one trade query",
			Buckets: durationBuckets,
		}),

		QueryTradesScanned: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wlog_trade_query_trades_scanned",
			Help:    "Closed trades read per query before filtering",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),

		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wlog_store_errors_total",
			Help: "Persistence errors by operation",
		}, []string{"op"}),
	}
}
