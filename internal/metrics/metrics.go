// Package metrics is the node's ambient observability layer: Prometheus
// counters/gauges in the style of froz-husain-PairDB's internal/metrics,
// and a zap logger constructed the way storage-node/cmd/storage/main.go
// builds its own. Nothing in internal/gmu or internal/commitmgr depends
// on behavior here — these are pure instrumentation hooks a node passes
// down, matching spec.md's treatment of JMX/MBean exposure as outside
// the algorithm's own concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector a node registers.
type Metrics struct {
	Registry         *prometheus.Registry
	CommitLogDepth   prometheus.Gauge
	QueueDepth       prometheus.Gauge
	CommitsApplied   prometheus.Counter
	AbortsByReason   *prometheus.CounterVec
	ReadWaitDuration prometheus.Histogram
}

// New creates a node's metrics against a fresh registry, rather than
// the global default one, so an in-process cluster of several nodes
// (cmd/gmunode) can each call New without colliding on duplicate
// collector names.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		CommitLogDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gmu_commit_log_depth",
			Help: "Number of entries currently linked into the commit log.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gmu_sorted_queue_depth",
			Help: "Number of transactions currently held in the sorted transaction queue.",
		}),
		CommitsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "gmu_commits_applied_total",
			Help: "Total number of transactions applied to the store.",
		}),
		AbortsByReason: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gmu_aborts_total",
			Help: "Total number of aborted transactions, by reason.",
		}, []string{"reason"}),
		ReadWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gmu_read_version_wait_seconds",
			Help:    "Time a read transaction spent waiting for its snapshot version to become available.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordAbort increments the abort counter for reason (a short, stable
// label such as "read_set_invalid" or "conflict").
func (m *Metrics) RecordAbort(reason string) {
	m.AbortsByReason.WithLabelValues(reason).Inc()
}
