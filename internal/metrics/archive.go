package metrics

import "github.com/prometheus/client_golang/prometheus"

// ArchiveMetrics holds Prometheus metrics for the durable archive.
type ArchiveMetrics struct {
	WritesTotal   *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewArchiveMetrics creates and registers archive metrics on the given registry.
func NewArchiveMetrics(reg prometheus.Registerer) *ArchiveMetrics {
	m := &ArchiveMetrics{
		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Total archive writes by record kind and status.",
		}, []string{"kind", "status"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "query_duration_seconds",
			Help:      "Archive query duration in seconds by query kind.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"query"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "query_errors_total",
			Help:      "Total archive query errors by query kind.",
		}, []string{"query"}),
	}

	reg.MustRegister(m.WritesTotal, m.QueryDuration, m.QueryErrors)
	return m
}
