package metrics

import "github.com/prometheus/client_golang/prometheus"

// CycleMetrics holds Prometheus metrics for the aggregation engine.
type CycleMetrics struct {
	CyclesTotal     prometheus.Counter
	CycleDuration   prometheus.Histogram
	TicksSkipped    prometheus.Counter
	VolatileTargets prometheus.Gauge
	MeanSentiment   prometheus.Gauge
	HealthLevel     prometheus.Gauge
}

// NewCycleMetrics creates and registers aggregation metrics on the given registry.
func NewCycleMetrics(reg prometheus.Registerer) *CycleMetrics {
	m := &CycleMetrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_cycles_total",
			Help:      "Total number of completed aggregation cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_cycle_duration_seconds",
			Help:      "Duration of one aggregation cycle in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periodic_ticks_skipped_total",
			Help:      "Total number of periodic ticks skipped because the previous run was still busy.",
		}),
		VolatileTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volatile_targets",
			Help:      "Number of targets flagged volatile in the latest cycle.",
		}),
		MeanSentiment: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_sentiment",
			Help:      "Mean net sentiment across all targets in the latest cycle.",
		}),
		HealthLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_level",
			Help:      "Pipeline health of the latest cycle: 0 excellent, 1 good, 2 concerning, 3 critical.",
		}),
	}

	reg.MustRegister(m.CyclesTotal, m.CycleDuration, m.TicksSkipped, m.VolatileTargets, m.MeanSentiment, m.HealthLevel)
	return m
}
