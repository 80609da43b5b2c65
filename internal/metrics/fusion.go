package metrics

import "github.com/prometheus/client_golang/prometheus"

// FusionMetrics holds Prometheus metrics for the fusion coordinator.
type FusionMetrics struct {
	SweepsTotal         prometheus.Counter
	SweepDuration       prometheus.Histogram
	EligibleTargets     prometheus.Gauge
	EffectiveEligible   prometheus.Gauge
	LedgerEntriesSynced prometheus.Counter
}

// NewFusionMetrics creates and registers fusion metrics on the given registry.
func NewFusionMetrics(reg prometheus.Registerer) *FusionMetrics {
	m := &FusionMetrics{
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_sweeps_total",
			Help:      "Total number of completed fusion reconciliation sweeps.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fusion_sweep_duration_seconds",
			Help:      "Duration of one fusion sweep in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		EligibleTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fusion_eligible_targets",
			Help:      "Number of fusion-eligible targets in the latest sweep.",
		}),
		EffectiveEligible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fusion_effective_eligible",
			Help:      "Eligible-target count after health dampening in the latest sweep.",
		}),
		LedgerEntriesSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_ledger_entries_synced_total",
			Help:      "Total number of ledger entries produced for external sync.",
		}),
	}

	reg.MustRegister(m.SweepsTotal, m.SweepDuration, m.EligibleTargets, m.EffectiveEligible, m.LedgerEntriesSynced)
	return m
}
