package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics holds Prometheus metrics for the submission admission path.
type IntakeMetrics struct {
	SubmissionsTotal         *prometheus.CounterVec
	AdmissionDuration        prometheus.Histogram
	ApplyDuration            prometheus.Histogram
	WriteConsistencyFailures prometheus.Counter
}

// NewIntakeMetrics creates and registers admission metrics on the given registry.
func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of submissions handled, by result.",
		}, []string{"result"}),
		AdmissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Duration of full gateway admission in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delta_apply_duration_seconds",
			Help:      "Duration of delta-store apply in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		WriteConsistencyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_consistency_failures_total",
			Help:      "Total number of post-write delta verifications that failed.",
		}),
	}

	reg.MustRegister(m.SubmissionsTotal, m.AdmissionDuration, m.ApplyDuration, m.WriteConsistencyFailures)
	return m
}
