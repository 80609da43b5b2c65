package metrics

import "github.com/prometheus/client_golang/prometheus"

// RewardMetrics holds Prometheus metrics for the reward-trigger agent.
type RewardMetrics struct {
	SignalsTotal     *prometheus.CounterVec
	SkippedTriggers  *prometheus.CounterVec
	SignalsProcessed prometheus.Counter
}

// NewRewardMetrics creates and registers reward metrics on the given registry.
func NewRewardMetrics(reg prometheus.Registerer) *RewardMetrics {
	m := &RewardMetrics{
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_signals_total",
			Help:      "Total number of reward signals emitted, by tier.",
		}, []string{"tier"}),
		SkippedTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_triggers_skipped_total",
			Help:      "Total number of candidate triggers dropped, by gate.",
		}, []string{"gate"}),
		SignalsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_signals_processed_total",
			Help:      "Total number of signals marked processed by the disbursement collaborator.",
		}),
	}

	reg.MustRegister(m.SignalsTotal, m.SkippedTriggers, m.SignalsProcessed)
	return m
}
