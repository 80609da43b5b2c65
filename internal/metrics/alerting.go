package metrics

import "github.com/prometheus/client_golang/prometheus"

// AlertMetrics holds Prometheus metrics for the alert monitor.
type AlertMetrics struct {
	AlertsTotal          *prometheus.CounterVec
	BroadcastsDispatched prometheus.Counter
	BroadcastsAcked      prometheus.Counter
	BroadcastFailures    prometheus.Counter
}

// NewAlertMetrics creates and registers alerting metrics on the given registry.
func NewAlertMetrics(reg prometheus.Registerer) *AlertMetrics {
	m := &AlertMetrics{
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of alerts raised, by type and severity.",
		}, []string{"type", "severity"}),
		BroadcastsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_broadcasts_dispatched_total",
			Help:      "Total number of alerts offered to the broadcast sink.",
		}),
		BroadcastsAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_broadcasts_acked_total",
			Help:      "Total number of broadcast acknowledgments received.",
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_broadcast_failures_total",
			Help:      "Total number of failed broadcast dispatch attempts.",
		}),
	}

	reg.MustRegister(m.AlertsTotal, m.BroadcastsDispatched, m.BroadcastsAcked, m.BroadcastFailures)
	return m
}
