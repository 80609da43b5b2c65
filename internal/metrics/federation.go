package metrics

import "github.com/prometheus/client_golang/prometheus"

// FederationMetrics holds Prometheus metrics for the federation relay hub.
type FederationMetrics struct {
	ActiveClients   prometheus.Gauge
	AlertsPublished prometheus.Counter
	ClientsEvicted  prometheus.Counter
}

// NewFederationMetrics creates and registers relay metrics on the given registry.
func NewFederationMetrics(reg prometheus.Registerer) *FederationMetrics {
	m := &FederationMetrics{
		ActiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "active_clients",
			Help:      "Number of connected federation relay clients.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "alerts_published_total",
			Help:      "Total number of alerts fanned out to relay clients.",
		}),
		ClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "clients_evicted_total",
			Help:      "Total number of relay clients evicted for slow consumption.",
		}),
	}

	reg.MustRegister(m.ActiveClients, m.AlertsPublished, m.ClientsEvicted)
	return m
}
