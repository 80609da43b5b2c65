// Package alerting turns aggregation cycle results into classified
// alerts, keeps the alert log, and drives the broadcast lifecycle for
// alerts that must reach federated consumers.
package alerting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

const (
	// criticalSpikeThreshold is the change fraction at which a spike is
	// graded critical instead of medium.
	criticalSpikeThreshold = 0.30

	// broadcastThreshold is the change fraction at which a spike must be
	// broadcast to federated consumers.
	broadcastThreshold = 0.25

	// degradationDedupWindow bounds system degradation alerts to one per
	// rolling hour.
	degradationDedupWindow = time.Hour
)

// Monitor consumes cycle results: classifies spikes, raises deduplicated
// system degradation alerts, and offers pending alerts to the broadcast
// sink.
type Monitor struct {
	alerts  domain.AlertLog
	sink    domain.BroadcastSink
	metrics *metrics.AlertMetrics
	clock   clockwork.Clock

	// offered tracks alerts already handed to the sink in this process,
	// so an unacknowledged alert is not dispatched twice while the ack
	// is still in flight. Failed offers stay out of the set and are
	// retried next cycle.
	mu      sync.Mutex
	offered map[string]struct{}
}

// NewMonitor creates the alert monitor. sink may be nil when no broadcast
// transport is configured; pending alerts then wait for acknowledgment via
// the admin API alone.
func NewMonitor(alerts domain.AlertLog, sink domain.BroadcastSink, m *metrics.AlertMetrics, clock clockwork.Clock) *Monitor {
	return &Monitor{
		alerts:  alerts,
		sink:    sink,
		metrics: m,
		clock:   clock,
		offered: make(map[string]struct{}),
	}
}

// HandleCycle evaluates one cycle result. Failures are logged and counted;
// alerting never fails the cycle that produced the input.
func (m *Monitor) HandleCycle(ctx context.Context, result domain.CycleResult) {
	now := m.clock.Now()

	for _, spike := range result.Spikes {
		m.raise(ctx, spikeAlert(spike, now))
	}
	if result.Health.Degraded() {
		m.raiseDegradation(ctx, result, now)
	}

	m.dispatchPending(ctx)
}

func (m *Monitor) raise(ctx context.Context, alert domain.Alert) {
	if err := m.alerts.Append(ctx, alert); err != nil {
		slog.ErrorContext(ctx, "alert append failed",
			"alert_type", string(alert.Type),
			"target_id", alert.Target.String(),
			"error", err,
		)
		return
	}
	m.metrics.AlertsTotal.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	slog.WarnContext(ctx, "alert raised",
		"alert_id", alert.ID,
		"alert_type", string(alert.Type),
		"severity", string(alert.Severity),
		"target_id", alert.Target.String(),
		"broadcast_required", alert.BroadcastRequired,
	)
}

func (m *Monitor) raiseDegradation(ctx context.Context, result domain.CycleResult, now time.Time) {
	last, err := m.alerts.LastSystemAlert(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "system alert dedup lookup failed", "error", err)
		return
	}
	if !last.IsZero() && now.Sub(last) < degradationDedupWindow {
		return
	}

	severity := domain.SeverityMedium
	if result.Health == domain.HealthCritical {
		severity = domain.SeverityHigh
	}
	m.raise(ctx, domain.Alert{
		ID:       uuid.NewString(),
		Type:     domain.AlertSystemDegradation,
		Severity: severity,
		Metrics: map[string]float64{
			"volatile_targets": float64(result.VolatileCount()),
			"mean_sentiment":   result.MeanSentiment,
			"cycle_seq":        float64(result.Seq),
		},
		CreatedAt: now,
	})
}

// dispatchPending offers every pending alert to the sink, skipping alerts
// already offered and not yet acknowledged.
func (m *Monitor) dispatchPending(ctx context.Context) {
	if m.sink == nil {
		return
	}
	pending, err := m.alerts.PendingBroadcast(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "pending broadcast lookup failed", "error", err)
		return
	}

	for _, alert := range pending {
		if m.alreadyOffered(alert.ID) {
			continue
		}
		if err := m.sink.BroadcastAlert(ctx, alert); err != nil {
			m.metrics.BroadcastFailures.Inc()
			slog.ErrorContext(ctx, "broadcast dispatch failed",
				"alert_id", alert.ID,
				"error", err,
			)
			continue
		}
		m.markOffered(alert.ID)
		m.metrics.BroadcastsDispatched.Inc()
	}
}

// AcknowledgeBroadcast marks an alert's broadcast complete. Repeat
// acknowledgments are no-ops.
func (m *Monitor) AcknowledgeBroadcast(ctx context.Context, alertID string) error {
	if err := m.alerts.MarkBroadcastDone(ctx, alertID); err != nil {
		return err
	}
	m.metrics.BroadcastsAcked.Inc()

	m.mu.Lock()
	delete(m.offered, alertID)
	m.mu.Unlock()
	return nil
}

// Alerts lists logged alerts, optionally filtered by severity, newest first.
func (m *Monitor) Alerts(ctx context.Context, severity *domain.AlertSeverity, since time.Time) ([]domain.Alert, error) {
	return m.alerts.ListSince(ctx, severity, since)
}

func (m *Monitor) alreadyOffered(alertID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.offered[alertID]
	return ok
}

func (m *Monitor) markOffered(alertID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offered[alertID] = struct{}{}
}

func spikeAlert(spike domain.VolatilitySpike, now time.Time) domain.Alert {
	severity := domain.SeverityMedium
	if spike.ChangePercent >= criticalSpikeThreshold {
		severity = domain.SeverityCritical
	}
	return domain.Alert{
		ID:       uuid.NewString(),
		Type:     domain.AlertVolatilitySpike,
		Severity: severity,
		Target:   spike.Target,
		Metrics: map[string]float64{
			"change_percent": spike.ChangePercent,
			"before":         float64(spike.Before),
			"after":          float64(spike.After),
			"cycle_seq":      float64(spike.CycleSeq),
		},
		BroadcastRequired: spike.ChangePercent >= broadcastThreshold,
		CreatedAt:         now,
	}
}
