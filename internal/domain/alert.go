package domain

import "time"

// AlertSeverity grades an alert. Spikes use medium and critical; system
// degradation uses medium and high depending on pipeline health.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// ParseSeverity validates the wire form of a severity.
func ParseSeverity(s string) (AlertSeverity, bool) {
	switch AlertSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return AlertSeverity(s), true
	default:
		return "", false
	}
}

// AlertType distinguishes per-target spikes from pipeline-wide conditions.
type AlertType string

const (
	AlertVolatilitySpike   AlertType = "volatility_spike"
	AlertSystemDegradation AlertType = "system_degradation"
)

// Alert is one emitted alerting event. Alerts are immutable once appended
// except BroadcastDone, which flips to true exactly once on acknowledgment.
type Alert struct {
	ID                string
	Type              AlertType
	Severity          AlertSeverity
	Target            TargetID
	Metrics           map[string]float64
	BroadcastRequired bool
	BroadcastDone     bool
	CreatedAt         time.Time
}

// PendingBroadcast reports whether the alert still awaits its broadcast ack.
func (a Alert) PendingBroadcast() bool {
	return a.BroadcastRequired && !a.BroadcastDone
}

// IsSystemWide reports whether the alert concerns the whole pipeline
// rather than a single target.
func (a Alert) IsSystemWide() bool {
	return a.Type == AlertSystemDegradation
}
