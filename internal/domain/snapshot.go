package domain

import "time"

// Trend is the direction of a target's sentiment across recent cycles.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// SentimentSnapshot is the per-target result of one aggregation cycle.
// Snapshots are superseded, never mutated; the store keeps a bounded
// history per target for trend computation.
type SentimentSnapshot struct {
	Target           TargetID
	NetSentiment     int64
	AverageIntensity float64
	TotalSubmissions int64
	TierBreakdown    map[Tier]int64
	Trend            Trend
	Volatile         bool
	ChangePercent    float64
	CycleSeq         uint64
	CycleTime        time.Time
}

// VolatilitySpike records one target crossing the volatility threshold.
// AuditRef is a content address over the spike's canonical form so external
// auditors can reference it without trusting this process's IDs.
type VolatilitySpike struct {
	Target        TargetID
	Before        int64
	After         int64
	ChangePercent float64
	AuditRef      string
	CycleSeq      uint64
	CycleTime     time.Time
}

// HealthLevel classifies the pipeline-wide condition after a cycle.
type HealthLevel string

const (
	HealthExcellent  HealthLevel = "excellent"
	HealthGood       HealthLevel = "good"
	HealthConcerning HealthLevel = "concerning"
	HealthCritical   HealthLevel = "critical"
)

// Degraded reports whether the level should dampen downstream effects.
func (h HealthLevel) Degraded() bool {
	return h == HealthConcerning || h == HealthCritical
}

// CycleResult is everything one aggregation cycle produced, published on
// the event bus and consumed by alerting, rewards, and fusion.
type CycleResult struct {
	Seq           uint64
	StartedAt     time.Time
	CompletedAt   time.Time
	Snapshots     []SentimentSnapshot
	Spikes        []VolatilitySpike
	Health        HealthLevel
	MeanSentiment float64
}

// VolatileCount is the number of targets that spiked this cycle.
func (r CycleResult) VolatileCount() int {
	return len(r.Spikes)
}
