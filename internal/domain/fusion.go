package domain

import "time"

// FusionEligibility is the cross-target reconciliation verdict for one
// target: whether its sentiment magnitude clears the fusion threshold.
// Dampened entries stay in the summary; degraded health scales the
// effective count instead of excluding them.
type FusionEligibility struct {
	Target       TargetID
	NetSentiment int64
	Eligible     bool
	Dampened     bool
}

// LedgerSyncResult summarizes one reconciliation sweep for external
// treasury and ledger collaborators.
type LedgerSyncResult struct {
	EntriesSynced   int
	TargetsAffected int
	RewardCount     int
	SyncedAt        time.Time
}

// FusionSummary is the outcome of one fusion pass. EffectiveEligible is
// the raw eligible count after health dampening.
type FusionSummary struct {
	GeneratedAt       time.Time
	CycleSeq          uint64
	Entries           []FusionEligibility
	EligibleCount     int
	EffectiveEligible float64
	Dampened          bool
	Health            HealthLevel
	Ledger            LedgerSyncResult
}
