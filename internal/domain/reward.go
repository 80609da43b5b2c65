package domain

import "time"

// RewardSignal is a mint recommendation emitted by the reward agent.
// It is advisory: the pipeline signals, an external disbursement
// collaborator decides and flips Processed exactly once.
type RewardSignal struct {
	ID          string
	SubmitterID string
	Target      TargetID
	Tier        Tier
	Amount      float64
	Reason      string
	CreatedAt   time.Time
	Processed   bool
	ProcessedAt time.Time
}

// SignalKey identifies the cooldown scope of a reward signal.
type SignalKey struct {
	SubmitterID string
	Target      TargetID
	Tier        Tier
}

// Key returns the signal's cooldown scope.
func (s RewardSignal) Key() SignalKey {
	return SignalKey{SubmitterID: s.SubmitterID, Target: s.Target, Tier: s.Tier}
}
