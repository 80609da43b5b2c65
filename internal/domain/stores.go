package domain

import (
	"context"
	"time"
)

// DeltaStore accumulates admitted submissions into per-target ledgers.
// ApplyDelta is idempotent on submission ID: replaying an already-applied
// submission returns the current ledger with applied=false and no error.
// Concurrent applies for the same target serialize inside the store;
// different targets proceed in parallel.
type DeltaStore interface {
	ApplyDelta(ctx context.Context, s Submission) (delta *TrustDelta, applied bool, err error)
	GetDelta(ctx context.Context, target TargetID) (*TrustDelta, error)
	// GetAll returns a snapshot-consistent copy of every ledger: readers
	// never observe a partially applied submission.
	GetAll(ctx context.Context) ([]*TrustDelta, error)
	// PurgeTarget is the only way a ledger ever resets.
	PurgeTarget(ctx context.Context, target TargetID) error
}

// ThrottleStore enforces the per-submitter submission window. Check never
// mutates; Commit consumes one slot after the submission is durably
// applied. Window and limit travel per call so admins can retune them
// without redeploying a store.
type ThrottleStore interface {
	Check(ctx context.Context, submitterID string, now time.Time, window time.Duration, limit int64) (ThrottleDecision, error)
	Commit(ctx context.Context, submitterID string, now time.Time, window time.Duration) error
}

// SnapshotStore keeps bounded per-target snapshot history, newest first.
type SnapshotStore interface {
	Append(ctx context.Context, snaps []SentimentSnapshot) error
	// LastN returns up to n most recent snapshots for the target, newest first.
	LastN(ctx context.Context, target TargetID, n int) ([]SentimentSnapshot, error)
	// LatestAll returns the most recent snapshot of every known target.
	LatestAll(ctx context.Context) ([]SentimentSnapshot, error)
}

// AlertLog records emitted alerts and drives the broadcast lifecycle.
type AlertLog interface {
	Append(ctx context.Context, a Alert) error
	// MarkBroadcastDone flips BroadcastDone exactly once. Repeats are
	// no-ops; unknown IDs return ErrAlertNotFound.
	MarkBroadcastDone(ctx context.Context, id string) error
	// ListSince returns alerts created at or after since, newest first,
	// optionally filtered by severity.
	ListSince(ctx context.Context, severity *AlertSeverity, since time.Time) ([]Alert, error)
	// PendingBroadcast returns alerts still awaiting acknowledgment.
	PendingBroadcast(ctx context.Context) ([]Alert, error)
	// LastSystemAlert returns the creation time of the most recent
	// system_degradation alert, or the zero time if none exists.
	LastSystemAlert(ctx context.Context) (time.Time, error)
}

// SignalLog records emitted reward signals and answers the cooldown and
// rolling-cap questions.
type SignalLog interface {
	Append(ctx context.Context, sig RewardSignal) error
	// MarkProcessed flips Processed exactly once. Repeats are no-ops;
	// unknown IDs return ErrSignalNotFound.
	MarkProcessed(ctx context.Context, id string) error
	// List returns signals newest first, optionally filtered by processed
	// state. limit <= 0 means no limit.
	List(ctx context.Context, processed *bool, limit int) ([]RewardSignal, error)
	// CountSince counts signals created at or after the given instant.
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// LastSignalTime returns the creation time of the newest signal for
	// the key, or the zero time if none exists.
	LastSignalTime(ctx context.Context, key SignalKey) (time.Time, error)
}

// ContributorIndex remembers which submitters fed a target at each tier,
// so the reward sweep can name its candidates.
type ContributorIndex interface {
	RecordContributor(ctx context.Context, s Submission) error
	Contributors(ctx context.Context, target TargetID, tier Tier) ([]string, error)
}
