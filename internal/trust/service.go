// Package trust wraps the delta store with the accumulation service the
// gateway talks to: apply with post-write verification, plus the
// read-side used by queries and exports.
package trust

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

// Service accumulates admitted submissions into trust deltas.
type Service struct {
	store   domain.DeltaStore
	digest  domain.DigestFunc
	metrics *metrics.IntakeMetrics
	clock   clockwork.Clock
}

// NewService creates the accumulation service. digest must match the one
// the store applies, or every write would count as inconsistent.
func NewService(store domain.DeltaStore, digest domain.DigestFunc, m *metrics.IntakeMetrics, clock clockwork.Clock) *Service {
	return &Service{
		store:   store,
		digest:  digest,
		metrics: m,
		clock:   clock,
	}
}

// Apply folds one admitted submission into its target's ledger. Replayed
// submission IDs are safe no-ops returning the stored ledger. A failed
// post-write verification is counted and logged, never surfaced: the
// submission itself landed and a retry would be idempotent.
func (s *Service) Apply(ctx context.Context, sub domain.Submission) (*domain.TrustDelta, bool, error) {
	start := s.clock.Now()
	delta, applied, err := s.store.ApplyDelta(ctx, sub)
	if err != nil {
		return nil, false, fmt.Errorf("apply delta: %w", err)
	}
	s.metrics.ApplyDuration.Observe(s.clock.Since(start).Seconds())

	if applied {
		s.verifyWrite(ctx, sub, delta)
	}
	return delta, applied, nil
}

// verifyWrite reads the ledger back and checks it durably carries the
// apply. A concurrent apply may have advanced the ledger meanwhile, so
// digests are only compared when the ledger is still at our version;
// otherwise monotonicity of the sums stands in.
func (s *Service) verifyWrite(ctx context.Context, sub domain.Submission, written *domain.TrustDelta) {
	readBack, err := s.store.GetDelta(ctx, sub.Target)
	if err != nil {
		s.recordInconsistency(ctx, sub, "read-back failed", err)
		return
	}

	if readBack.TotalSubmissions == written.TotalSubmissions {
		expected := s.digest(readBack, sub.Proof)
		if readBack.IntegrityDigest != expected {
			s.recordInconsistency(ctx, sub, "digest mismatch", nil)
		}
		return
	}

	if readBack.TotalSubmissions < written.TotalSubmissions ||
		readBack.NetSupport < written.NetSupport ||
		readBack.NetDissent < written.NetDissent {
		s.recordInconsistency(ctx, sub, "ledger regressed", nil)
	}
}

func (s *Service) recordInconsistency(ctx context.Context, sub domain.Submission, detail string, err error) {
	s.metrics.WriteConsistencyFailures.Inc()
	slog.ErrorContext(ctx, "write consistency check failed",
		"detail", detail,
		"target_id", sub.Target.String(),
		"submission_id", sub.ID.String(),
		"error", err,
	)
}

// Get returns the current ledger for one target.
func (s *Service) Get(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error) {
	delta, err := s.store.GetDelta(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("get delta: %w", err)
	}
	return delta, nil
}

// All returns a consistent copy of every ledger.
func (s *Service) All(ctx context.Context) ([]*domain.TrustDelta, error) {
	deltas, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deltas: %w", err)
	}
	return deltas, nil
}

// Purge administratively removes one target's ledger.
func (s *Service) Purge(ctx context.Context, target domain.TargetID) error {
	if err := s.store.PurgeTarget(ctx, target); err != nil {
		return fmt.Errorf("purge target: %w", err)
	}
	slog.InfoContext(ctx, "target ledger purged", "target_id", target.String())
	return nil
}
