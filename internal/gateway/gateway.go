// Package gateway implements the admission pipeline for incoming
// submissions: shape validation, integrity verification, per-submitter
// rate limiting, and handoff to the delta service. Quota is only
// committed once the submission has landed downstream.
package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/integrity"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/trust"
)

const submitterStripes = 64

// Metric labels for the submissions_total counter.
const (
	resultAccepted           = "accepted"
	resultDuplicate          = "duplicate"
	resultRateLimited        = "rate_limited"
	resultIntegrityViolation = "integrity_violation"
	resultTimestampDrift     = "timestamp_drift"
	resultMalformed          = "malformed"
	resultError              = "error"
)

// Admission is the answer for a submission that made it through the
// pipeline. Duplicate marks an idempotent replay of an already-applied
// submission identity.
type Admission struct {
	DeltaID        uuid.UUID
	ProofDigest    string
	Duplicate      bool
	ProcessingTime time.Duration
}

// Rejection is the answer for a submission turned away by the pipeline.
// ResetTime and Remaining are only meaningful for rate-limit rejections.
type Rejection struct {
	Reason    domain.RejectReason
	ResetTime time.Time
	Remaining int64
	cause     error
}

func (r *Rejection) Error() string {
	if r.cause != nil {
		return fmt.Sprintf("submission rejected (%s): %v", r.Reason, r.cause)
	}
	return fmt.Sprintf("submission rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.cause
}

// Gateway admits submissions into the pipeline. Admission attempts for
// the same submitter serialize on a striped lock so the throttle
// check-then-commit sequence stays atomic per submitter.
type Gateway struct {
	verifier     domain.ProofVerifier
	deltas       *trust.Service
	throttle     domain.ThrottleStore
	contributors domain.ContributorIndex
	metrics      *metrics.IntakeMetrics
	clock        clockwork.Clock

	settingsMu sync.RWMutex
	window     time.Duration
	limit      int64

	locks [submitterStripes]sync.Mutex
}

// NewGateway wires the admission pipeline. window and limit configure the
// per-submitter fixed throttle window.
func NewGateway(
	verifier domain.ProofVerifier,
	deltas *trust.Service,
	throttle domain.ThrottleStore,
	contributors domain.ContributorIndex,
	m *metrics.IntakeMetrics,
	clock clockwork.Clock,
	window time.Duration,
	limit int64,
) *Gateway {
	return &Gateway{
		verifier:     verifier,
		deltas:       deltas,
		throttle:     throttle,
		contributors: contributors,
		metrics:      m,
		clock:        clock,
		window:       window,
		limit:        limit,
	}
}

// SetThrottle adjusts the per-submitter window and limit at runtime.
// In-flight admissions keep the values they started with.
func (g *Gateway) SetThrottle(window time.Duration, limit int64) {
	g.settingsMu.Lock()
	defer g.settingsMu.Unlock()
	g.window = window
	g.limit = limit
}

// Throttle returns the current per-submitter window and limit.
func (g *Gateway) Throttle() (time.Duration, int64) {
	g.settingsMu.RLock()
	defer g.settingsMu.RUnlock()
	return g.window, g.limit
}

// Admit runs one submission through the full pipeline. It returns an
// Admission on success (including idempotent replays) and a *Rejection
// for submissions turned away by policy; any other error is an internal
// failure that consumed no quota.
func (g *Gateway) Admit(ctx context.Context, sub domain.Submission) (Admission, error) {
	start := g.clock.Now()

	if err := sub.Validate(); err != nil {
		g.metrics.SubmissionsTotal.WithLabelValues(resultMalformed).Inc()
		return Admission{}, err
	}

	// Integrity runs before throttle accounting so an invalid proof
	// never consumes quota.
	if err := g.verifier.VerifyProof(ctx, sub); err != nil {
		reason := domain.ReasonFor(err)
		g.metrics.SubmissionsTotal.WithLabelValues(reasonLabel(reason)).Inc()
		slog.InfoContext(ctx, "submission rejected",
			"reason", reason.String(),
			"target_id", sub.Target.String(),
			"submitter_id", sub.SubmitterID,
		)
		return Admission{}, &Rejection{Reason: reason, cause: err}
	}

	unlock := g.lockSubmitter(sub.SubmitterID)
	defer unlock()

	window, limit := g.Throttle()
	now := g.clock.Now()
	decision, err := g.throttle.Check(ctx, sub.SubmitterID, now, window, limit)
	if err != nil {
		g.metrics.SubmissionsTotal.WithLabelValues(resultError).Inc()
		return Admission{}, fmt.Errorf("throttle check: %w", err)
	}
	if !decision.Allowed {
		g.metrics.SubmissionsTotal.WithLabelValues(resultRateLimited).Inc()
		slog.InfoContext(ctx, "submission rejected",
			"reason", domain.ReasonRateLimited.String(),
			"submitter_id", sub.SubmitterID,
			"reset_time", decision.ResetTime,
		)
		return Admission{}, &Rejection{
			Reason:    domain.ReasonRateLimited,
			ResetTime: decision.ResetTime,
			cause:     domain.ErrRateLimited,
		}
	}

	_, applied, err := g.deltas.Apply(ctx, sub)
	if err != nil {
		g.metrics.SubmissionsTotal.WithLabelValues(resultError).Inc()
		return Admission{}, err
	}

	// Quota commits only after the delta landed, and replays of an
	// already-applied identity never consume quota.
	if applied {
		if err := g.throttle.Commit(ctx, sub.SubmitterID, now, window); err != nil {
			slog.ErrorContext(ctx, "throttle commit failed after apply",
				"submitter_id", sub.SubmitterID,
				"error", err,
			)
		}
		if err := g.contributors.RecordContributor(ctx, sub); err != nil {
			slog.WarnContext(ctx, "contributor record failed",
				"submitter_id", sub.SubmitterID,
				"target_id", sub.Target.String(),
				"error", err,
			)
		}
	}

	result := resultAccepted
	if !applied {
		result = resultDuplicate
	}
	g.metrics.SubmissionsTotal.WithLabelValues(result).Inc()

	elapsed := g.clock.Since(start)
	g.metrics.AdmissionDuration.Observe(elapsed.Seconds())

	return Admission{
		DeltaID:        sub.ID,
		ProofDigest:    integrity.ProofDigest(sub.Proof),
		Duplicate:      !applied,
		ProcessingTime: elapsed,
	}, nil
}

func (g *Gateway) lockSubmitter(submitterID string) func() {
	h := fnv.New32a()
	h.Write([]byte(submitterID))
	m := &g.locks[h.Sum32()%submitterStripes]
	m.Lock()
	return m.Unlock
}

func reasonLabel(r domain.RejectReason) string {
	switch r {
	case domain.ReasonRateLimited:
		return resultRateLimited
	case domain.ReasonTimestampDrift:
		return resultTimestampDrift
	default:
		return resultIntegrityViolation
	}
}
