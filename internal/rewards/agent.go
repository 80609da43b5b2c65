// Package rewards emits bounded-rate reward signals for contributors on
// targets whose sentiment crossed their tier's threshold. Cooldown and
// the hourly emission cap are hard gates: a failed gate drops the
// candidate silently and counts it, never errors.
package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

// Skipped-trigger gate labels.
const (
	gateCooldown  = "cooldown"
	gateHourlyCap = "hourly_cap"
)

// capWindow is the rolling window the emission cap counts against.
const capWindow = time.Hour

// tierThresholds is the minimum |netSentiment| per tier. Lower tiers need
// a larger consensus shift; higher tiers trigger more easily.
var tierThresholds = map[domain.Tier]int64{
	domain.TierBasic:    50,
	domain.TierVerified: 40,
	domain.TierCivic:    30,
}

// tierRewardTable is the base amount per emitted signal before category
// impact weighting.
var tierRewardTable = map[domain.Tier]float64{
	domain.TierBasic:    5,
	domain.TierVerified: 10,
	domain.TierCivic:    15,
}

// sweepOrder fixes tier iteration so sweeps are deterministic.
var sweepOrder = []domain.Tier{domain.TierBasic, domain.TierVerified, domain.TierCivic}

// ImpactWeighter scales reward amounts by target category. The fusion
// coordinator maintains the weight table.
type ImpactWeighter interface {
	ImpactWeight(category string) float64
}

// Agent sweeps each cycle result for reward-eligible contributors.
type Agent struct {
	signals      domain.SignalLog
	contributors domain.ContributorIndex
	weights      ImpactWeighter
	metrics      *metrics.RewardMetrics
	clock        clockwork.Clock

	mu         sync.RWMutex
	cooldown   time.Duration
	maxPerHour int64
}

// NewAgent creates the reward-trigger agent. cooldown is the per
// (submitter, target, tier) re-trigger bound; maxPerHour caps emissions
// across the whole pipeline per rolling hour.
func NewAgent(
	signals domain.SignalLog,
	contributors domain.ContributorIndex,
	weights ImpactWeighter,
	m *metrics.RewardMetrics,
	clock clockwork.Clock,
	cooldown time.Duration,
	maxPerHour int64,
) *Agent {
	return &Agent{
		signals:      signals,
		contributors: contributors,
		weights:      weights,
		metrics:      m,
		clock:        clock,
		cooldown:     cooldown,
		maxPerHour:   maxPerHour,
	}
}

// SetCooldown adjusts the re-trigger bound at runtime.
func (a *Agent) SetCooldown(d time.Duration) {
	a.mu.Lock()
	a.cooldown = d
	a.mu.Unlock()
}

// Cooldown returns the currently configured re-trigger bound.
func (a *Agent) Cooldown() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cooldown
}

// SetMaxPerHour adjusts the rolling-hour emission cap at runtime.
func (a *Agent) SetMaxPerHour(n int64) {
	a.mu.Lock()
	a.maxPerHour = n
	a.mu.Unlock()
}

// MaxPerHour returns the currently configured emission cap.
func (a *Agent) MaxPerHour() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxPerHour
}

// HandleCycle sweeps one cycle result and emits signals for every
// contributor passing all three gates.
func (a *Agent) HandleCycle(ctx context.Context, result domain.CycleResult) {
	now := a.clock.Now()

	for _, snap := range result.Snapshots {
		magnitude := int64(math.Abs(float64(snap.NetSentiment)))
		for _, tier := range sweepOrder {
			if magnitude < tierThresholds[tier] {
				continue
			}
			a.sweepTier(ctx, snap, tier, now)
		}
	}
}

func (a *Agent) sweepTier(ctx context.Context, snap domain.SentimentSnapshot, tier domain.Tier, now time.Time) {
	submitters, err := a.contributors.Contributors(ctx, snap.Target, tier)
	if err != nil {
		slog.ErrorContext(ctx, "contributor lookup failed",
			"target_id", snap.Target.String(),
			"tier", string(tier),
			"error", err,
		)
		return
	}

	for _, submitterID := range submitters {
		a.consider(ctx, snap, tier, submitterID, now)
	}
}

// consider runs the cooldown and cap gates for one candidate and emits on
// success. Gate reads fail closed: an unreadable log skips the candidate
// rather than risking a duplicate emission.
func (a *Agent) consider(ctx context.Context, snap domain.SentimentSnapshot, tier domain.Tier, submitterID string, now time.Time) {
	key := domain.SignalKey{SubmitterID: submitterID, Target: snap.Target, Tier: tier}

	last, err := a.signals.LastSignalTime(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "cooldown lookup failed", "submitter_id", submitterID, "error", err)
		return
	}
	if !last.IsZero() && now.Sub(last) < a.Cooldown() {
		a.metrics.SkippedTriggers.WithLabelValues(gateCooldown).Inc()
		return
	}

	emitted, err := a.signals.CountSince(ctx, now.Add(-capWindow))
	if err != nil {
		slog.ErrorContext(ctx, "emission count lookup failed", "error", err)
		return
	}
	if emitted >= a.MaxPerHour() {
		a.metrics.SkippedTriggers.WithLabelValues(gateHourlyCap).Inc()
		return
	}

	category := snap.Target.Category()
	signal := domain.RewardSignal{
		ID:          uuid.NewString(),
		SubmitterID: submitterID,
		Target:      snap.Target,
		Tier:        tier,
		Amount:      tierRewardTable[tier] * a.weights.ImpactWeight(category),
		Reason:      fmt.Sprintf("net sentiment %d crossed tier %s threshold %d", snap.NetSentiment, tier, tierThresholds[tier]),
		CreatedAt:   now,
	}
	if err := a.signals.Append(ctx, signal); err != nil {
		slog.ErrorContext(ctx, "signal append failed",
			"submitter_id", submitterID,
			"target_id", snap.Target.String(),
			"error", err,
		)
		return
	}

	a.metrics.SignalsTotal.WithLabelValues(string(tier)).Inc()
	slog.InfoContext(ctx, "reward signal emitted",
		"signal_id", signal.ID,
		"submitter_id", submitterID,
		"target_id", snap.Target.String(),
		"tier", string(tier),
		"amount", signal.Amount,
	)
}

// MarkProcessed flips a signal's processed flag on behalf of the external
// disbursement collaborator. The flip is one-way and idempotent.
func (a *Agent) MarkProcessed(ctx context.Context, signalID string) error {
	if err := a.signals.MarkProcessed(ctx, signalID); err != nil {
		return err
	}
	a.metrics.SignalsProcessed.Inc()
	return nil
}

// Signals lists emitted signals, optionally filtered by processed state.
func (a *Agent) Signals(ctx context.Context, processed *bool, limit int) ([]domain.RewardSignal, error) {
	return a.signals.List(ctx, processed, limit)
}
