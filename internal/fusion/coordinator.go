// Package fusion reconciles aggregation output across targets: which
// targets clear the fusion eligibility threshold, how degraded health
// dampens that count, and the ledger sync records external treasury
// collaborators consume. It also owns the category impact-weight table
// the reward agent consults at emission time.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

// dampeningFactor scales the eligible count when pipeline health is
// degraded. Entries are flagged, never excluded.
const dampeningFactor = 0.6

// Coordinator runs the periodic fusion pass over the latest cycle result.
// It never mutates delta, snapshot, or signal state.
type Coordinator struct {
	signals domain.SignalLog
	metrics *metrics.FusionMetrics
	clock   clockwork.Clock

	mu                   sync.RWMutex
	eligibilityThreshold int64
	lastCycle            *domain.CycleResult
	lastSummary          *domain.FusionSummary

	weightsMu     sync.RWMutex
	impactWeights map[string]float64
}

// NewCoordinator creates the fusion coordinator. eligibilityThreshold is
// the |netSentiment| a target needs for fusion eligibility.
func NewCoordinator(signals domain.SignalLog, m *metrics.FusionMetrics, clock clockwork.Clock, eligibilityThreshold int64) *Coordinator {
	return &Coordinator{
		signals:              signals,
		metrics:              m,
		clock:                clock,
		eligibilityThreshold: eligibilityThreshold,
		impactWeights:        make(map[string]float64),
	}
}

// HandleCycle records the latest cycle result for the next sweep. The
// coordinator runs on its own period, so consuming a cycle is just a
// pointer swap.
func (c *Coordinator) HandleCycle(_ context.Context, result domain.CycleResult) {
	c.mu.Lock()
	c.lastCycle = &result
	c.mu.Unlock()
}

// RunSweep reconciles the latest cycle into a fusion summary. Without a
// consumed cycle it produces an empty summary rather than an error.
func (c *Coordinator) RunSweep(ctx context.Context) (domain.FusionSummary, error) {
	started := c.clock.Now()

	c.mu.RLock()
	cycle := c.lastCycle
	threshold := c.eligibilityThreshold
	c.mu.RUnlock()

	summary := domain.FusionSummary{
		GeneratedAt: started,
		Health:      domain.HealthExcellent,
	}
	if cycle != nil {
		summary.CycleSeq = cycle.Seq
		summary.Health = cycle.Health
		summary.Dampened = cycle.Health.Degraded()
		summary.Entries = make([]domain.FusionEligibility, 0, len(cycle.Snapshots))

		for _, snap := range cycle.Snapshots {
			eligible := magnitude(snap.NetSentiment) >= threshold
			summary.Entries = append(summary.Entries, domain.FusionEligibility{
				Target:       snap.Target,
				NetSentiment: snap.NetSentiment,
				Eligible:     eligible,
				Dampened:     summary.Dampened,
			})
			if eligible {
				summary.EligibleCount++
			}
		}
	}

	summary.EffectiveEligible = float64(summary.EligibleCount)
	if summary.Dampened {
		summary.EffectiveEligible *= dampeningFactor
	}

	ledger, err := c.syncLedger(ctx, cycle, summary.EligibleCount, started)
	if err != nil {
		return domain.FusionSummary{}, err
	}
	summary.Ledger = ledger

	c.mu.Lock()
	c.lastSummary = &summary
	c.mu.Unlock()

	c.observe(summary, started)
	slog.InfoContext(ctx, "fusion sweep complete",
		"cycle", summary.CycleSeq,
		"eligible", summary.EligibleCount,
		"effective_eligible", summary.EffectiveEligible,
		"dampened", summary.Dampened,
		"ledger_entries", ledger.EntriesSynced,
	)
	return summary, nil
}

func (c *Coordinator) syncLedger(ctx context.Context, cycle *domain.CycleResult, eligible int, now time.Time) (domain.LedgerSyncResult, error) {
	unprocessed := false
	pending, err := c.signals.List(ctx, &unprocessed, 0)
	if err != nil {
		return domain.LedgerSyncResult{}, fmt.Errorf("count unprocessed signals: %w", err)
	}

	targets := 0
	if cycle != nil {
		targets = len(cycle.Snapshots)
	}
	return domain.LedgerSyncResult{
		EntriesSynced:   eligible,
		TargetsAffected: targets,
		RewardCount:     len(pending),
		SyncedAt:        now,
	}, nil
}

// Summary returns the latest sweep's outcome, running a sweep first if
// none has completed yet.
func (c *Coordinator) Summary(ctx context.Context) (domain.FusionSummary, error) {
	c.mu.RLock()
	last := c.lastSummary
	c.mu.RUnlock()
	if last != nil {
		return *last, nil
	}
	return c.RunSweep(ctx)
}

// ImpactWeight returns the reward scaling weight for a target category.
// Unconfigured categories weigh 1.0.
func (c *Coordinator) ImpactWeight(category string) float64 {
	c.weightsMu.RLock()
	defer c.weightsMu.RUnlock()
	if w, ok := c.impactWeights[category]; ok {
		return w
	}
	return 1.0
}

// SetImpactWeight adjusts one category's reward scaling weight. Weights
// must be positive; setting the same weight twice is a no-op.
func (c *Coordinator) SetImpactWeight(category string, weight float64) error {
	if category == "" {
		return fmt.Errorf("impact weight: empty category")
	}
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("impact weight for %q: must be a positive finite number", category)
	}
	c.weightsMu.Lock()
	c.impactWeights[category] = weight
	c.weightsMu.Unlock()
	return nil
}

// ImpactWeights returns a copy of the configured weight table.
func (c *Coordinator) ImpactWeights() map[string]float64 {
	c.weightsMu.RLock()
	defer c.weightsMu.RUnlock()
	out := make(map[string]float64, len(c.impactWeights))
	for k, v := range c.impactWeights {
		out[k] = v
	}
	return out
}

// SetEligibilityThreshold adjusts the fusion threshold at runtime.
func (c *Coordinator) SetEligibilityThreshold(v int64) {
	c.mu.Lock()
	c.eligibilityThreshold = v
	c.mu.Unlock()
}

// EligibilityThreshold returns the currently configured fusion threshold.
func (c *Coordinator) EligibilityThreshold() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eligibilityThreshold
}

func (c *Coordinator) observe(summary domain.FusionSummary, started time.Time) {
	c.metrics.SweepsTotal.Inc()
	c.metrics.SweepDuration.Observe(c.clock.Since(started).Seconds())
	c.metrics.EligibleTargets.Set(float64(summary.EligibleCount))
	c.metrics.EffectiveEligible.Set(summary.EffectiveEligible)
	c.metrics.LedgerEntriesSynced.Add(float64(summary.Ledger.EntriesSynced))
}

func magnitude(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
