// Package aggregation recomputes per-target sentiment metrics on a fixed
// period: snapshots with trend and volatility against the previous cycle,
// plus a pipeline-wide health classification. Results are appended to the
// snapshot history and published on the cycle bus.
package aggregation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

// trendEpsilon is the sentiment change below which a target counts as
// stable across the trend window.
const trendEpsilon = 1.0

// trendWindow is how many snapshots (including the current one) the trend
// comparison spans.
const trendWindow = 3

// Engine derives snapshots from the current trust deltas. One cycle at a
// time: concurrent RunCycle calls collapse onto the in-flight one.
type Engine struct {
	deltas    domain.DeltaStore
	snapshots domain.SnapshotStore
	publisher domain.CyclePublisher
	metrics   *metrics.CycleMetrics
	clock     clockwork.Clock

	mu                  sync.RWMutex
	volatilityThreshold float64

	group singleflight.Group
	seq   atomic.Uint64
}

// NewEngine creates the aggregation engine. volatilityThreshold is the
// change fraction at which a target is flagged volatile.
func NewEngine(
	deltas domain.DeltaStore,
	snapshots domain.SnapshotStore,
	publisher domain.CyclePublisher,
	m *metrics.CycleMetrics,
	clock clockwork.Clock,
	volatilityThreshold float64,
) *Engine {
	return &Engine{
		deltas:              deltas,
		snapshots:           snapshots,
		publisher:           publisher,
		metrics:             m,
		clock:               clock,
		volatilityThreshold: volatilityThreshold,
	}
}

// SetVolatilityThreshold adjusts the spike threshold at runtime. The new
// value applies from the next cycle.
func (e *Engine) SetVolatilityThreshold(v float64) {
	e.mu.Lock()
	e.volatilityThreshold = v
	e.mu.Unlock()
}

// VolatilityThreshold returns the currently configured spike threshold.
func (e *Engine) VolatilityThreshold() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.volatilityThreshold
}

// RunCycle executes one aggregation cycle and returns its result. Callers
// arriving while a cycle is in flight share that cycle's result instead of
// starting another.
func (e *Engine) RunCycle(ctx context.Context) (domain.CycleResult, error) {
	v, err, _ := e.group.Do("cycle", func() (any, error) {
		return e.runCycle(ctx)
	})
	if err != nil {
		return domain.CycleResult{}, err
	}
	return v.(domain.CycleResult), nil
}

func (e *Engine) runCycle(ctx context.Context) (domain.CycleResult, error) {
	started := e.clock.Now()
	seq := e.seq.Add(1)

	deltas, err := e.deltas.GetAll(ctx)
	if err != nil {
		return domain.CycleResult{}, fmt.Errorf("read deltas: %w", err)
	}
	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].Target.String() < deltas[j].Target.String()
	})

	result := domain.CycleResult{
		Seq:       seq,
		StartedAt: started,
		Snapshots: make([]domain.SentimentSnapshot, 0, len(deltas)),
	}

	var sentimentSum float64
	for _, delta := range deltas {
		snap, spike, err := e.snapshotTarget(ctx, delta, seq, started)
		if err != nil {
			return domain.CycleResult{}, err
		}
		result.Snapshots = append(result.Snapshots, snap)
		if spike != nil {
			result.Spikes = append(result.Spikes, *spike)
		}
		sentimentSum += float64(snap.NetSentiment)
	}

	if len(result.Snapshots) > 0 {
		result.MeanSentiment = sentimentSum / float64(len(result.Snapshots))
	}
	result.Health = classifyHealth(result.VolatileCount(), result.MeanSentiment)

	if err := e.snapshots.Append(ctx, result.Snapshots); err != nil {
		return domain.CycleResult{}, fmt.Errorf("append snapshots: %w", err)
	}

	result.CompletedAt = e.clock.Now()
	e.publisher.PublishCycle(result)
	e.observe(result)

	slog.InfoContext(ctx, "aggregation cycle complete",
		"cycle", result.Seq,
		"targets", len(result.Snapshots),
		"volatile", result.VolatileCount(),
		"health", string(result.Health),
		"mean_sentiment", result.MeanSentiment,
	)
	return result, nil
}

// snapshotTarget computes one target's snapshot against its stored history.
// A target without history is never volatile: there is no previous cycle to
// move away from.
func (e *Engine) snapshotTarget(ctx context.Context, delta *domain.TrustDelta, seq uint64, cycleTime time.Time) (domain.SentimentSnapshot, *domain.VolatilitySpike, error) {
	prior, err := e.snapshots.LastN(ctx, delta.Target, trendWindow-1)
	if err != nil {
		return domain.SentimentSnapshot{}, nil, fmt.Errorf("read snapshot history for %s: %w", delta.Target, err)
	}

	current := delta.NetSentiment()
	snap := domain.SentimentSnapshot{
		Target:           delta.Target,
		NetSentiment:     current,
		AverageIntensity: delta.AverageIntensity(),
		TotalSubmissions: delta.TotalSubmissions,
		TierBreakdown:    tierBreakdown(delta),
		Trend:            trendOf(current, prior),
		CycleSeq:         seq,
		CycleTime:        cycleTime,
	}

	var spike *domain.VolatilitySpike
	if len(prior) > 0 {
		previous := prior[0].NetSentiment
		snap.ChangePercent = changePercent(snap.NetSentiment, previous)
		if snap.ChangePercent >= e.VolatilityThreshold() {
			snap.Volatile = true
			spike = &domain.VolatilitySpike{
				Target:        delta.Target,
				Before:        previous,
				After:         snap.NetSentiment,
				ChangePercent: snap.ChangePercent,
				CycleSeq:      seq,
				CycleTime:     cycleTime,
			}
			spike.AuditRef = auditRef(*spike)
		}
	}
	return snap, spike, nil
}

// trendOf compares the current sentiment with the oldest snapshot in the
// trend window. prior is newest first; fewer than one prior means stable.
func trendOf(current int64, prior []domain.SentimentSnapshot) domain.Trend {
	if len(prior) == 0 {
		return domain.TrendStable
	}
	oldest := prior[len(prior)-1]
	diff := float64(current - oldest.NetSentiment)
	switch {
	case math.Abs(diff) < trendEpsilon:
		return domain.TrendStable
	case diff > 0:
		return domain.TrendRising
	default:
		return domain.TrendFalling
	}
}

// changePercent is |current-previous| / max(|previous|, 1), the volatility
// measure between consecutive cycles.
func changePercent(current, previous int64) float64 {
	denom := math.Max(math.Abs(float64(previous)), 1)
	return math.Abs(float64(current-previous)) / denom
}

func classifyHealth(volatile int, meanSentiment float64) domain.HealthLevel {
	switch {
	case volatile > 3:
		return domain.HealthCritical
	case volatile > 1 || math.Abs(meanSentiment) > 50:
		return domain.HealthConcerning
	case math.Abs(meanSentiment) > 20:
		return domain.HealthGood
	default:
		return domain.HealthExcellent
	}
}

func tierBreakdown(delta *domain.TrustDelta) map[domain.Tier]int64 {
	out := make(map[domain.Tier]int64, len(delta.TierSubmissions))
	for tier, n := range delta.TierSubmissions {
		out[tier] = n
	}
	return out
}

// auditRef content-addresses a spike so external auditors can reference it
// independently of this process's identifiers.
func auditRef(s domain.VolatilitySpike) string {
	canonical := strings.Join([]string{
		s.Target.String(),
		strconv.FormatInt(s.Before, 10),
		strconv.FormatInt(s.After, 10),
		strconv.FormatFloat(s.ChangePercent, 'f', 6, 64),
		strconv.FormatUint(s.CycleSeq, 10),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) observe(r domain.CycleResult) {
	e.metrics.CyclesTotal.Inc()
	e.metrics.CycleDuration.Observe(r.CompletedAt.Sub(r.StartedAt).Seconds())
	e.metrics.VolatileTargets.Set(float64(r.VolatileCount()))
	e.metrics.MeanSentiment.Set(r.MeanSentiment)
	e.metrics.HealthLevel.Set(healthOrdinal(r.Health))
}

func healthOrdinal(h domain.HealthLevel) float64 {
	switch h {
	case domain.HealthCritical:
		return 3
	case domain.HealthConcerning:
		return 2
	case domain.HealthGood:
		return 1
	default:
		return 0
	}
}
