package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/aggregation"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/alerting"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/events"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/fusion"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/gateway"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/rewards"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/trust"
)

// LeaderGate gates the periodic engines in multi-instance deployments.
// A nil gate means this instance always runs them.
type LeaderGate interface {
	Leading() bool
}

// Service is the application layer, the only component that references
// every pipeline stage. It orchestrates the periodic runners, routes
// cycle events to their consumers, and exposes the operations the HTTP
// layer needs.
type Service struct {
	intake      *gateway.Gateway
	deltas      *trust.Service
	engine      *aggregation.Engine
	monitor     *alerting.Monitor
	agent       *rewards.Agent
	coordinator *fusion.Coordinator
	bus         *events.Bus
	snapshots   domain.SnapshotStore
	leader      LeaderGate
	clock       clockwork.Clock

	aggregationRunner *Runner
	fusionRunner      *Runner

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewService wires the pipeline stages together. leader may be nil for
// single-instance deployments; cycleMetrics accounts skipped ticks for
// both periodic runners.
func NewService(
	intake *gateway.Gateway,
	deltas *trust.Service,
	engine *aggregation.Engine,
	monitor *alerting.Monitor,
	agent *rewards.Agent,
	coordinator *fusion.Coordinator,
	bus *events.Bus,
	snapshots domain.SnapshotStore,
	leader LeaderGate,
	clock clockwork.Clock,
	aggregationInterval, fusionInterval time.Duration,
	cycleMetrics *metrics.CycleMetrics,
) *Service {
	s := &Service{
		intake:      intake,
		deltas:      deltas,
		engine:      engine,
		monitor:     monitor,
		agent:       agent,
		coordinator: coordinator,
		bus:         bus,
		snapshots:   snapshots,
		leader:      leader,
		clock:       clock,
	}

	onSkip := cycleMetrics.TicksSkipped.Inc
	s.aggregationRunner = NewRunner("aggregation", aggregationInterval, s.gated("aggregation", func(ctx context.Context) error {
		_, err := engine.RunCycle(ctx)
		return err
	}), clock, onSkip)
	s.fusionRunner = NewRunner("fusion", fusionInterval, s.gated("fusion", func(ctx context.Context) error {
		_, err := coordinator.RunSweep(ctx)
		return err
	}), clock, onSkip)

	return s
}

// Start launches the periodic runners and the cycle-event consumers.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Go(func() { s.aggregationRunner.Run(ctx) })
	s.wg.Go(func() { s.fusionRunner.Run(ctx) })

	s.consume(ctx, "alerting", s.monitor.HandleCycle)
	s.consume(ctx, "rewards", s.agent.HandleCycle)
	s.consume(ctx, "fusion", s.coordinator.HandleCycle)

	slog.Info("pipeline started")
}

// consume pumps cycle results from the bus into one consumer. The pump
// exits when the context is cancelled or the bus closes its channel.
func (s *Service) consume(ctx context.Context, name string, handle func(context.Context, domain.CycleResult)) {
	ch, cancel := s.bus.SubscribeNamed(name)
	s.wg.Go(func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case result, ok := <-ch:
				if !ok {
					return
				}
				handle(ctx, result)
			}
		}
	})
}

// gated wraps a periodic task so it only runs on the leading instance.
func (s *Service) gated(name string, task func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if s.leader != nil && !s.leader.Leading() {
			slog.DebugContext(ctx, "skipping periodic task on non-leader", "task", name)
			return nil
		}
		return task(ctx)
	}
}

// Stop shuts the pipeline down: tickers stop, the bus closes, in-flight
// cycle work drains. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.bus.Close()
		s.wg.Wait()
		slog.Info("pipeline stopped")
	})
}

// Admit runs one submission through the admission pipeline.
func (s *Service) Admit(ctx context.Context, sub domain.Submission) (gateway.Admission, error) {
	return s.intake.Admit(ctx, sub)
}

// Delta returns the cumulative ledger for one target.
func (s *Service) Delta(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error) {
	return s.deltas.Get(ctx, target)
}

// Snapshots returns up to n recent snapshots for one target, newest first.
func (s *Service) Snapshots(ctx context.Context, target domain.TargetID, n int) ([]domain.SentimentSnapshot, error) {
	return s.snapshots.LastN(ctx, target, n)
}

// Alerts lists alerts created at or after since, optionally filtered by severity.
func (s *Service) Alerts(ctx context.Context, severity *domain.AlertSeverity, since time.Time) ([]domain.Alert, error) {
	return s.monitor.Alerts(ctx, severity, since)
}

// AcknowledgeBroadcast marks an alert's broadcast as done. Idempotent.
func (s *Service) AcknowledgeBroadcast(ctx context.Context, alertID string) error {
	return s.monitor.AcknowledgeBroadcast(ctx, alertID)
}

// Signals lists reward signals, optionally filtered by processed state.
func (s *Service) Signals(ctx context.Context, processed *bool, limit int) ([]domain.RewardSignal, error) {
	return s.agent.Signals(ctx, processed, limit)
}

// MarkRewardProcessed flips a signal's processed flag. Idempotent.
func (s *Service) MarkRewardProcessed(ctx context.Context, signalID string) error {
	return s.agent.MarkProcessed(ctx, signalID)
}

// FusionSummary returns the latest fusion sweep outcome, running a sweep
// on demand when none has completed yet.
func (s *Service) FusionSummary(ctx context.Context) (domain.FusionSummary, error) {
	return s.coordinator.Summary(ctx)
}

// SetImpactWeight adjusts the category impact weight consulted by the
// reward agent at emission time.
func (s *Service) SetImpactWeight(category string, weight float64) error {
	return s.coordinator.SetImpactWeight(category, weight)
}

// ImpactWeights returns a copy of the category impact-weight table.
func (s *Service) ImpactWeights() map[string]float64 {
	return s.coordinator.ImpactWeights()
}

// PurgeTarget removes a target's ledger. The administrative purge is the
// only operation that ever resets accumulated sentiment.
func (s *Service) PurgeTarget(ctx context.Context, target domain.TargetID) error {
	return s.deltas.Purge(ctx, target)
}

// RunAggregation forces an aggregation cycle outside the periodic
// schedule. Concurrent calls collapse into one run.
func (s *Service) RunAggregation(ctx context.Context) (domain.CycleResult, error) {
	return s.engine.RunCycle(ctx)
}
