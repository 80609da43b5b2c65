package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/version"
)

// exportAlertWindow bounds what counts as an "active" alert in an export.
const exportAlertWindow = 24 * time.Hour

// Export is the full-state dump handed to external dashboards and
// auditors. It is assembled on demand and never consumed internally.
type Export struct {
	GeneratedAt time.Time
	Version     string
	Deltas      []*domain.TrustDelta
	Snapshots   []domain.SentimentSnapshot
	Alerts      []domain.Alert
	Signals     []domain.RewardSignal
}

// Export assembles the current pipeline state: every delta ledger, the
// latest snapshot per target, alerts from the last day, and unprocessed
// reward signals.
func (s *Service) Export(ctx context.Context) (*Export, error) {
	deltas, err := s.deltas.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("export deltas: %w", err)
	}

	snaps, err := s.snapshots.LatestAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export snapshots: %w", err)
	}

	now := s.clock.Now()
	alerts, err := s.monitor.Alerts(ctx, nil, now.Add(-exportAlertWindow))
	if err != nil {
		return nil, fmt.Errorf("export alerts: %w", err)
	}

	unprocessed := false
	signals, err := s.agent.Signals(ctx, &unprocessed, 0)
	if err != nil {
		return nil, fmt.Errorf("export signals: %w", err)
	}

	return &Export{
		GeneratedAt: now,
		Version:     version.Get().Version,
		Deltas:      deltas,
		Snapshots:   snaps,
		Alerts:      alerts,
		Signals:     signals,
	}, nil
}
