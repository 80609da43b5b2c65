package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/retry"
)

// archiveSink is the slice of Archiver the tees use, split out so failure
// paths stay testable without a broken pool.
type archiveSink interface {
	ArchiveSnapshots(ctx context.Context, snaps []domain.SentimentSnapshot) error
	ArchiveAlert(ctx context.Context, alert domain.Alert) error
	MarkAlertAcknowledged(ctx context.Context, id string, at time.Time) error
	ArchiveSignal(ctx context.Context, sig domain.RewardSignal) error
	MarkSignalProcessed(ctx context.Context, id string, at time.Time) error
}

// tee carries what every archiving decorator shares. The primary store
// stays authoritative: a failed archive write is logged and counted, never
// surfaced to the caller.
type tee struct {
	sink    archiveSink
	clock   clockwork.Clock
	metrics *metrics.ArchiveMetrics
}

// archiveAttempts allows one immediate re-attempt per archive write
// before the failure is recorded.
const archiveAttempts = 2

func classifyArchiveErr(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	return retry.Retry
}

func (t tee) write(ctx context.Context, kind string, op retry.VoidOperation) {
	p := retry.Policy{MaxAttempts: archiveAttempts, Clock: t.clock}
	if err := retry.DoVoid(ctx, p, classifyArchiveErr, op); err != nil {
		t.metrics.WritesTotal.WithLabelValues(kind, "error").Inc()
		slog.ErrorContext(ctx, "archive write failed", "kind", kind, "error", err)
		return
	}
	t.metrics.WritesTotal.WithLabelValues(kind, "success").Inc()
}

// ArchivingSnapshotStore copies every appended snapshot into the archive.
type ArchivingSnapshotStore struct {
	primary domain.SnapshotStore
	tee
}

var _ domain.SnapshotStore = (*ArchivingSnapshotStore)(nil)

// NewArchivingSnapshotStore wraps primary with archive copies.
func NewArchivingSnapshotStore(primary domain.SnapshotStore, archiver *Archiver, clock clockwork.Clock, m *metrics.ArchiveMetrics) *ArchivingSnapshotStore {
	return &ArchivingSnapshotStore{
		primary: primary,
		tee:     tee{sink: archiver, clock: clock, metrics: m},
	}
}

func (s *ArchivingSnapshotStore) Append(ctx context.Context, snaps []domain.SentimentSnapshot) error {
	if err := s.primary.Append(ctx, snaps); err != nil {
		return err
	}
	s.write(ctx, "snapshot", func() error { return s.sink.ArchiveSnapshots(ctx, snaps) })
	return nil
}

func (s *ArchivingSnapshotStore) LastN(ctx context.Context, target domain.TargetID, n int) ([]domain.SentimentSnapshot, error) {
	return s.primary.LastN(ctx, target, n)
}

func (s *ArchivingSnapshotStore) LatestAll(ctx context.Context) ([]domain.SentimentSnapshot, error) {
	return s.primary.LatestAll(ctx)
}

// ArchivingAlertLog copies appended alerts and acknowledgment flips into
// the archive.
type ArchivingAlertLog struct {
	primary domain.AlertLog
	tee
}

var _ domain.AlertLog = (*ArchivingAlertLog)(nil)

// NewArchivingAlertLog wraps primary with archive copies.
func NewArchivingAlertLog(primary domain.AlertLog, archiver *Archiver, clock clockwork.Clock, m *metrics.ArchiveMetrics) *ArchivingAlertLog {
	return &ArchivingAlertLog{
		primary: primary,
		tee:     tee{sink: archiver, clock: clock, metrics: m},
	}
}

func (l *ArchivingAlertLog) Append(ctx context.Context, a domain.Alert) error {
	if err := l.primary.Append(ctx, a); err != nil {
		return err
	}
	l.write(ctx, "alert", func() error { return l.sink.ArchiveAlert(ctx, a) })
	return nil
}

func (l *ArchivingAlertLog) MarkBroadcastDone(ctx context.Context, id string) error {
	if err := l.primary.MarkBroadcastDone(ctx, id); err != nil {
		return err
	}
	at := l.clock.Now()
	l.write(ctx, "alert_ack", func() error { return l.sink.MarkAlertAcknowledged(ctx, id, at) })
	return nil
}

func (l *ArchivingAlertLog) ListSince(ctx context.Context, severity *domain.AlertSeverity, since time.Time) ([]domain.Alert, error) {
	return l.primary.ListSince(ctx, severity, since)
}

func (l *ArchivingAlertLog) PendingBroadcast(ctx context.Context) ([]domain.Alert, error) {
	return l.primary.PendingBroadcast(ctx)
}

func (l *ArchivingAlertLog) LastSystemAlert(ctx context.Context) (time.Time, error) {
	return l.primary.LastSystemAlert(ctx)
}

// ArchivingSignalLog copies appended reward signals and processed flips
// into the archive.
type ArchivingSignalLog struct {
	primary domain.SignalLog
	tee
}

var _ domain.SignalLog = (*ArchivingSignalLog)(nil)

// NewArchivingSignalLog wraps primary with archive copies.
func NewArchivingSignalLog(primary domain.SignalLog, archiver *Archiver, clock clockwork.Clock, m *metrics.ArchiveMetrics) *ArchivingSignalLog {
	return &ArchivingSignalLog{
		primary: primary,
		tee:     tee{sink: archiver, clock: clock, metrics: m},
	}
}

func (l *ArchivingSignalLog) Append(ctx context.Context, sig domain.RewardSignal) error {
	if err := l.primary.Append(ctx, sig); err != nil {
		return err
	}
	l.write(ctx, "signal", func() error { return l.sink.ArchiveSignal(ctx, sig) })
	return nil
}

func (l *ArchivingSignalLog) MarkProcessed(ctx context.Context, id string) error {
	if err := l.primary.MarkProcessed(ctx, id); err != nil {
		return err
	}
	at := l.clock.Now()
	l.write(ctx, "signal_processed", func() error { return l.sink.MarkSignalProcessed(ctx, id, at) })
	return nil
}

func (l *ArchivingSignalLog) List(ctx context.Context, processed *bool, limit int) ([]domain.RewardSignal, error) {
	return l.primary.List(ctx, processed, limit)
}

func (l *ArchivingSignalLog) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return l.primary.CountSince(ctx, since)
}

func (l *ArchivingSignalLog) LastSignalTime(ctx context.Context, key domain.SignalKey) (time.Time, error) {
	return l.primary.LastSignalTime(ctx, key)
}
