package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/memstore"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

type markCall struct {
	id string
	at time.Time
}

// sinkStub records archive writes. err fails every call; failures fails
// that many calls before succeeding.
type sinkStub struct {
	err      error
	failures int

	snapshots [][]domain.SentimentSnapshot
	alerts    []domain.Alert
	alertAcks []markCall
	signals   []domain.RewardSignal
	processed []markCall
}

func (s *sinkStub) fail() error {
	if s.err != nil {
		return s.err
	}
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset by peer")
	}
	return nil
}

func (s *sinkStub) ArchiveSnapshots(_ context.Context, snaps []domain.SentimentSnapshot) error {
	s.snapshots = append(s.snapshots, snaps)
	return s.fail()
}

func (s *sinkStub) ArchiveAlert(_ context.Context, alert domain.Alert) error {
	s.alerts = append(s.alerts, alert)
	return s.fail()
}

func (s *sinkStub) MarkAlertAcknowledged(_ context.Context, id string, at time.Time) error {
	s.alertAcks = append(s.alertAcks, markCall{id: id, at: at})
	return s.fail()
}

func (s *sinkStub) ArchiveSignal(_ context.Context, sig domain.RewardSignal) error {
	s.signals = append(s.signals, sig)
	return s.fail()
}

func (s *sinkStub) MarkSignalProcessed(_ context.Context, id string, at time.Time) error {
	s.processed = append(s.processed, markCall{id: id, at: at})
	return s.fail()
}

func newTestTee(sink archiveSink, clock clockwork.Clock) (tee, *metrics.ArchiveMetrics) {
	m := metrics.NewArchiveMetrics(prometheus.NewRegistry())
	return tee{sink: sink, clock: clock, metrics: m}, m
}

func alertFixture(id string) domain.Alert {
	return domain.Alert{
		ID:                id,
		Type:              domain.AlertVolatilitySpike,
		Severity:          domain.SeverityMedium,
		Target:            domain.TargetID{Group: "governance"},
		BroadcastRequired: true,
		CreatedAt:         time.Now().UTC(),
	}
}

func signalFixture(id string) domain.RewardSignal {
	return domain.RewardSignal{
		ID:          id,
		SubmitterID: "citizen-1",
		Target:      domain.TargetID{Group: "governance"},
		Tier:        domain.TierVerified,
		Amount:      10,
		Reason:      "sustained civic participation",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestArchivingAlertLog_AppendTees(t *testing.T) {
	sink := &sinkStub{}
	teeState, _ := newTestTee(sink, clockwork.NewFakeClock())
	log := &ArchivingAlertLog{primary: memstore.NewAlertLog(), tee: teeState}
	ctx := context.Background()

	alert := alertFixture("alert-1")
	require.NoError(t, log.Append(ctx, alert))

	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "alert-1", sink.alerts[0].ID)

	pending, err := log.PendingBroadcast(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestArchivingAlertLog_ArchiveFailureDoesNotSurface(t *testing.T) {
	sink := &sinkStub{err: errors.New("connection refused")}
	teeState, m := newTestTee(sink, clockwork.NewFakeClock())
	log := &ArchivingAlertLog{primary: memstore.NewAlertLog(), tee: teeState}
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, alertFixture("alert-1")))

	// The primary kept the alert even though the archive copy failed.
	pending, err := log.PendingBroadcast(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("alert", "error")))
}

func TestArchivingAlertLog_TransientFailureIsRetried(t *testing.T) {
	sink := &sinkStub{failures: 1}
	teeState, m := newTestTee(sink, clockwork.NewFakeClock())
	log := &ArchivingAlertLog{primary: memstore.NewAlertLog(), tee: teeState}

	require.NoError(t, log.Append(context.Background(), alertFixture("alert-1")))

	// First call failed, the immediate re-attempt landed.
	assert.Len(t, sink.alerts, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("alert", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("alert", "error")))
}

func TestArchivingAlertLog_CancelledContextIsNotRetried(t *testing.T) {
	sink := &sinkStub{err: context.Canceled}
	teeState, m := newTestTee(sink, clockwork.NewFakeClock())
	log := &ArchivingAlertLog{primary: memstore.NewAlertLog(), tee: teeState}

	require.NoError(t, log.Append(context.Background(), alertFixture("alert-1")))

	assert.Len(t, sink.alerts, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("alert", "error")))
}

func TestArchivingAlertLog_AckMirrorsWithClockTime(t *testing.T) {
	sink := &sinkStub{}
	clock := clockwork.NewFakeClock()
	teeState, _ := newTestTee(sink, clock)
	log := &ArchivingAlertLog{primary: memstore.NewAlertLog(), tee: teeState}
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, alertFixture("alert-1")))
	require.NoError(t, log.MarkBroadcastDone(ctx, "alert-1"))

	require.Len(t, sink.alertAcks, 1)
	assert.Equal(t, "alert-1", sink.alertAcks[0].id)
	assert.True(t, sink.alertAcks[0].at.Equal(clock.Now()))
}

func TestArchivingAlertLog_PrimaryFailureSkipsArchive(t *testing.T) {
	sink := &sinkStub{}
	teeState, _ := newTestTee(sink, clockwork.NewFakeClock())
	log := &ArchivingAlertLog{primary: memstore.NewAlertLog(), tee: teeState}

	err := log.MarkBroadcastDone(context.Background(), "never-appended")
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)
	assert.Empty(t, sink.alertAcks)
}

func TestArchivingSignalLog_AppendAndProcessedTee(t *testing.T) {
	sink := &sinkStub{}
	clock := clockwork.NewFakeClock()
	teeState, m := newTestTee(sink, clock)
	log := &ArchivingSignalLog{primary: memstore.NewSignalLog(clock), tee: teeState}
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, signalFixture("signal-1")))
	require.NoError(t, log.MarkProcessed(ctx, "signal-1"))

	require.Len(t, sink.signals, 1)
	require.Len(t, sink.processed, 1)
	assert.Equal(t, "signal-1", sink.processed[0].id)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("signal", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("signal_processed", "success")))
}

func TestArchivingSnapshotStore_AppendTeesAndReadsDelegate(t *testing.T) {
	sink := &sinkStub{}
	teeState, _ := newTestTee(sink, clockwork.NewFakeClock())
	store := &ArchivingSnapshotStore{primary: memstore.NewSnapshotStore(), tee: teeState}
	ctx := context.Background()

	target := domain.TargetID{Group: "privacy"}
	snaps := []domain.SentimentSnapshot{snapshotFixture(target, 1)}
	require.NoError(t, store.Append(ctx, snaps))

	require.Len(t, sink.snapshots, 1)

	got, err := store.LastN(ctx, target, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, target, got[0].Target)

	latest, err := store.LatestAll(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}
