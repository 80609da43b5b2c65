package trust

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/integrity"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/memstore"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

type deltaStoreMock struct {
	applyFunc func(ctx context.Context, s domain.Submission) (*domain.TrustDelta, bool, error)
	getFunc   func(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error)
	allFunc   func(ctx context.Context) ([]*domain.TrustDelta, error)
	purgeFunc func(ctx context.Context, target domain.TargetID) error
}

func (m *deltaStoreMock) ApplyDelta(ctx context.Context, s domain.Submission) (*domain.TrustDelta, bool, error) {
	return m.applyFunc(ctx, s)
}

func (m *deltaStoreMock) GetDelta(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error) {
	return m.getFunc(ctx, target)
}

func (m *deltaStoreMock) GetAll(ctx context.Context) ([]*domain.TrustDelta, error) {
	return m.allFunc(ctx)
}

func (m *deltaStoreMock) PurgeTarget(ctx context.Context, target domain.TargetID) error {
	return m.purgeFunc(ctx, target)
}

func newTestSubmission(target domain.TargetID) domain.Submission {
	return domain.Submission{
		ID:          uuid.New(),
		SubmitterID: "did:civic:alice",
		Target:      target,
		Feedback:    domain.FeedbackSupport,
		Intensity:   4,
		Tier:        domain.TierVerified,
		Proof:       "deadbeef",
		SubmittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestService_ApplyAccumulates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	store := memstore.NewDeltaStore(clock, integrity.DeltaDigest)
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	target := domain.TargetID{Group: "policy", Sub: "budget"}
	delta, applied, err := svc.Apply(context.Background(), newTestSubmission(target))

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(8), delta.NetSupport)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.WriteConsistencyFailures))
}

func TestService_ApplyDuplicateIsNoOp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	store := memstore.NewDeltaStore(clock, integrity.DeltaDigest)
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	sub := newTestSubmission(domain.TargetID{Group: "policy"})
	_, applied, err := svc.Apply(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, applied)

	delta, applied, err := svc.Apply(context.Background(), sub)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(1), delta.TotalSubmissions)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.WriteConsistencyFailures))
}

func TestService_ApplyWrapsStoreError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	store := &deltaStoreMock{
		applyFunc: func(context.Context, domain.Submission) (*domain.TrustDelta, bool, error) {
			return nil, false, domain.ErrStoreUnavailable
		},
	}
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	_, _, err := svc.Apply(context.Background(), newTestSubmission(domain.TargetID{Group: "policy"}))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestService_VerifyCountsDigestMismatch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	target := domain.TargetID{Group: "policy"}
	written := domain.NewTrustDelta(target)
	written.NetSupport = 8
	written.TotalSubmissions = 1
	written.IntegrityDigest = "expected"

	corrupted := written.Clone()
	corrupted.IntegrityDigest = "tampered"
	store := &deltaStoreMock{
		applyFunc: func(context.Context, domain.Submission) (*domain.TrustDelta, bool, error) {
			return written, true, nil
		},
		getFunc: func(context.Context, domain.TargetID) (*domain.TrustDelta, error) {
			return corrupted, nil
		},
	}
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	_, applied, err := svc.Apply(context.Background(), newTestSubmission(target))

	require.NoError(t, err, "consistency failures must not surface to callers")
	assert.True(t, applied)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WriteConsistencyFailures))
}

func TestService_VerifyToleratesConcurrentAdvance(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	target := domain.TargetID{Group: "policy"}
	written := domain.NewTrustDelta(target)
	written.NetSupport = 8
	written.TotalSubmissions = 1

	advanced := written.Clone()
	advanced.NetSupport = 11
	advanced.TotalSubmissions = 2
	store := &deltaStoreMock{
		applyFunc: func(context.Context, domain.Submission) (*domain.TrustDelta, bool, error) {
			return written, true, nil
		},
		getFunc: func(context.Context, domain.TargetID) (*domain.TrustDelta, error) {
			return advanced, nil
		},
	}
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	_, _, err := svc.Apply(context.Background(), newTestSubmission(target))

	require.NoError(t, err)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.WriteConsistencyFailures))
}

func TestService_VerifyCountsRegressedLedger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	target := domain.TargetID{Group: "policy"}
	written := domain.NewTrustDelta(target)
	written.NetSupport = 8
	written.TotalSubmissions = 2

	stale := domain.NewTrustDelta(target)
	stale.NetSupport = 3
	stale.TotalSubmissions = 1
	store := &deltaStoreMock{
		applyFunc: func(context.Context, domain.Submission) (*domain.TrustDelta, bool, error) {
			return written, true, nil
		},
		getFunc: func(context.Context, domain.TargetID) (*domain.TrustDelta, error) {
			return stale, nil
		},
	}
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	_, _, err := svc.Apply(context.Background(), newTestSubmission(target))

	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WriteConsistencyFailures))
}

func TestService_VerifyCountsReadBackFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	target := domain.TargetID{Group: "policy"}
	written := domain.NewTrustDelta(target)
	written.TotalSubmissions = 1
	store := &deltaStoreMock{
		applyFunc: func(context.Context, domain.Submission) (*domain.TrustDelta, bool, error) {
			return written, true, nil
		},
		getFunc: func(context.Context, domain.TargetID) (*domain.TrustDelta, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	_, _, err := svc.Apply(context.Background(), newTestSubmission(target))

	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WriteConsistencyFailures))
}

func TestService_GetUnknownTarget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	svc := NewService(memstore.NewDeltaStore(clock, integrity.DeltaDigest), integrity.DeltaDigest, m, clock)

	_, err := svc.Get(context.Background(), domain.TargetID{Group: "ghost"})

	assert.ErrorIs(t, err, domain.ErrTargetNotFound)
}

func TestService_PurgeRemovesLedger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	store := memstore.NewDeltaStore(clock, integrity.DeltaDigest)
	svc := NewService(store, integrity.DeltaDigest, m, clock)

	target := domain.TargetID{Group: "policy"}
	_, _, err := svc.Apply(context.Background(), newTestSubmission(target))
	require.NoError(t, err)

	require.NoError(t, svc.Purge(context.Background(), target))

	_, err = svc.Get(context.Background(), target)
	assert.ErrorIs(t, err, domain.ErrTargetNotFound)

	all, err := svc.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
