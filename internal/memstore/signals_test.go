package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

func signalAt(id string, key domain.SignalKey, at time.Time) domain.RewardSignal {
	return domain.RewardSignal{
		ID:          id,
		SubmitterID: key.SubmitterID,
		Target:      key.Target,
		Tier:        key.Tier,
		Amount:      5,
		Reason:      "threshold crossed",
		CreatedAt:   at,
	}
}

func TestSignalLog_MarkProcessedOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := NewSignalLog(clock)
	ctx := context.Background()

	key := domain.SignalKey{SubmitterID: "anon-1", Target: domain.TargetID{Group: "governance"}, Tier: domain.TierBasic}
	require.NoError(t, log.Append(ctx, signalAt("s1", key, clock.Now())))

	require.NoError(t, log.MarkProcessed(ctx, "s1"))
	processedAt := clock.Now()

	clock.Advance(time.Hour)
	require.NoError(t, log.MarkProcessed(ctx, "s1")) // repeat is a no-op

	processed := true
	got, err := log.List(ctx, &processed, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, processedAt, got[0].ProcessedAt, "repeat mark must not restamp")

	assert.ErrorIs(t, log.MarkProcessed(ctx, "nope"), domain.ErrSignalNotFound)
}

func TestSignalLog_ListFiltersAndLimits(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := NewSignalLog(clock)
	ctx := context.Background()

	key := domain.SignalKey{SubmitterID: "anon-1", Target: domain.TargetID{Group: "education"}, Tier: domain.TierVerified}
	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, log.Append(ctx, signalAt(id, key, clock.Now().Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, log.MarkProcessed(ctx, "s2"))

	unprocessed := false
	got, err := log.List(ctx, &unprocessed, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s3", got[0].ID)
	assert.Equal(t, "s1", got[1].ID)

	limited, err := log.List(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "s3", limited[0].ID)
	assert.Equal(t, "s2", limited[1].ID)
}

func TestSignalLog_CountSinceRollingWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := NewSignalLog(clock)
	ctx := context.Background()
	key := domain.SignalKey{SubmitterID: "anon-1", Target: domain.TargetID{Group: "health"}, Tier: domain.TierCivic}

	start := clock.Now()
	require.NoError(t, log.Append(ctx, signalAt("s1", key, start)))
	require.NoError(t, log.Append(ctx, signalAt("s2", key, start.Add(20*time.Minute))))
	require.NoError(t, log.Append(ctx, signalAt("s3", key, start.Add(70*time.Minute))))

	count, err := log.CountSince(ctx, start.Add(70*time.Minute).Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "s1 fell out of the rolling hour")

	count, err = log.CountSince(ctx, start)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestSignalLog_LastSignalTimePerKey(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := NewSignalLog(clock)
	ctx := context.Background()

	target := domain.TargetID{Group: "justice"}
	t1 := domain.SignalKey{SubmitterID: "anon-1", Target: target, Tier: domain.TierBasic}
	t2 := domain.SignalKey{SubmitterID: "anon-1", Target: target, Tier: domain.TierVerified}

	at := clock.Now()
	require.NoError(t, log.Append(ctx, signalAt("s1", t1, at)))

	got, err := log.LastSignalTime(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, at, got)

	// same submitter and target, different tier: independent cooldown scope
	got, err = log.LastSignalTime(ctx, t2)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
