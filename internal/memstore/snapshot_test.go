package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

func snapshotAt(target domain.TargetID, seq uint64, net int64) domain.SentimentSnapshot {
	return domain.SentimentSnapshot{
		Target:       target,
		NetSentiment: net,
		CycleSeq:     seq,
		CycleTime:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
	}
}

func TestSnapshotStore_LastNNewestFirst(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()
	target := domain.TargetID{Group: "governance"}

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, store.Append(ctx, []domain.SentimentSnapshot{snapshotAt(target, seq, int64(seq)*10)}))
	}

	last3, err := store.LastN(ctx, target, 3)
	require.NoError(t, err)
	require.Len(t, last3, 3)
	assert.EqualValues(t, 5, last3[0].CycleSeq)
	assert.EqualValues(t, 4, last3[1].CycleSeq)
	assert.EqualValues(t, 3, last3[2].CycleSeq)

	all, err := store.LastN(ctx, target, 50)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := store.LastN(ctx, domain.TargetID{Group: "unknown"}, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSnapshotStore_RetentionBound(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()
	target := domain.TargetID{Group: "privacy"}

	for seq := uint64(1); seq <= snapshotRetention+20; seq++ {
		require.NoError(t, store.Append(ctx, []domain.SentimentSnapshot{snapshotAt(target, seq, 0)}))
	}

	history, err := store.LastN(ctx, target, snapshotRetention*2)
	require.NoError(t, err)
	assert.Len(t, history, snapshotRetention)
	assert.EqualValues(t, snapshotRetention+20, history[0].CycleSeq)
	assert.EqualValues(t, 21, history[len(history)-1].CycleSeq)
}

func TestSnapshotStore_LatestAllOrderedByTarget(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	a := domain.TargetID{Group: "alpha"}
	b := domain.TargetID{Group: "beta"}

	require.NoError(t, store.Append(ctx, []domain.SentimentSnapshot{
		snapshotAt(b, 1, 5),
		snapshotAt(a, 1, 3),
	}))
	require.NoError(t, store.Append(ctx, []domain.SentimentSnapshot{snapshotAt(b, 2, 8)}))

	latest, err := store.LatestAll(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, a, latest[0].Target)
	assert.EqualValues(t, 1, latest[0].CycleSeq)
	assert.Equal(t, b, latest[1].Target)
	assert.EqualValues(t, 2, latest[1].CycleSeq)
}
