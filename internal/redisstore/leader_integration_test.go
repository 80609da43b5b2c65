package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

func TestLeaderElection_SingleHolder(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	clock := clockwork.NewRealClock()

	first := NewLeaderElection(client, "instance-a", 30*time.Second, clock)
	second := NewLeaderElection(client, "instance-b", 30*time.Second, clock)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Renew(ctx))
}

func TestLeaderElection_RenewAfterLossReturnsNotLeader(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	leader := NewLeaderElection(client, "instance-a", 30*time.Second, clockwork.NewRealClock())
	ok, err := leader.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate lease expiry while this instance was partitioned away.
	require.NoError(t, client.Underlying().Del(ctx, leaderKey).Err())

	assert.ErrorIs(t, leader.Renew(ctx), domain.ErrNotLeader)
}

func TestLeaderElection_ReleaseHandsOver(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	clock := clockwork.NewRealClock()

	first := NewLeaderElection(client, "instance-a", 30*time.Second, clock)
	second := NewLeaderElection(client, "instance-b", 30*time.Second, clock)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx))

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaderElection_ReleaseOnlyDropsOwnLease(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	clock := clockwork.NewRealClock()

	holder := NewLeaderElection(client, "instance-a", 30*time.Second, clock)
	bystander := NewLeaderElection(client, "instance-b", 30*time.Second, clock)

	ok, err := holder.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, bystander.Release(ctx))

	current, err := client.Underlying().Get(ctx, leaderKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "instance-a", current)
}

func TestLeaderElection_LeaseExpiresWithoutRenewal(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	clock := clockwork.NewRealClock()

	first := NewLeaderElection(client, "instance-a", 200*time.Millisecond, clock)
	second := NewLeaderElection(client, "instance-b", 200*time.Millisecond, clock)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		ok, err := second.TryAcquire(ctx)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)
}

func TestLeaderElection_RunMaintainsLease(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewRealClock()

	leader := NewLeaderElection(client, "instance-a", 300*time.Millisecond, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		leader.Run(ctx)
	}()

	require.Eventually(t, leader.Leading, time.Second, 10*time.Millisecond)

	// Outlive the TTL: the renew loop must keep the lease alive.
	time.Sleep(500 * time.Millisecond)
	assert.True(t, leader.Leading())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop on cancellation")
	}
	assert.False(t, leader.Leading())

	// Shutdown released the lease, so a successor acquires immediately.
	successor := NewLeaderElection(client, "instance-b", 300*time.Millisecond, clock)
	ok, err := successor.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
