package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

const (
	leaderKey      = "pipeline:leader"
	releaseTimeout = 2 * time.Second
)

// renewLeaseScript extends the lease only while this instance still holds it.
// KEYS: [1]=leader key  ARGV: [1]=instance_id, [2]=ttl_ms
var renewLeaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// releaseLeaseScript deletes the lease only while this instance still holds
// it, so a successor's lease is never torn down.
// KEYS: [1]=leader key  ARGV: [1]=instance_id
var releaseLeaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// LeaderElection elects the single instance that runs the periodic engines,
// using a Redis key held under TTL. Followers retry acquisition as the
// leader renews; when the leader crashes, the lease times out and another
// instance takes over within one TTL.
type LeaderElection struct {
	rdb        *goredis.Client
	instanceID string
	ttl        time.Duration
	clock      clockwork.Clock

	leading atomic.Bool
}

// NewLeaderElection creates an election participant. instanceID must be
// unique per instance (e.g. hostname-PID).
func NewLeaderElection(client *Client, instanceID string, ttl time.Duration, clock clockwork.Clock) *LeaderElection {
	return &LeaderElection{
		rdb:        client.Underlying(),
		instanceID: instanceID,
		ttl:        ttl,
		clock:      clock,
	}
}

// Leading reports whether this instance currently holds the lease. It
// satisfies the gate the periodic engines consult before running.
func (l *LeaderElection) Leading() bool {
	return l.leading.Load()
}

// TryAcquire attempts to take the lease. Returns true when this instance
// is now the leader.
func (l *LeaderElection) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, leaderKey, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lease: %w", err)
	}
	return ok, nil
}

// Renew extends the lease. Returns domain.ErrNotLeader when another
// instance holds it now.
func (l *LeaderElection) Renew(ctx context.Context) error {
	result, err := renewLeaseScript.Run(ctx, l.rdb, []string{leaderKey},
		l.instanceID,
		strconv.FormatInt(l.ttl.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to renew leader lease: %w", err)
	}
	if result == 0 {
		return domain.ErrNotLeader
	}
	return nil
}

// Release voluntarily gives up the lease during graceful shutdown.
func (l *LeaderElection) Release(ctx context.Context) error {
	err := releaseLeaseScript.Run(ctx, l.rdb, []string{leaderKey}, l.instanceID).Err()
	if err != nil {
		return fmt.Errorf("failed to release leader lease: %w", err)
	}
	return nil
}

// Run maintains the lease until the context is cancelled: followers retry
// acquisition, the leader renews at a third of the TTL so two renew
// failures still fit inside the lease. On any renew failure the instance
// stops leading; if Redis was merely unreachable, the lease times out on
// its own and the next tick can reacquire it.
func (l *LeaderElection) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.stepDown()
			return
		case <-ticker.Chan():
			l.tick(ctx)
		}
	}
}

func (l *LeaderElection) tick(ctx context.Context) {
	if l.leading.Load() {
		err := l.Renew(ctx)
		if err == nil {
			return
		}
		l.leading.Store(false)
		if errors.Is(err, domain.ErrNotLeader) {
			slog.WarnContext(ctx, "pipeline leadership lost", "instance_id", l.instanceID)
		} else {
			slog.ErrorContext(ctx, "failed to renew leader lease", "instance_id", l.instanceID, "error", err)
		}
		return
	}

	ok, err := l.TryAcquire(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "leader acquisition attempt failed", "instance_id", l.instanceID, "error", err)
		return
	}
	if ok {
		l.leading.Store(true)
		slog.InfoContext(ctx, "acquired pipeline leadership", "instance_id", l.instanceID)
	}
}

// stepDown releases the lease on shutdown so a follower can take over
// immediately instead of waiting out the TTL.
func (l *LeaderElection) stepDown() {
	if !l.leading.Swap(false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := l.Release(ctx); err != nil {
		slog.Error("failed to release leader lease", "instance_id", l.instanceID, "error", err)
	}
}
