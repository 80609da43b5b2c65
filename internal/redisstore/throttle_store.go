package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// throttleTTLSlack keeps a window's key alive slightly past its expiry so
// the Go-side window math, not key eviction, decides the boundary instant.
const throttleTTLSlack = time.Second

// commitThrottleScript consumes one slot, rolling the window over when the
// previous one has expired. The expiry comparison is strictly greater-than,
// matching ThrottleState.Expired.
// KEYS: [1]=throttle:{submitter}  ARGV: [1]=now_ms, [2]=window_ms, [3]=ttl_ms
var commitThrottleScript = goredis.NewScript(`
local start = redis.call('HGET', KEYS[1], 'window_start')
if not start or tonumber(ARGV[1]) - tonumber(start) > tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  redis.call('HSET', KEYS[1], 'window_start', ARGV[1], 'count', 1)
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return 1
end
return redis.call('HINCRBY', KEYS[1], 'count', 1)
`)

// ThrottleStore keeps per-submitter fixed-window counters in Redis, shared
// across pipeline instances. Keys expire shortly after their window rolls
// over, so idle submitters cost nothing.
type ThrottleStore struct {
	rdb *goredis.Client
}

var _ domain.ThrottleStore = (*ThrottleStore)(nil)

// NewThrottleStore creates a throttle store on the given client.
func NewThrottleStore(client *Client) *ThrottleStore {
	return &ThrottleStore{rdb: client.Underlying()}
}

// Check implements domain.ThrottleStore without consuming quota.
func (s *ThrottleStore) Check(ctx context.Context, submitterID string, now time.Time, window time.Duration, limit int64) (domain.ThrottleDecision, error) {
	vals, err := s.rdb.HMGet(ctx, throttleKey(submitterID), "window_start", "count").Result()
	if err != nil {
		return domain.ThrottleDecision{}, fmt.Errorf("failed to read throttle state: %w", err)
	}

	st, ok, err := parseThrottleState(submitterID, vals)
	if err != nil {
		return domain.ThrottleDecision{}, err
	}
	if !ok || st.Expired(now, window) {
		return domain.ThrottleDecision{
			Allowed:   true,
			Remaining: limit,
			ResetTime: now.Add(window),
		}, nil
	}

	reset := st.WindowStart.Add(window)
	if st.Count < limit {
		return domain.ThrottleDecision{
			Allowed:   true,
			Remaining: limit - st.Count,
			ResetTime: reset,
		}, nil
	}
	return domain.ThrottleDecision{
		Allowed:   false,
		Remaining: 0,
		ResetTime: reset,
	}, nil
}

// Commit implements domain.ThrottleStore, consuming one slot.
func (s *ThrottleStore) Commit(ctx context.Context, submitterID string, now time.Time, window time.Duration) error {
	ttl := window + throttleTTLSlack
	err := commitThrottleScript.Run(ctx, s.rdb, []string{throttleKey(submitterID)},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(window.Milliseconds(), 10),
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("commit throttle script failed: %w", err)
	}
	return nil
}

func throttleKey(submitterID string) string {
	return "throttle:" + submitterID
}

// parseThrottleState rebuilds the window state from an HMGET reply. The
// second return is false when no state is stored.
func parseThrottleState(submitterID string, vals []any) (domain.ThrottleState, bool, error) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return domain.ThrottleState{}, false, nil
	}

	rawStart, ok := vals[0].(string)
	if !ok {
		return domain.ThrottleState{}, false, fmt.Errorf("throttle window_start holds %v", vals[0])
	}
	startMs, err := strconv.ParseInt(rawStart, 10, 64)
	if err != nil {
		return domain.ThrottleState{}, false, fmt.Errorf("throttle window_start holds %q: %w", rawStart, err)
	}

	rawCount, ok := vals[1].(string)
	if !ok {
		return domain.ThrottleState{}, false, fmt.Errorf("throttle count holds %v", vals[1])
	}
	count, err := strconv.ParseInt(rawCount, 10, 64)
	if err != nil {
		return domain.ThrottleState{}, false, fmt.Errorf("throttle count holds %q: %w", rawCount, err)
	}

	return domain.ThrottleState{
		SubmitterID: submitterID,
		WindowStart: time.UnixMilli(startMs),
		Count:       count,
	}, true, nil
}
