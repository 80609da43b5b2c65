package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// targetsSetKey lives outside the delta:* namespace so no target name can
// collide with it.
const targetsSetKey = "delta_targets"

// applyDeltaScript folds one submission into its target's ledger hash.
// The dedup key pins the submission ID to the target it first landed in;
// a replay returns {0, original_target} untouched. A dedup entry whose
// ledger was purged no longer protects anything, so the ID applies again.
// KEYS: [1]=applied:{id}, [2]=delta:{target}, [3]=targets set
// ARGV: [1]=target, [2]=support_inc, [3]=dissent_inc, [4]=intensity,
//
//	[5]=tier_field, [6]=now_ms
var applyDeltaScript = goredis.NewScript(`
local prior = redis.call('GET', KEYS[1])
if prior then
  if prior ~= ARGV[1] or redis.call('EXISTS', KEYS[2]) == 1 then
    return {0, prior}
  end
end
redis.call('SET', KEYS[1], ARGV[1])
local support = redis.call('HINCRBY', KEYS[2], 'net_support', ARGV[2])
local dissent = redis.call('HINCRBY', KEYS[2], 'net_dissent', ARGV[3])
local total = redis.call('HINCRBY', KEYS[2], 'total_submissions', 1)
local intensity = redis.call('HINCRBY', KEYS[2], 'intensity_sum', ARGV[4])
redis.call('HINCRBY', KEYS[2], ARGV[5], 1)
redis.call('HSET', KEYS[2], 'last_updated', ARGV[6])
redis.call('SADD', KEYS[3], ARGV[1])
local tiers = redis.call('HMGET', KEYS[2], 'tier:T1', 'tier:T2', 'tier:T3')
return {1, support, dissent, total, intensity,
  tonumber(tiers[1]) or 0, tonumber(tiers[2]) or 0, tonumber(tiers[3]) or 0}
`)

// writeDigestScript stores the integrity digest computed for a specific
// ledger version. When a concurrent apply advanced the ledger first, the
// digest belongs to a stale version and is dropped; the winner writes its own.
// KEYS: [1]=delta:{target}  ARGV: [1]=expected_total, [2]=digest
var writeDigestScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'total_submissions') == ARGV[1] then
  redis.call('HSET', KEYS[1], 'digest', ARGV[2])
  return 1
end
return 0
`)

// purgeTargetScript drops one ledger and its membership in the target set.
// KEYS: [1]=delta:{target}, [2]=targets set  ARGV: [1]=target
var purgeTargetScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return 1
`)

// DeltaStore accumulates trust deltas in Redis so every pipeline instance
// sees the same ledgers. Each apply runs as one Lua script, so concurrent
// instances never interleave half a submission.
type DeltaStore struct {
	rdb    *goredis.Client
	clock  clockwork.Clock
	digest domain.DigestFunc
}

var _ domain.DeltaStore = (*DeltaStore)(nil)

// NewDeltaStore creates a store on the given client. digest recomputes the
// integrity digest on every apply.
func NewDeltaStore(client *Client, clock clockwork.Clock, digest domain.DigestFunc) *DeltaStore {
	return &DeltaStore{
		rdb:    client.Underlying(),
		clock:  clock,
		digest: digest,
	}
}

// ApplyDelta implements domain.DeltaStore. The counter fold is atomic in
// Redis; the digest is computed here from the returned counters and written
// back guarded by the ledger version, so a digest never describes counters
// other than the ones it was computed over.
func (s *DeltaStore) ApplyDelta(ctx context.Context, sub domain.Submission) (*domain.TrustDelta, bool, error) {
	now := s.clock.Now()
	weighted := sub.Intensity * sub.Tier.Weight()
	supportInc, dissentInc := int64(0), int64(0)
	if sub.Feedback == domain.FeedbackSupport {
		supportInc = weighted
	} else {
		dissentInc = weighted
	}

	keys := []string{appliedKey(sub.ID.String()), deltaKey(sub.Target), targetsSetKey}
	result, err := applyDeltaScript.Run(ctx, s.rdb, keys,
		sub.Target.String(),
		strconv.FormatInt(supportInc, 10),
		strconv.FormatInt(dissentInc, 10),
		strconv.FormatInt(sub.Intensity, 10),
		tierField(sub.Tier),
		strconv.FormatInt(now.UnixMilli(), 10),
	).Result()
	if err != nil {
		return nil, false, fmt.Errorf("apply delta script failed: %w", err)
	}

	reply, ok := result.([]any)
	if !ok || len(reply) < 2 {
		return nil, false, fmt.Errorf("apply delta script returned unexpected reply %v", result)
	}

	if asInt(reply[0]) == 0 {
		return s.replayedDelta(ctx, reply[1])
	}
	if len(reply) != 8 {
		return nil, false, fmt.Errorf("apply delta script returned unexpected reply %v", result)
	}

	next := &domain.TrustDelta{
		Target:           sub.Target,
		NetSupport:       asInt(reply[1]),
		NetDissent:       asInt(reply[2]),
		TotalSubmissions: asInt(reply[3]),
		IntensitySum:     asInt(reply[4]),
		TierSubmissions: map[domain.Tier]int64{
			domain.TierBasic:    asInt(reply[5]),
			domain.TierVerified: asInt(reply[6]),
			domain.TierCivic:    asInt(reply[7]),
		},
		LastUpdated: now,
	}
	next.IntegrityDigest = s.digest(next, sub.Proof)

	err = writeDigestScript.Run(ctx, s.rdb, []string{deltaKey(sub.Target)},
		strconv.FormatInt(next.TotalSubmissions, 10),
		next.IntegrityDigest,
	).Err()
	if err != nil {
		return nil, false, fmt.Errorf("write digest script failed: %w", err)
	}
	return next, true, nil
}

// replayedDelta answers a duplicate submission from the ledger it
// originally landed in.
func (s *DeltaStore) replayedDelta(ctx context.Context, rawTarget any) (*domain.TrustDelta, bool, error) {
	prior, ok := rawTarget.(string)
	if !ok {
		return nil, false, fmt.Errorf("apply delta script returned non-string target %v", rawTarget)
	}
	target, err := domain.ParseTargetID(prior)
	if err != nil {
		return nil, false, fmt.Errorf("stored dedup target %q is invalid: %w", prior, err)
	}

	delta, err := s.GetDelta(ctx, target)
	if err == nil {
		return delta, false, nil
	}
	if errors.Is(err, domain.ErrTargetNotFound) {
		// The original ledger was purged under a different target.
		return domain.NewTrustDelta(target), false, nil
	}
	return nil, false, err
}

// GetDelta implements domain.DeltaStore.
func (s *DeltaStore) GetDelta(ctx context.Context, target domain.TargetID) (*domain.TrustDelta, error) {
	fields, err := s.rdb.HGetAll(ctx, deltaKey(target)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read delta: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrTargetNotFound
	}
	return parseDelta(target, fields)
}

// GetAll implements domain.DeltaStore. Each ledger hash is read atomically,
// so no returned delta carries half a submission.
func (s *DeltaStore) GetAll(ctx context.Context) ([]*domain.TrustDelta, error) {
	members, err := s.rdb.SMembers(ctx, targetsSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	targets := make([]domain.TargetID, 0, len(members))
	cmds := make([]*goredis.MapStringStringCmd, 0, len(members))
	pipe := s.rdb.Pipeline()
	for _, m := range members {
		target, err := domain.ParseTargetID(m)
		if err != nil {
			return nil, fmt.Errorf("stored target %q is invalid: %w", m, err)
		}
		targets = append(targets, target)
		cmds = append(cmds, pipe.HGetAll(ctx, deltaKey(target)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read deltas: %w", err)
	}

	deltas := make([]*domain.TrustDelta, 0, len(cmds))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Purged between SMEMBERS and the pipelined read.
			continue
		}
		delta, err := parseDelta(targets[i], fields)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, delta)
	}
	return deltas, nil
}

// PurgeTarget implements domain.DeltaStore.
func (s *DeltaStore) PurgeTarget(ctx context.Context, target domain.TargetID) error {
	removed, err := purgeTargetScript.Run(ctx, s.rdb,
		[]string{deltaKey(target), targetsSetKey},
		target.String(),
	).Int64()
	if err != nil {
		return fmt.Errorf("purge target script failed: %w", err)
	}
	if removed == 0 {
		return domain.ErrTargetNotFound
	}
	return nil
}

func deltaKey(target domain.TargetID) string {
	return "delta:" + target.String()
}

func appliedKey(id string) string {
	return "applied:" + id
}

func tierField(t domain.Tier) string {
	return "tier:" + string(t)
}

// parseDelta rebuilds a ledger from its hash fields. Missing numeric fields
// read as zero so a ledger written by an older version still parses.
func parseDelta(target domain.TargetID, fields map[string]string) (*domain.TrustDelta, error) {
	d := domain.NewTrustDelta(target)

	var err error
	if d.NetSupport, err = parseField(fields, "net_support"); err != nil {
		return nil, err
	}
	if d.NetDissent, err = parseField(fields, "net_dissent"); err != nil {
		return nil, err
	}
	if d.TotalSubmissions, err = parseField(fields, "total_submissions"); err != nil {
		return nil, err
	}
	if d.IntensitySum, err = parseField(fields, "intensity_sum"); err != nil {
		return nil, err
	}
	for _, tier := range []domain.Tier{domain.TierBasic, domain.TierVerified, domain.TierCivic} {
		n, err := parseField(fields, tierField(tier))
		if err != nil {
			return nil, err
		}
		if n > 0 {
			d.TierSubmissions[tier] = n
		}
	}

	d.IntegrityDigest = fields["digest"]
	if raw, ok := fields["last_updated"]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("delta field last_updated holds %q: %w", raw, err)
		}
		d.LastUpdated = time.UnixMilli(ms)
	}
	return d, nil
}

func parseField(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("delta field %s holds %q: %w", name, raw, err)
	}
	return n, nil
}

func asInt(v any) int64 {
	n, _ := v.(int64)
	return n
}
