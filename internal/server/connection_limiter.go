package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Per-IP bounds for federation sockets. The global cap comes from
	// MAX_FEDERATION_CLIENTS; these guard against a single peer address
	// exhausting it.
	federationMaxPerIP  = 32
	federationDialRate  = 5.0
	federationDialBurst = 10

	dialCleanupInterval = 5 * time.Minute
	dialIdleCutoff      = 10 * time.Minute
)

// LimitReason describes why a federation connection was refused.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits guards the federation socket upgrade path with three
// checks: a per-IP dial rate, a global concurrent-connection cap, and a
// per-IP concurrent-connection cap. The hub enforces its own client cap
// as well; this layer refuses before the upgrade is attempted.
type ConnectionLimits struct {
	global *globalSlots
	perIP  *ipSlots
	dial   *dialRate
}

// NewConnectionLimits builds the composite limiter with the given global
// concurrent-connection cap.
func NewConnectionLimits(globalMax int) *ConnectionLimits {
	return &ConnectionLimits{
		global: &globalSlots{max: int64(globalMax)},
		perIP:  newIPSlots(federationMaxPerIP),
		dial:   newDialRate(federationDialRate, federationDialBurst),
	}
}

// Acquire claims a connection slot for the given IP. On refusal it
// returns false and the first limit that tripped; checks run cheapest
// first, and a per-IP refusal rolls the global slot back.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.dial.Allow(ip) {
		return false, LimitReasonRate
	}
	if !l.global.Acquire() {
		return false, LimitReasonGlobal
	}
	if !l.perIP.Acquire(ip) {
		l.global.Release()
		return false, LimitReasonPerIP
	}
	return true, ""
}

// Release returns the slots claimed by Acquire. Call exactly once per
// successful Acquire, after the connection closes.
func (l *ConnectionLimits) Release(ip string) {
	l.perIP.Release(ip)
	l.global.Release()
}

// Active returns the current number of held connection slots.
func (l *ConnectionLimits) Active() int64 {
	return l.global.current.Load()
}

// globalSlots caps total concurrent connections with a lock-free counter.
type globalSlots struct {
	current atomic.Int64
	max     int64
}

func (g *globalSlots) Acquire() bool {
	for {
		current := g.current.Load()
		if current >= g.max {
			return false
		}
		if g.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (g *globalSlots) Release() {
	g.current.Add(-1)
}

// ipSlots caps concurrent connections per source address.
type ipSlots struct {
	mu     sync.Mutex
	counts map[string]int
	maxPer int
}

func newIPSlots(maxPer int) *ipSlots {
	return &ipSlots{counts: make(map[string]int), maxPer: maxPer}
}

func (s *ipSlots) Acquire(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counts[ip] >= s.maxPer {
		return false
	}
	s.counts[ip]++
	return true
}

func (s *ipSlots) Release(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count := s.counts[ip]; count > 0 {
		s.counts[ip] = count - 1
		if s.counts[ip] == 0 {
			delete(s.counts, ip)
		}
	}
}

// dialRate caps the rate of new connections per source address with a
// token bucket per IP. Idle buckets are pruned on the next Allow after
// the cleanup interval elapses.
type dialRate struct {
	mu        sync.Mutex
	buckets   map[string]*dialBucket
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type dialBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newDialRate(perSecond float64, burst int) *dialRate {
	return &dialRate{
		buckets:   make(map[string]*dialBucket),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(dialCleanupInterval),
	}
}

func (d *dialRate) Allow(ip string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if now.After(d.cleanupAt) {
		cutoff := now.Add(-dialIdleCutoff)
		for ip, bucket := range d.buckets {
			if bucket.lastSeen.Before(cutoff) {
				delete(d.buckets, ip)
			}
		}
		d.cleanupAt = now.Add(dialCleanupInterval)
	}

	bucket, ok := d.buckets[ip]
	if !ok {
		bucket = &dialBucket{limiter: rate.NewLimiter(d.rate, d.burst)}
		d.buckets[ip] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}
