package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// ThrottleStore keeps per-submitter fixed-window counters in memory.
// Expired windows are pruned on access.
type ThrottleStore struct {
	mu     sync.Mutex
	states map[string]domain.ThrottleState
}

// NewThrottleStore creates an empty throttle store.
func NewThrottleStore() *ThrottleStore {
	return &ThrottleStore{states: make(map[string]domain.ThrottleState)}
}

// Check implements domain.ThrottleStore without consuming quota.
func (s *ThrottleStore) Check(_ context.Context, submitterID string, now time.Time, window time.Duration, limit int64) (domain.ThrottleDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[submitterID]
	if ok && st.Expired(now, window) {
		delete(s.states, submitterID)
		ok = false
	}

	if !ok {
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
func (s *ThrottleStore) Commit(_ context.Context, submitterID string, now time.Time, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[submitterID]
	if !ok || st.Expired(now, window) {
		s.states[submitterID] = domain.ThrottleState{
			SubmitterID: submitterID,
			WindowStart: now,
			Count:       1,
		}
		return nil
	}

	st.Count++
	s.states[submitterID] = st
	return nil
}
