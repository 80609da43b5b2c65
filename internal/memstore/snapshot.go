package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// snapshotRetention bounds per-target history depth. Trend computation
// needs three snapshots; a hundred leaves audit headroom.
const snapshotRetention = 100

// SnapshotStore keeps bounded per-target snapshot history in memory,
// newest first.
type SnapshotStore struct {
	mu       sync.RWMutex
	byTarget map[domain.TargetID][]domain.SentimentSnapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{byTarget: make(map[domain.TargetID][]domain.SentimentSnapshot)}
}

// Append implements domain.SnapshotStore.
func (s *SnapshotStore) Append(_ context.Context, snaps []domain.SentimentSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		history := s.byTarget[snap.Target]
		history = append([]domain.SentimentSnapshot{snap}, history...)
		if len(history) > snapshotRetention {
			history = history[:snapshotRetention]
		}
		s.byTarget[snap.Target] = history
	}
	return nil
}

// LastN implements domain.SnapshotStore.
func (s *SnapshotStore) LastN(_ context.Context, target domain.TargetID, n int) ([]domain.SentimentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.byTarget[target]
	if n > len(history) {
		n = len(history)
	}
	out := make([]domain.SentimentSnapshot, n)
	copy(out, history[:n])
	return out, nil
}

// LatestAll implements domain.SnapshotStore. Results are ordered by
// target for stable exports.
func (s *SnapshotStore) LatestAll(_ context.Context) ([]domain.SentimentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SentimentSnapshot, 0, len(s.byTarget))
	for _, history := range s.byTarget {
		if len(history) > 0 {
			out = append(out, history[0])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Target.String() < out[j].Target.String()
	})
	return out, nil
}
