package memstore

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

const deltaStripes = 64

// DeltaStore accumulates trust deltas in memory. Published *TrustDelta
// values are never mutated after the map swap, so a reader holding one
// sees a consistent ledger no matter what writers do next.
type DeltaStore struct {
	clock  clockwork.Clock
	digest domain.DigestFunc

	stripes [deltaStripes]sync.Mutex

	mu      sync.RWMutex
	deltas  map[domain.TargetID]*domain.TrustDelta
	applied map[uuid.UUID]domain.TargetID
}

// NewDeltaStore creates an empty store. digest recomputes the integrity
// digest on every apply.
func NewDeltaStore(clock clockwork.Clock, digest domain.DigestFunc) *DeltaStore {
	return &DeltaStore{
		clock:   clock,
		digest:  digest,
		deltas:  make(map[domain.TargetID]*domain.TrustDelta),
		applied: make(map[uuid.UUID]domain.TargetID),
	}
}

func (s *DeltaStore) stripeFor(target domain.TargetID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(target.String()))
	return &s.stripes[h.Sum32()%deltaStripes]
}

// ApplyDelta implements domain.DeltaStore. Same-target applies serialize
// on a stripe; a replayed submission ID is answered from the ledger it
// originally landed in.
func (s *DeltaStore) ApplyDelta(_ context.Context, sub domain.Submission) (*domain.TrustDelta, bool, error) {
	stripe := s.stripeFor(sub.Target)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.RLock()
	if target, dup := s.applied[sub.ID]; dup {
		d := s.deltas[target]
		s.mu.RUnlock()
		return d.Clone(), false, nil
	}
	cur := s.deltas[sub.Target]
	s.mu.RUnlock()

	var next *domain.TrustDelta
	if cur == nil {
		next = domain.NewTrustDelta(sub.Target)
	} else {
		next = cur.Clone()
	}
	next.Apply(sub, s.clock.Now())
	next.IntegrityDigest = s.digest(next, sub.Proof)

	s.mu.Lock()
	// same-ID replays racing in on a different target are caught here
	if target, dup := s.applied[sub.ID]; dup {
		d := s.deltas[target]
		s.mu.Unlock()
		return d.Clone(), false, nil
	}
	s.deltas[sub.Target] = next
	s.applied[sub.ID] = sub.Target
	s.mu.Unlock()

	return next.Clone(), true, nil
}

// GetDelta implements domain.DeltaStore.
func (s *DeltaStore) GetDelta(_ context.Context, target domain.TargetID) (*domain.TrustDelta, error) {
	s.mu.RLock()
	d := s.deltas[target]
	s.mu.RUnlock()

	if d == nil {
		return nil, domain.ErrTargetNotFound
	}
	return d.Clone(), nil
}

// GetAll implements domain.DeltaStore.
func (s *DeltaStore) GetAll(_ context.Context) ([]*domain.TrustDelta, error) {
	s.mu.RLock()
	out := make([]*domain.TrustDelta, 0, len(s.deltas))
	for _, d := range s.deltas {
		out = append(out, d.Clone())
	}
	s.mu.RUnlock()
	return out, nil
}

// PurgeTarget implements domain.DeltaStore. It drops the ledger and the
// dedup entries that fed it.
func (s *DeltaStore) PurgeTarget(_ context.Context, target domain.TargetID) error {
	stripe := s.stripeFor(target)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deltas[target]; !ok {
		return domain.ErrTargetNotFound
	}
	delete(s.deltas, target)
	for id, t := range s.applied {
		if t == target {
			delete(s.applied, id)
		}
	}
	return nil
}
