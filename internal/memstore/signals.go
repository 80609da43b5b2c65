package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// SignalLog keeps reward signal history in memory.
type SignalLog struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	signals []domain.RewardSignal
	byID    map[string]int
	byKey   map[domain.SignalKey]time.Time
}

// NewSignalLog creates an empty signal log. clock stamps ProcessedAt.
func NewSignalLog(clock clockwork.Clock) *SignalLog {
	return &SignalLog{
		clock: clock,
		byID:  make(map[string]int),
		byKey: make(map[domain.SignalKey]time.Time),
	}
}

// Append implements domain.SignalLog.
func (l *SignalLog) Append(_ context.Context, sig domain.RewardSignal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID[sig.ID] = len(l.signals)
	l.signals = append(l.signals, sig)
	if sig.CreatedAt.After(l.byKey[sig.Key()]) {
		l.byKey[sig.Key()] = sig.CreatedAt
	}
	return nil
}

// MarkProcessed implements domain.SignalLog.
func (l *SignalLog) MarkProcessed(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.byID[id]
	if !ok {
		return domain.ErrSignalNotFound
	}
	if l.signals[idx].Processed {
		return nil
	}
	l.signals[idx].Processed = true
	l.signals[idx].ProcessedAt = l.clock.Now()
	return nil
}

// List implements domain.SignalLog.
func (l *SignalLog) List(_ context.Context, processed *bool, limit int) ([]domain.RewardSignal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.RewardSignal
	for i := len(l.signals) - 1; i >= 0; i-- {
		sig := l.signals[i]
		if processed != nil && sig.Processed != *processed {
			continue
		}
		out = append(out, sig)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CountSince implements domain.SignalLog.
func (l *SignalLog) CountSince(_ context.Context, since time.Time) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int64
	for i := len(l.signals) - 1; i >= 0; i-- {
		if l.signals[i].CreatedAt.Before(since) {
			break
		}
		n++
	}
	return n, nil
}

// LastSignalTime implements domain.SignalLog.
func (l *SignalLog) LastSignalTime(_ context.Context, key domain.SignalKey) (time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byKey[key], nil
}
