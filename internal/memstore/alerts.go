package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// AlertLog keeps the alert history in memory, chronological internally
// and newest first on every read.
type AlertLog struct {
	mu         sync.RWMutex
	alerts     []domain.Alert
	byID       map[string]int
	lastSystem time.Time
}

// NewAlertLog creates an empty alert log.
func NewAlertLog() *AlertLog {
	return &AlertLog{byID: make(map[string]int)}
}

// Append implements domain.AlertLog.
func (l *AlertLog) Append(_ context.Context, a domain.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID[a.ID] = len(l.alerts)
	l.alerts = append(l.alerts, a)
	if a.Type == domain.AlertSystemDegradation && a.CreatedAt.After(l.lastSystem) {
		l.lastSystem = a.CreatedAt
	}
	return nil
}

// MarkBroadcastDone implements domain.AlertLog.
func (l *AlertLog) MarkBroadcastDone(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.byID[id]
	if !ok {
		return domain.ErrAlertNotFound
	}
	l.alerts[idx].BroadcastDone = true
	return nil
}

// ListSince implements domain.AlertLog.
func (l *AlertLog) ListSince(_ context.Context, severity *domain.AlertSeverity, since time.Time) ([]domain.Alert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Alert
	for i := len(l.alerts) - 1; i >= 0; i-- {
		a := l.alerts[i]
		if a.CreatedAt.Before(since) {
			continue
		}
		if severity != nil && a.Severity != *severity {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// PendingBroadcast implements domain.AlertLog.
func (l *AlertLog) PendingBroadcast(_ context.Context) ([]domain.Alert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Alert
	for i := len(l.alerts) - 1; i >= 0; i-- {
		if l.alerts[i].PendingBroadcast() {
			out = append(out, l.alerts[i])
		}
	}
	return out, nil
}

// LastSystemAlert implements domain.AlertLog.
func (l *AlertLog) LastSystemAlert(_ context.Context) (time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSystem, nil
}
