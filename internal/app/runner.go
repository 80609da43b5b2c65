package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/correlation"
)

// Runner invokes a task on a fixed period. A tick that arrives while the
// previous run is still executing is skipped and counted through onSkip,
// so a slow task never queues a backlog of runs behind itself.
type Runner struct {
	name     string
	interval time.Duration
	task     func(context.Context) error
	clock    clockwork.Clock
	onSkip   func()

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewRunner creates a runner that invokes task every interval.
// onSkip may be nil when skipped ticks need no accounting.
func NewRunner(name string, interval time.Duration, task func(context.Context) error, clock clockwork.Clock, onSkip func()) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		task:     task,
		clock:    clock,
		onSkip:   onSkip,
	}
}

// Run starts the periodic loop. It blocks until ctx is cancelled and
// waits for an in-flight run to finish before returning.
func (r *Runner) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("periodic task started", "task", r.name, "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			slog.Info("periodic task stopped", "task", r.name)
			return
		case <-ticker.Chan():
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if !r.busy.CompareAndSwap(false, true) {
		if r.onSkip != nil {
			r.onSkip()
		}
		slog.Warn("periodic task overran its interval, skipping tick", "task", r.name)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.busy.Store(false)

		tickCtx := correlation.WithID(ctx, correlation.NewID())
		if err := r.task(tickCtx); err != nil {
			slog.ErrorContext(tickCtx, "periodic task failed", "task", r.name, "error", err)
		}
	}()
}
