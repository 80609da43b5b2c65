package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestRunner_InvokesTaskEveryInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ran := make(chan struct{}, 8)

	r := NewRunner("test", time.Minute, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	clock.BlockUntilContext(ctx, 1) //nolint:errcheck // wait for the ticker to arm
	clock.Advance(time.Minute)
	waitForRun(t, ran)

	clock.BlockUntilContext(ctx, 1) //nolint:errcheck
	clock.Advance(time.Minute)
	waitForRun(t, ran)
}

func TestRunner_SkipsTickWhileBusy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	var runs, skips atomic.Int64

	r := NewRunner("test", time.Minute, func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}, clock, func() { skips.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// First tick starts a run that blocks on release.
	clock.BlockUntilContext(ctx, 1) //nolint:errcheck
	clock.Advance(time.Minute)
	waitForRun(t, started)

	// Second tick arrives while the run is still in flight and is skipped.
	clock.BlockUntilContext(ctx, 1) //nolint:errcheck
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return skips.Load() == 1 }, time.Second, time.Millisecond)

	// After the run completes the next tick executes again.
	close(release)
	assert.Eventually(t, func() bool { return !r.busy.Load() }, time.Second, time.Millisecond)
	clock.BlockUntilContext(ctx, 1) //nolint:errcheck
	clock.Advance(time.Minute)
	waitForRun(t, started)

	assert.Equal(t, int64(2), runs.Load())
	assert.Equal(t, int64(1), skips.Load())
}

func TestRunner_TaskErrorDoesNotStopLoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ran := make(chan struct{}, 8)
	var calls atomic.Int64

	r := NewRunner("test", time.Minute, func(context.Context) error {
		defer func() { ran <- struct{}{} }()
		if calls.Add(1) == 1 {
			return errors.New("boom")
		}
		return nil
	}, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	clock.BlockUntilContext(ctx, 1) //nolint:errcheck
	clock.Advance(time.Minute)
	waitForRun(t, ran)

	clock.BlockUntilContext(ctx, 1) //nolint:errcheck
	clock.Advance(time.Minute)
	waitForRun(t, ran)

	assert.Equal(t, int64(2), calls.Load())
}

func TestRunner_WaitsForInFlightRunOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	finished := make(chan struct{})

	r := NewRunner("test", time.Minute, func(context.Context) error {
		started <- struct{}{}
		<-release
		close(finished)
		return nil
	}, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	clock.BlockUntilContext(ctx, 1) //nolint:errcheck
	clock.Advance(time.Minute)
	waitForRun(t, started)

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while a task was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the in-flight task finished")
	}
	<-finished
}

func waitForRun(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task run")
	}
}
