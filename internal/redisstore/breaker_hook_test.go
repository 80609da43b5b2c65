package redisstore

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

func newTestBreaker() (*BreakerHook, *metrics.StoreMetrics) {
	m := metrics.NewStoreMetrics(prometheus.NewRegistry())
	return NewBreakerHook(m), m
}

func runProcess(hook *BreakerHook, next goredis.ProcessHook) error {
	ctx := context.Background()
	return hook.ProcessHook(next)(ctx, goredis.NewStringCmd(ctx, "get", "key"))
}

func TestBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook, _ := newTestBreaker()

	for range 10 {
		err := runProcess(hook, func(ctx context.Context, cmd goredis.Cmder) error {
			return nil
		})
		assert.NoError(t, err)
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestBreakerHook_MissingKeysAreNotFailures(t *testing.T) {
	hook, _ := newTestBreaker()

	for range 10 {
		err := runProcess(hook, func(ctx context.Context, cmd goredis.Cmder) error {
			return goredis.Nil
		})
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestBreakerHook_TransientFailuresStayClosed(t *testing.T) {
	hook, _ := newTestBreaker()

	// Two failures sit below the five-request minimum.
	for range 2 {
		err := runProcess(hook, func(ctx context.Context, cmd goredis.Cmder) error {
			return errors.New("connection refused")
		})
		assert.Error(t, err)
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestBreakerHook_OpensAfterSustainedFailures(t *testing.T) {
	hook, m := newTestBreaker()

	for range 5 {
		err := runProcess(hook, func(ctx context.Context, cmd goredis.Cmder) error {
			return errors.New("connection timeout")
		})
		assert.Error(t, err)
	}

	assert.Equal(t, circuitbreaker.OpenState, hook.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("open")))
}

func TestBreakerHook_FailsFastWhenOpen(t *testing.T) {
	hook, _ := newTestBreaker()

	for range 5 {
		_ = runProcess(hook, func(ctx context.Context, cmd goredis.Cmder) error {
			return errors.New("connection timeout")
		})
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	called := false
	err := runProcess(hook, func(ctx context.Context, cmd goredis.Cmder) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, called)
}

func TestBreakerHook_PipelineSharesBreaker(t *testing.T) {
	hook, _ := newTestBreaker()

	for range 5 {
		_ = runProcess(hook, func(ctx context.Context, cmd goredis.Cmder) error {
			return errors.New("connection timeout")
		})
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	err := hook.ProcessPipelineHook(func(ctx context.Context, cmds []goredis.Cmder) error {
		t.Fatal("pipeline must not execute while the breaker is open")
		return nil
	})(context.Background(), nil)

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestBreakerHook_DialFailuresTrip(t *testing.T) {
	hook, _ := newTestBreaker()
	ctx := context.Background()

	dial := hook.DialHook(func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	for range 5 {
		_, err := dial(ctx, "tcp", "localhost:6379")
		assert.Error(t, err)
	}

	assert.Equal(t, circuitbreaker.OpenState, hook.State())

	_, err := dial(ctx, "tcp", "localhost:6379")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}
