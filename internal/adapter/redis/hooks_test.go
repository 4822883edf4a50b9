package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(context.Context, goredis.Cmder) error { return errors.New("connection refused") }

func succeeding(context.Context, goredis.Cmder) error { return nil }

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	process := hook.ProcessHook(succeeding)
	ctx := context.Background()

	for range 10 {
		require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_NilIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	ctx := context.Background()

	for range 10 {
		assert.ErrorIs(t, process(ctx, goredis.NewStringCmd(ctx, "get", "missing")), goredis.Nil)
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_OpensAfterSustainedFailures(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := NewCircuitBreakerHook(m)
	process := hook.ProcessHook(failing)
	ctx := context.Background()

	for range 5 {
		assert.Error(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitState))

	called := false
	cmd := goredis.NewStringCmd(ctx, "get", "key")
	err := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})(ctx, cmd)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	assert.False(t, called, "open breaker must not reach redis")
}

func TestCircuitBreakerHook_PipelineFailsFastWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()
	process := hook.ProcessHook(failing)
	for range 5 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}

	cmds := []goredis.Cmder{goredis.NewIntCmd(ctx, "hincrby", "k", "f", 1)}
	err := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })(ctx, cmds)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmds[0].Err(), circuitbreaker.ErrOpen)
}

func TestMetricsHook_RecordsErrorsByCommand(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := &MetricsHook{metrics: m}
	ctx := context.Background()

	_ = hook.ProcessHook(succeeding)(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	_ = hook.ProcessHook(failing)(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	_ = hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })(ctx, goredis.NewStringCmd(ctx, "get", "key"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("get")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}
