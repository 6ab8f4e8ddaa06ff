package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCircuitBreaker(t *testing.T) {
	logger := zaptest.NewLogger(t)

	newCB := func(t *testing.T) *CircuitBreaker {
		cb, err := NewCircuitBreaker(Config{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Second,
			Timeout:          100 * time.Millisecond,
			FailureThreshold: 2,
		}, logger, prometheus.NewRegistry())
		require.NoError(t, err)
		return cb
	}

	trip := func(t *testing.T, cb *CircuitBreaker) {
		for i := 0; i < 2; i++ {
			assert.Error(t, cb.Execute(func() error {
				return errors.New("failure")
			}))
		}
		require.Equal(t, gobreaker.StateOpen, cb.State())
	}

	t.Run("Initially Closed", func(t *testing.T) {
		cb := newCB(t)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
		assert.Equal(t, "test", cb.Name())
	})

	t.Run("Opens After Failures", func(t *testing.T) {
		cb := newCB(t)

		err := cb.Execute(func() error { return errors.New("error 1") })
		assert.EqualError(t, err, "error 1")
		assert.Equal(t, gobreaker.StateClosed, cb.State())

		err = cb.Execute(func() error { return errors.New("error 2") })
		assert.EqualError(t, err, "error 2")
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		called := false
		err = cb.Execute(func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.True(t, IsOpen(err))
		assert.False(t, called)
	})

	t.Run("Success Resets Consecutive Failures", func(t *testing.T) {
		cb := newCB(t)

		assert.Error(t, cb.Execute(func() error { return errors.New("failure") }))
		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Error(t, cb.Execute(func() error { return errors.New("failure") }))
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Transitions to Half-Open", func(t *testing.T) {
		cb := newCB(t)
		trip(t, cb)

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		err := cb.Execute(func() error { return errors.New("failure in half-open") })
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateOpen, cb.State())
	})

	t.Run("Closes After Success", func(t *testing.T) {
		cb := newCB(t)
		trip(t, cb)

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})
}

func TestCircuitBreakerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cb, err := NewCircuitBreaker(Config{
		Name:             "upstream",
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, zaptest.NewLogger(t), registry)
	require.NoError(t, err)

	assert.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	// Refused calls are not counted as failures.
	assert.Equal(t, float64(1), testutil.ToFloat64(cb.failuresCount))
	assert.Equal(t, float64(1), testutil.ToFloat64(cb.tripsTotal))
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(cb.stateGauge))

	count, err := testutil.GatherAndCount(registry,
		"chatrelay_circuit_breaker_state",
		"chatrelay_circuit_breaker_failures_total",
		"chatrelay_circuit_breaker_trips_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNewCircuitBreakerValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		errMsg string
	}{
		{
			name:   "missing name",
			config: Config{FailureThreshold: 1},
			errMsg: "circuit breaker name is required",
		},
		{
			name:   "zero threshold",
			config: Config{Name: "x"},
			errMsg: "failure threshold must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCircuitBreaker(tt.config, nil, nil)
			assert.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestReRegistrationSharesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := Config{Name: "dup", MaxRequests: 1, Timeout: time.Minute, FailureThreshold: 1}

	first, err := NewCircuitBreaker(cfg, nil, registry)
	require.NoError(t, err)
	assert.Error(t, first.Execute(func() error { return errors.New("boom") }))

	second, err := NewCircuitBreaker(cfg, nil, registry)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, second.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(second.failuresCount))
	assert.Equal(t, float64(gobreaker.StateClosed), testutil.ToFloat64(second.stateGauge))
}
