// Package circuitbreaker wraps sony/gobreaker with Prometheus instrumentation
// so repeated upstream failures fail fast instead of piling up.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Cyclic period for clearing counts while closed
	Timeout          time.Duration // Time spent open before going half-open
	FailureThreshold uint32        // Consecutive failures that trip the breaker
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker implements the circuit breaker pattern around gobreaker
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	stateGauge    prometheus.Gauge
	failuresCount prometheus.Counter
	tripsTotal    prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker. Metrics are registered on
// registry unless it is nil or TestMode is set.
func NewCircuitBreaker(config Config, logger *zap.Logger, registry prometheus.Registerer) (*CircuitBreaker, error) {
	if config.Name == "" {
		return nil, errors.New("circuit breaker name is required")
	}
	if config.FailureThreshold == 0 {
		return nil, errors.New("failure threshold must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := &CircuitBreaker{
		name:   config.Name,
		logger: logger,
	}

	labels := prometheus.Labels{"name": config.Name}
	cb.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "chatrelay_circuit_breaker_state",
		Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	})
	cb.failuresCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "chatrelay_circuit_breaker_failures_total",
		Help:        "Total number of failures recorded by the circuit breaker",
		ConstLabels: labels,
	})
	cb.tripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "chatrelay_circuit_breaker_trips_total",
		Help:        "Total number of times the circuit breaker has tripped",
		ConstLabels: labels,
	})

	// A breaker rebuilt on config reload keeps reporting through the
	// collectors registered by its predecessor.
	if !config.TestMode && registry != nil {
		var err error
		if cb.stateGauge, err = register(registry, cb.stateGauge); err != nil {
			return nil, err
		}
		if cb.failuresCount, err = register(registry, cb.failuresCount); err != nil {
			return nil, err
		}
		if cb.tripsTotal, err = register(registry, cb.tripsTotal); err != nil {
			return nil, err
		}
		cb.stateGauge.Set(float64(gobreaker.StateClosed))
	}

	threshold := config.FailureThreshold
	cb.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cb.onStateChange,
	})

	return cb, nil
}

func register[T prometheus.Collector](registry prometheus.Registerer, c T) (T, error) {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		cb.tripsTotal.Inc()
		cb.logger.Warn("Circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f if the breaker allows it. While open it returns
// gobreaker.ErrOpenState without calling f.
func (cb *CircuitBreaker) Execute(f func() error) error {
	_, err := cb.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if err != nil && !IsOpen(err) {
		cb.failuresCount.Inc()
	}
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// Counts returns the request counts for the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.cb.Counts()
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
