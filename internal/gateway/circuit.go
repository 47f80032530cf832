// Package gateway provides a per-dependency circuit breaker.
package gateway

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents breaker state.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitOptions configures breaker thresholds.
type CircuitOptions struct {
	FailureThreshold int64
	OpenTimeout      time.Duration
}

// CircuitBreaker gates calls to a single downstream dependency. State
// is owned by this instance and guarded by one mutex; it is never
// shared across processes. Any call arriving while half-open passes
// through as a probe; the first reported outcome drives the transition.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    CircuitState
	failures int64
	openedAt time.Time
	now      func() time.Time
	opts     CircuitOptions
	logger   Logger
	metrics  *InMemoryMetrics
}

// NewCircuitBreaker constructs a breaker with defaults.
func NewCircuitBreaker(opts CircuitOptions) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 10 * time.Second
	}
	return &CircuitBreaker{state: CircuitClosed, now: time.Now, opts: opts}
}

// SetLogger configures a logger for state transitions.
func (cb *CircuitBreaker) SetLogger(l Logger) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.logger = l
}

// SetMetrics configures a transition counter recorder.
func (cb *CircuitBreaker) SetMetrics(m *InMemoryMetrics) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.metrics = m
}

// SetClock overrides the breaker clock for tests.
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	if cb == nil || now == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Call invokes op unless the circuit is open. When open past the
// cooldown, the current call transitions the breaker to half-open and
// proceeds as the probe.
func (cb *CircuitBreaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	if cb == nil {
		return op(ctx)
	}
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := op(ctx)
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) >= cb.opts.OpenTimeout {
			cb.transitionLocked(CircuitHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitHalfOpen:
		cb.failures = 0
		cb.transitionLocked(CircuitClosed)
	case CircuitClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitHalfOpen:
		cb.openedAt = cb.now()
		cb.transitionLocked(CircuitOpen)
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.opts.FailureThreshold {
			cb.openedAt = cb.now()
			cb.transitionLocked(CircuitOpen)
		}
	}
}

func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.metrics != nil {
		cb.metrics.IncBreakerTransition(from.String(), to.String())
	}
	if cb.logger != nil {
		cb.logger.Info("breaker transition", map[string]any{
			"from":     from.String(),
			"to":       to.String(),
			"failures": cb.failures,
		})
	}
}
