// Package gateway provides the resilient caller.
package gateway

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// BackoffPolicy computes retry delays: min(base*2^(attempt-1), cap)
// plus random jitter in [0, jitter).
type BackoffPolicy struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter time.Duration
}

// Duration returns the delay before the retry following attempt.
func (p BackoffPolicy) Duration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.Cap > 0 && delay >= p.Cap {
			delay = p.Cap
			break
		}
	}
	if p.Cap > 0 && delay > p.Cap {
		delay = p.Cap
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return delay
}

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(err error) bool

// DefaultClassifier retries deadline and transient upstream failures.
// Circuit-open and permanent upstream errors are never retried.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeUpstreamTimeout, CodeUpstreamTransient:
		return true
	case CodeCircuitOpen, CodeUpstreamPermanent, CodeInvalidInput:
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// CallerOptions configures the resilient caller.
type CallerOptions struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     BackoffPolicy
	Classify    Classifier
}

// Operation is a downstream call executed under a per-attempt deadline.
type Operation func(ctx context.Context) (*UpstreamResult, error)

// Caller executes an operation with a hard per-attempt deadline and a
// bounded retry budget. A per-attempt timeout cancels only that
// attempt; cancellation of the parent context abandons the whole
// invocation, including pending backoff sleeps.
type Caller struct {
	opts    CallerOptions
	metrics *InMemoryMetrics
}

// NewCaller constructs a caller with defaults.
func NewCaller(opts CallerOptions, metrics *InMemoryMetrics) *Caller {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.Backoff.Base <= 0 {
		opts.Backoff.Base = 100 * time.Millisecond
	}
	if opts.Backoff.Cap <= 0 {
		opts.Backoff.Cap = 2 * time.Second
	}
	if opts.Classify == nil {
		opts.Classify = DefaultClassifier
	}
	return &Caller{opts: opts, metrics: metrics}
}

// Invoke runs op, retrying transient failures up to the attempt budget.
// It returns the first success or the last failure.
func (c *Caller) Invoke(ctx context.Context, op Operation) (*UpstreamResult, error) {
	if c == nil {
		return nil, errors.New("caller is not initialized")
	}
	if op == nil {
		return nil, ErrInvalidInput
	}
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		result, err := op(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && CodeOf(err) == "" {
			err = Wrap(CodeUpstreamTimeout, "upstream timeout", err)
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !c.opts.Classify(err) {
			return nil, err
		}
		if attempt == c.opts.MaxAttempts {
			break
		}
		c.metrics.IncRetry()
		if err := sleepContext(ctx, c.opts.Backoff.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
