// Package gateway provides the window limiters.
package gateway

import (
	"context"
	"strconv"
	"time"
)

// LimiterPolicy captures the admission parameters for one key space.
type LimiterPolicy struct {
	Window time.Duration
	Limit  int64
}

// Decision captures an evaluated admission outcome. It is derived from
// the store count and never persisted.
type Decision struct {
	Allowed    bool
	Current    int64
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiter evaluates admission for a key at an instant. A store
// failure is returned as an error carrying CodeStoreUnavailable; the
// limiter never fabricates a decision from an unreachable store.
type RateLimiter interface {
	Evaluate(ctx context.Context, key string, now time.Time) (*Decision, error)
	Algorithm() Algorithm
}

func normalizeLimiterPolicy(policy LimiterPolicy) LimiterPolicy {
	if policy.Window <= 0 {
		policy.Window = 60 * time.Second
	}
	if policy.Limit <= 0 {
		policy.Limit = 5
	}
	return policy
}

func decisionFromCount(count, limit int64, retryAfter time.Duration) *Decision {
	allowed := count <= limit
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	decision := &Decision{
		Allowed:   allowed,
		Current:   count,
		Limit:     limit,
		Remaining: remaining,
	}
	if !allowed {
		decision.RetryAfter = retryAfter
	}
	return decision
}

// SlidingWindowLimiter counts entries in the trailing window ending at
// now. It never admits more than Limit requests in any trailing
// interval of Window length.
type SlidingWindowLimiter struct {
	store  CounterStore
	policy LimiterPolicy
}

var _ RateLimiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter constructs a sliding window limiter.
func NewSlidingWindowLimiter(store CounterStore, policy LimiterPolicy) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{store: store, policy: normalizeLimiterPolicy(policy)}
}

// Algorithm reports the limiter variant.
func (l *SlidingWindowLimiter) Algorithm() Algorithm {
	return AlgorithmSliding
}

// Evaluate records the request and decides admission from the count
// returned by the same atomic store operation.
func (l *SlidingWindowLimiter) Evaluate(ctx context.Context, key string, now time.Time) (*Decision, error) {
	if l == nil || l.store == nil {
		return nil, Wrap(CodeStoreUnavailable, "counter store unavailable", nil)
	}
	if key == "" {
		return nil, ErrInvalidInput
	}
	count, err := l.store.RecordAndCount(ctx, key, now, l.policy.Window)
	if err != nil {
		if CodeOf(err) == CodeInvalidInput {
			return nil, err
		}
		return nil, Wrap(CodeStoreUnavailable, "counter store unavailable", err)
	}
	return decisionFromCount(count, l.policy.Limit, l.policy.Window), nil
}

// FixedWindowLimiter counts requests in wall-clock aligned buckets. It
// is cheaper than the sliding variant but admits up to 2*limit-1
// requests across a misaligned boundary.
type FixedWindowLimiter struct {
	store  CounterStore
	policy LimiterPolicy
}

var _ RateLimiter = (*FixedWindowLimiter)(nil)

// NewFixedWindowLimiter constructs a fixed window limiter.
func NewFixedWindowLimiter(store CounterStore, policy LimiterPolicy) *FixedWindowLimiter {
	return &FixedWindowLimiter{store: store, policy: normalizeLimiterPolicy(policy)}
}

// Algorithm reports the limiter variant.
func (l *FixedWindowLimiter) Algorithm() Algorithm {
	return AlgorithmFixed
}

// Evaluate increments the bucket for the current aligned window.
func (l *FixedWindowLimiter) Evaluate(ctx context.Context, key string, now time.Time) (*Decision, error) {
	if l == nil || l.store == nil {
		return nil, Wrap(CodeStoreUnavailable, "counter store unavailable", nil)
	}
	if key == "" {
		return nil, ErrInvalidInput
	}
	windowStart := now.Truncate(l.policy.Window)
	bucketKey := key + "@" + strconv.FormatInt(windowStart.UnixMilli(), 10)
	count, err := l.store.Increment(ctx, bucketKey, l.policy.Window)
	if err != nil {
		if CodeOf(err) == CodeInvalidInput {
			return nil, err
		}
		return nil, Wrap(CodeStoreUnavailable, "counter store unavailable", err)
	}
	retryAfter := windowStart.Add(l.policy.Window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return decisionFromCount(count, l.policy.Limit, retryAfter), nil
}
