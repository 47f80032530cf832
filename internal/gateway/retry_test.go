package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCaller_RetriesTransientOnce(t *testing.T) {
	t.Parallel()

	caller := NewCaller(CallerOptions{
		Timeout:     time.Second,
		MaxAttempts: 2,
		Backoff:     BackoffPolicy{Base: 20 * time.Millisecond, Cap: time.Second},
	}, nil)

	var calls int
	var callTimes []time.Time
	result, err := caller.Invoke(context.Background(), func(ctx context.Context) (*UpstreamResult, error) {
		calls++
		callTimes = append(callTimes, time.Now())
		if calls == 1 {
			return nil, ErrUpstreamTransient
		}
		return &UpstreamResult{Status: 200}, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result == nil || result.Status != 200 {
		t.Fatalf("expected upstream result, got %+v", result)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 invocations, got %d", calls)
	}
	if gap := callTimes[1].Sub(callTimes[0]); gap < 20*time.Millisecond {
		t.Fatalf("expected at least base backoff between attempts, got %s", gap)
	}
}

func TestCaller_ExhaustsAttemptsOnTimeout(t *testing.T) {
	t.Parallel()

	caller := NewCaller(CallerOptions{
		Timeout:     10 * time.Millisecond,
		MaxAttempts: 3,
		Backoff:     BackoffPolicy{Base: time.Millisecond, Cap: 5 * time.Millisecond},
	}, nil)

	var calls int
	_, err := caller.Invoke(context.Background(), func(ctx context.Context) (*UpstreamResult, error) {
		calls++
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err == nil {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if CodeOf(err) != CodeUpstreamTimeout {
		t.Fatalf("expected upstream timeout code, got %q (%v)", CodeOf(err), err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", calls)
	}
}

func TestCaller_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	caller := NewCaller(CallerOptions{MaxAttempts: 3}, nil)

	var calls int
	_, err := caller.Invoke(context.Background(), func(ctx context.Context) (*UpstreamResult, error) {
		calls++
		return nil, ErrUpstreamPermanent
	})
	if !errors.Is(err, ErrUpstreamPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single invocation, got %d", calls)
	}
}

func TestCaller_DoesNotRetryCircuitOpen(t *testing.T) {
	t.Parallel()

	caller := NewCaller(CallerOptions{MaxAttempts: 3}, nil)

	var calls int
	_, err := caller.Invoke(context.Background(), func(ctx context.Context) (*UpstreamResult, error) {
		calls++
		return nil, ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single invocation, got %d", calls)
	}
}

func TestCaller_CancellationAbortsBackoff(t *testing.T) {
	t.Parallel()

	caller := NewCaller(CallerOptions{
		Timeout:     time.Second,
		MaxAttempts: 2,
		Backoff:     BackoffPolicy{Base: time.Minute, Cap: time.Minute},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	done := make(chan error, 1)
	go func() {
		_, err := caller.Invoke(ctx, func(ctx context.Context) (*UpstreamResult, error) {
			calls++
			return nil, ErrUpstreamTransient
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected cancellation to abort the pending retry")
	}
	if calls != 1 {
		t.Fatalf("expected a single invocation before cancellation, got %d", calls)
	}
}

func TestBackoffPolicy_GrowsAndCaps(t *testing.T) {
	t.Parallel()

	policy := BackoffPolicy{Base: 100 * time.Millisecond, Cap: 300 * time.Millisecond}
	if got := policy.Duration(1); got != 100*time.Millisecond {
		t.Fatalf("expected base delay for first retry, got %s", got)
	}
	if got := policy.Duration(2); got != 200*time.Millisecond {
		t.Fatalf("expected doubled delay, got %s", got)
	}
	if got := policy.Duration(5); got != 300*time.Millisecond {
		t.Fatalf("expected capped delay, got %s", got)
	}
}

func TestBackoffPolicy_JitterWithinBound(t *testing.T) {
	t.Parallel()

	policy := BackoffPolicy{Base: 10 * time.Millisecond, Cap: time.Second, Jitter: 5 * time.Millisecond}
	for i := 0; i < 100; i++ {
		got := policy.Duration(1)
		if got < 10*time.Millisecond || got >= 15*time.Millisecond {
			t.Fatalf("expected delay in [10ms, 15ms), got %s", got)
		}
	}
}
