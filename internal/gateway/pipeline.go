// Package gateway composes the per-request resilience pipeline.
package gateway

import (
	"context"
	"errors"
	"time"
)

// Admission is the pipeline's answer to "may this request proceed".
// Degraded marks admissions granted by the fail-open policy while the
// counter store was unreachable; Decision is nil in that case.
type Admission struct {
	Decision *Decision
	Degraded bool
}

// Pipeline composes limiter, breaker, and resilient caller per inbound
// request. It is the single place where fail-open versus fail-closed
// is decided.
type Pipeline struct {
	limiter  RateLimiter
	caller   *Caller
	breaker  *CircuitBreaker
	upstream Upstream
	policy   FailurePolicy
	now      func() time.Time
	logger   Logger
	metrics  *InMemoryMetrics
}

// NewPipeline constructs a pipeline. Limiter, caller, breaker, and
// upstream are required collaborators.
func NewPipeline(limiter RateLimiter, caller *Caller, breaker *CircuitBreaker, upstream Upstream, policy FailurePolicy, logger Logger, metrics *InMemoryMetrics) (*Pipeline, error) {
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}
	if caller == nil {
		return nil, errors.New("caller is required")
	}
	if breaker == nil {
		return nil, errors.New("circuit breaker is required")
	}
	if upstream == nil {
		return nil, errors.New("upstream is required")
	}
	if policy != FailOpen && policy != FailClosed {
		policy = FailOpen
	}
	return &Pipeline{
		limiter:  limiter,
		caller:   caller,
		breaker:  breaker,
		upstream: upstream,
		policy:   policy,
		now:      time.Now,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// SetClock overrides the pipeline clock for tests.
func (p *Pipeline) SetClock(now func() time.Time) {
	if p == nil || now == nil {
		return
	}
	p.now = now
}

// Breaker exposes the breaker instance for observability.
func (p *Pipeline) Breaker() *CircuitBreaker {
	if p == nil {
		return nil
	}
	return p.breaker
}

// Algorithm reports the limiter variant in use.
func (p *Pipeline) Algorithm() Algorithm {
	if p == nil || p.limiter == nil {
		return AlgorithmSliding
	}
	return p.limiter.Algorithm()
}

// Admit evaluates the limiter for key. A store failure is resolved
// here by the configured policy: fail-open grants a degraded
// admission, fail-closed returns the store error.
func (p *Pipeline) Admit(ctx context.Context, key string) (*Admission, error) {
	if p == nil || p.limiter == nil {
		return nil, errors.New("pipeline is not initialized")
	}
	start := time.Now()
	defer p.metrics.ObserveLatency("admit", time.Since(start))

	decision, err := p.limiter.Evaluate(ctx, key, p.now())
	if err != nil {
		if CodeOf(err) != CodeStoreUnavailable {
			return nil, err
		}
		p.metrics.IncStoreError("evaluate")
		if p.policy == FailClosed {
			return nil, err
		}
		p.metrics.IncFailOpen()
		if p.logger != nil {
			p.logger.Error("counter store unavailable, admitting fail-open", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
		return &Admission{Degraded: true}, nil
	}

	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	p.metrics.IncDecision(outcome, string(p.limiter.Algorithm()))
	return &Admission{Decision: decision}, nil
}

// Forward invokes the downstream dependency through the resilient
// caller, with every attempt gated by the circuit breaker. A breaker
// rejection is not retried.
func (p *Pipeline) Forward(ctx context.Context, path string, rawQuery string) (*UpstreamResult, error) {
	if p == nil || p.caller == nil || p.breaker == nil || p.upstream == nil {
		return nil, errors.New("pipeline is not initialized")
	}
	start := time.Now()
	defer p.metrics.ObserveLatency("forward", time.Since(start))

	op := func(ctx context.Context) (*UpstreamResult, error) {
		var result *UpstreamResult
		err := p.breaker.Call(ctx, func(ctx context.Context) error {
			r, err := p.upstream.Call(ctx, path, rawQuery)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return p.caller.Invoke(ctx, op)
}
