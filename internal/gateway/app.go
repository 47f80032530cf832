// Package gateway wires application dependencies.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
)

// Application holds core components for the gateway.
type Application struct {
	Config      *Config
	Store       CounterStore
	Limiter     RateLimiter
	Breaker     *CircuitBreaker
	Caller      *Caller
	Pipeline    *Pipeline
	StoreHealth *StoreHealth

	healthLoop *HealthLoop
	transport  *HTTPTransport
	metrics    *InMemoryMetrics
	logger     Logger
	ownsStore  bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewApplication validates configuration and wires the pipeline.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewStdLogger(os.Stderr)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewInMemoryMetrics()
	}

	store := cfg.Store
	ownsStore := false
	if store == nil {
		switch cfg.StoreType {
		case "memory":
			store = NewInMemoryCounterStore(nil)
		case "redis", "":
			redisStore, err := NewRedisCounterStore(RedisStoreOptions{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			if err != nil {
				return nil, err
			}
			store = redisStore
			ownsStore = true
		default:
			return nil, fmt.Errorf("unknown store type: %s", cfg.StoreType)
		}
	}

	policy := LimiterPolicy{Window: cfg.RateWindow, Limit: cfg.RateLimit}
	var limiter RateLimiter
	switch cfg.RateAlgorithm {
	case AlgorithmFixed:
		limiter = NewFixedWindowLimiter(store, policy)
	case AlgorithmSliding, "":
		limiter = NewSlidingWindowLimiter(store, policy)
	default:
		return nil, fmt.Errorf("unknown rate algorithm: %s", cfg.RateAlgorithm)
	}

	upstream := cfg.Upstream
	if upstream == nil {
		httpUpstream, err := NewHTTPUpstream(cfg.UpstreamURL, &http.Client{})
		if err != nil {
			return nil, err
		}
		upstream = httpUpstream
	}

	breaker := NewCircuitBreaker(cfg.BreakerOptions)
	breaker.SetLogger(logger)
	breaker.SetMetrics(metrics)
	caller := NewCaller(cfg.CallerOptions, metrics)

	pipeline, err := NewPipeline(limiter, caller, breaker, upstream, cfg.FailurePolicy, logger, metrics)
	if err != nil {
		return nil, err
	}

	health := NewStoreHealth(store, logger, metrics)
	transport := NewHTTPTransport(cfg.ListenAddr, pipeline, logger, metrics, HTTPTransportOptions{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	})

	return &Application{
		Config:      cfg,
		Store:       store,
		Limiter:     limiter,
		Breaker:     breaker,
		Caller:      caller,
		Pipeline:    pipeline,
		StoreHealth: health,
		healthLoop:  NewHealthLoop(health, cfg.HealthInterval),
		transport:   transport,
		metrics:     metrics,
		logger:      logger,
		ownsStore:   ownsStore,
	}, nil
}

// Handler returns the HTTP handler for testing.
func (app *Application) Handler() (http.Handler, error) {
	if app == nil || app.transport == nil {
		return nil, errors.New("application is not initialized")
	}
	return app.transport.Handler()
}

// Start begins serving and launches background loops.
func (app *Application) Start(ctx context.Context) error {
	if app == nil || app.transport == nil {
		return errors.New("application is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	app.cancel = cancel

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		_ = app.healthLoop.Start(loopCtx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.transport.Start(); err != nil {
			app.logger.Error("http transport stopped", map[string]any{"error": err.Error()})
		}
	}()

	app.logger.Info("gateway started", map[string]any{
		"listen_addr": app.Config.ListenAddr,
		"upstream":    app.Config.UpstreamURL,
		"algorithm":   string(app.Limiter.Algorithm()),
		"policy":      string(app.Config.FailurePolicy),
	})
	return nil
}

// Shutdown drains the server and stops background loops.
func (app *Application) Shutdown(ctx context.Context) error {
	if app == nil {
		return errors.New("application is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var firstErr error
	if app.transport != nil {
		if err := app.transport.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if app.cancel != nil {
		app.cancel()
	}
	app.wg.Wait()
	if app.ownsStore && app.Store != nil {
		if err := app.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
