// Package gateway provides the HTTP transport.
package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// HTTPTransportOptions configures server timeouts.
type HTTPTransportOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// HTTPTransport serves the gateway surface over HTTP.
type HTTPTransport struct {
	addr     string
	srv      *http.Server
	pipeline *Pipeline
	logger   Logger
	metrics  *InMemoryMetrics
	opts     HTTPTransportOptions
	mux      http.Handler
	mu       sync.Mutex
}

// NewHTTPTransport constructs a transport bound to an address.
func NewHTTPTransport(addr string, pipeline *Pipeline, logger Logger, metrics *InMemoryMetrics, opts HTTPTransportOptions) *HTTPTransport {
	if addr == "" {
		addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	return &HTTPTransport{
		addr:     addr,
		pipeline: pipeline,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Start begins serving HTTP requests.
func (t *HTTPTransport) Start() error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	handler, err := t.handler()
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.srv == nil {
		t.srv = &http.Server{
			Addr:         t.addr,
			Handler:      handler,
			ReadTimeout:  t.opts.ReadTimeout,
			WriteTimeout: t.opts.WriteTimeout,
			IdleTimeout:  t.opts.IdleTimeout,
		}
	}
	srv := t.srv
	t.mu.Unlock()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	srv := t.srv
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (t *HTTPTransport) Handler() (http.Handler, error) {
	return t.handler()
}

func (t *HTTPTransport) handler() (http.Handler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mux != nil {
		return t.mux, nil
	}
	if t.pipeline == nil {
		return nil, errors.New("pipeline must be configured before starting")
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/health", t.handleHealth)
	r.Get("/metrics", t.handleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(t.rateLimitMiddleware)
		r.Get("/call-slow", t.handleForward)
		r.Get("/*", t.handleForward)
	})

	t.mux = r
	return r, nil
}
