// Package gateway provides periodic store health tracking.
package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// StoreHealth tracks counter store availability for the degradation
// signal. It does not gate requests; the pipeline's per-request policy
// does that.
type StoreHealth struct {
	store    CounterStore
	degraded atomic.Bool
	logger   Logger
	metrics  *InMemoryMetrics
}

// NewStoreHealth constructs a health tracker.
func NewStoreHealth(store CounterStore, logger Logger, metrics *InMemoryMetrics) *StoreHealth {
	return &StoreHealth{store: store, logger: logger, metrics: metrics}
}

// Degraded reports whether the last probe failed.
func (h *StoreHealth) Degraded() bool {
	if h == nil {
		return false
	}
	return h.degraded.Load()
}

// Update probes the store once and logs mode transitions.
func (h *StoreHealth) Update(ctx context.Context) {
	if h == nil || h.store == nil {
		return
	}
	healthy := h.store.Healthy(ctx)
	was := h.degraded.Swap(!healthy)
	if was == !healthy {
		return
	}
	mode := "normal"
	if !healthy {
		mode = "degraded"
		h.metrics.IncStoreError("probe")
	}
	if h.logger != nil {
		h.logger.Info("store mode changed", map[string]any{"mode": mode})
	}
}

// HealthLoop periodically updates a StoreHealth tracker.
type HealthLoop struct {
	health   *StoreHealth
	interval time.Duration
}

// NewHealthLoop constructs a health loop.
func NewHealthLoop(health *StoreHealth, interval time.Duration) *HealthLoop {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HealthLoop{health: health, interval: interval}
}

// Start runs probes until the context is canceled.
func (l *HealthLoop) Start(ctx context.Context) error {
	if l == nil || l.health == nil {
		return errors.New("health loop is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.health.Update(ctx)
		}
	}
}
