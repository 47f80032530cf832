package gateway

import (
	"context"
	"testing"
	"time"
)

func TestStoreHealth_TracksTransitions(t *testing.T) {
	t.Parallel()

	store := NewInMemoryCounterStore(nil)
	metrics := NewInMemoryMetrics()
	health := NewStoreHealth(store, nil, metrics)

	health.Update(context.Background())
	if health.Degraded() {
		t.Fatalf("expected healthy store to report normal mode")
	}

	store.SetHealthy(false)
	health.Update(context.Background())
	if !health.Degraded() {
		t.Fatalf("expected degraded mode after probe failure")
	}
	// Repeated failing probes are not new transitions.
	health.Update(context.Background())
	if got := metrics.Counter("store_error|probe"); got != 1 {
		t.Fatalf("expected a single probe transition, got %d", got)
	}

	store.SetHealthy(true)
	health.Update(context.Background())
	if health.Degraded() {
		t.Fatalf("expected recovery to clear degraded mode")
	}
}

func TestHealthLoop_StopsOnCancel(t *testing.T) {
	t.Parallel()

	store := NewInMemoryCounterStore(nil)
	store.SetHealthy(false)
	health := NewStoreHealth(store, nil, NewInMemoryMetrics())
	loop := NewHealthLoop(health, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Start(ctx) }()

	deadline := time.After(time.Second)
	for !health.Degraded() {
		select {
		case <-deadline:
			t.Fatalf("expected the loop to observe the outage")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected the loop to stop on cancel")
	}
}
