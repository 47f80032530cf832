// Package gateway provides an in-memory counter store.
package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// InMemoryCounterStore implements CounterStore in process memory. It
// serves single-instance deployments and tests; the health switch lets
// tests simulate store outages.
type InMemoryCounterStore struct {
	mu       sync.Mutex
	now      func() time.Time
	windows  map[string]*windowSet
	counters map[string]*ttlCounter
	healthy  atomic.Bool
}

type windowSet struct {
	entries   []windowEntry
	expiresAt time.Time
}

type windowEntry struct {
	at time.Time
	id string
}

type ttlCounter struct {
	value     int64
	expiresAt time.Time
}

var _ CounterStore = (*InMemoryCounterStore)(nil)

// NewInMemoryCounterStore constructs an in-memory store. A nil clock
// defaults to time.Now.
func NewInMemoryCounterStore(now func() time.Time) *InMemoryCounterStore {
	if now == nil {
		now = time.Now
	}
	store := &InMemoryCounterStore{
		now:      now,
		windows:  make(map[string]*windowSet),
		counters: make(map[string]*ttlCounter),
	}
	store.healthy.Store(true)
	return store
}

// Healthy reports the health flag.
func (s *InMemoryCounterStore) Healthy(ctx context.Context) bool {
	if s == nil {
		return false
	}
	return s.healthy.Load()
}

// SetHealthy updates the health flag. While unhealthy, every operation
// fails the way a disconnected Redis client would.
func (s *InMemoryCounterStore) SetHealthy(v bool) {
	if s == nil {
		return
	}
	s.healthy.Store(v)
}

// Close releases nothing; it exists to satisfy CounterStore.
func (s *InMemoryCounterStore) Close() error {
	return nil
}

// RecordAndCount inserts, prunes, counts, and refreshes expiry under one lock.
func (s *InMemoryCounterStore) RecordAndCount(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	if s == nil {
		return 0, errors.New("in-memory counter store is nil")
	}
	if !s.healthy.Load() {
		return 0, errors.New("counter store unhealthy")
	}
	if key == "" || window <= 0 {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.windows[key]
	if set == nil || !set.expiresAt.After(now) {
		set = &windowSet{}
		s.windows[key] = set
	}
	cutoff := now.Add(-window)
	kept := set.entries[:0]
	for _, entry := range set.entries {
		if entry.at.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	kept = append(kept, windowEntry{at: now, id: uuid.NewString()})
	set.entries = kept
	set.expiresAt = now.Add(window)
	return int64(len(set.entries)), nil
}

// Increment bumps a plain counter and refreshes its TTL.
func (s *InMemoryCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s == nil {
		return 0, errors.New("in-memory counter store is nil")
	}
	if !s.healthy.Load() {
		return 0, errors.New("counter store unhealthy")
	}
	if key == "" || ttl <= 0 {
		return 0, ErrInvalidInput
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.counters[key]
	if counter == nil || !counter.expiresAt.After(now) {
		counter = &ttlCounter{}
		s.counters[key] = counter
	}
	counter.value++
	counter.expiresAt = now.Add(ttl)
	return counter.value, nil
}
