// Package gateway defines the shared counter store contract.
package gateway

import (
	"context"
	"time"
)

// CounterStore provides atomic window bookkeeping shared by all
// gateway instances. Implementations must make RecordAndCount a single
// atomic unit per key: concurrent callers each observe a consistent,
// correctly-incremented count.
type CounterStore interface {
	// RecordAndCount inserts an entry at now, prunes entries older than
	// now-window, refreshes the key expiry to window, and returns the
	// resulting cardinality including the inserted entry.
	RecordAndCount(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)
	// Increment adds one to a plain counter with the given TTL and
	// returns the new value. Used by the fixed-window variant.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Healthy reports whether the store is reachable.
	Healthy(ctx context.Context) bool
	// Close releases the underlying connection.
	Close() error
}
