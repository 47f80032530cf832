// Package gateway provides configuration for the application wiring.
package gateway

import "time"

// FailurePolicy names the behavior when the counter store is unavailable.
type FailurePolicy string

const (
	// FailOpen admits traffic when the store cannot be consulted.
	FailOpen FailurePolicy = "open"
	// FailClosed rejects traffic when the store cannot be consulted.
	FailClosed FailurePolicy = "closed"
)

// Algorithm names the limiter variant.
type Algorithm string

const (
	AlgorithmSliding Algorithm = "sliding"
	AlgorithmFixed   Algorithm = "fixed"
)

// Config captures dependency and runtime settings.
type Config struct {
	ListenAddr  string
	UpstreamURL string

	StoreType     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateAlgorithm Algorithm
	RateWindow    time.Duration
	RateLimit     int64
	FailurePolicy FailurePolicy

	BreakerOptions CircuitOptions
	CallerOptions  CallerOptions

	HealthInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	DrainTimeout     time.Duration

	Store    CounterStore
	Upstream Upstream
	Logger   Logger
	Metrics  *InMemoryMetrics
}
