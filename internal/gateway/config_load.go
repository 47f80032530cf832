// Package gateway provides configuration loading.
package gateway

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadOptions controls config loading.
type LoadOptions struct {
	EnvFile string
	Args    []string
	Getenv  func(string) string
}

// LoadConfig loads configuration from defaults, an optional .env file,
// the environment, and flags, in that order of precedence.
func LoadConfig(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	args := opts.Args
	if args == nil {
		args = os.Args[1:]
	}

	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg, getenv); err != nil {
		return nil, err
	}
	overrides, err := parseFlagOverrides(args)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, overrides)
	return cfg, validateConfig(cfg)
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:    ":8080",
		UpstreamURL:   "http://localhost:9090",
		StoreType:     "redis",
		RedisAddr:     "localhost:6379",
		RateAlgorithm: AlgorithmSliding,
		RateWindow:    60 * time.Second,
		RateLimit:     5,
		FailurePolicy: FailOpen,
		BreakerOptions: CircuitOptions{
			FailureThreshold: 3,
			OpenTimeout:      10 * time.Second,
		},
		CallerOptions: CallerOptions{
			Timeout:     2 * time.Second,
			MaxAttempts: 2,
			Backoff: BackoffPolicy{
				Base:   100 * time.Millisecond,
				Cap:    2 * time.Second,
				Jitter: 50 * time.Millisecond,
			},
		},
		HealthInterval:   5 * time.Second,
		HTTPReadTimeout:  5 * time.Second,
		HTTPWriteTimeout: 30 * time.Second,
		HTTPIdleTimeout:  60 * time.Second,
		DrainTimeout:     5 * time.Second,
	}
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	cfg.ListenAddr = envString(getenv, "LISTEN_ADDR", cfg.ListenAddr)
	cfg.UpstreamURL = envString(getenv, "UPSTREAM_URL", cfg.UpstreamURL)
	cfg.StoreType = envString(getenv, "STORE_TYPE", cfg.StoreType)
	cfg.RedisAddr = envString(getenv, "REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString(getenv, "REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RateAlgorithm = Algorithm(envString(getenv, "RATE_ALGORITHM", string(cfg.RateAlgorithm)))
	cfg.FailurePolicy = FailurePolicy(envString(getenv, "FAILURE_POLICY", string(cfg.FailurePolicy)))

	var err error
	if cfg.RedisDB, err = envInt(getenv, "REDIS_DB", cfg.RedisDB); err != nil {
		return err
	}
	limit, err := envInt(getenv, "RATE_LIMIT", int(cfg.RateLimit))
	if err != nil {
		return err
	}
	cfg.RateLimit = int64(limit)
	threshold, err := envInt(getenv, "BREAKER_FAILURE_THRESHOLD", int(cfg.BreakerOptions.FailureThreshold))
	if err != nil {
		return err
	}
	cfg.BreakerOptions.FailureThreshold = int64(threshold)
	if cfg.CallerOptions.MaxAttempts, err = envInt(getenv, "MAX_ATTEMPTS", cfg.CallerOptions.MaxAttempts); err != nil {
		return err
	}
	if cfg.RateWindow, err = envDuration(getenv, "RATE_WINDOW", cfg.RateWindow); err != nil {
		return err
	}
	if cfg.BreakerOptions.OpenTimeout, err = envDuration(getenv, "BREAKER_OPEN_TIMEOUT", cfg.BreakerOptions.OpenTimeout); err != nil {
		return err
	}
	if cfg.CallerOptions.Timeout, err = envDuration(getenv, "ATTEMPT_TIMEOUT", cfg.CallerOptions.Timeout); err != nil {
		return err
	}
	if cfg.CallerOptions.Backoff.Base, err = envDuration(getenv, "BACKOFF_BASE", cfg.CallerOptions.Backoff.Base); err != nil {
		return err
	}
	if cfg.CallerOptions.Backoff.Cap, err = envDuration(getenv, "BACKOFF_CAP", cfg.CallerOptions.Backoff.Cap); err != nil {
		return err
	}
	if cfg.CallerOptions.Backoff.Jitter, err = envDuration(getenv, "BACKOFF_JITTER", cfg.CallerOptions.Backoff.Jitter); err != nil {
		return err
	}
	if cfg.HealthInterval, err = envDuration(getenv, "HEALTH_INTERVAL", cfg.HealthInterval); err != nil {
		return err
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.RateLimit <= 0 {
		return errors.New("RATE_LIMIT must be > 0")
	}
	if cfg.RateWindow <= 0 {
		return errors.New("RATE_WINDOW must be > 0")
	}
	switch cfg.RateAlgorithm {
	case AlgorithmSliding, AlgorithmFixed:
	default:
		return fmt.Errorf("unknown RATE_ALGORITHM: %s", cfg.RateAlgorithm)
	}
	switch cfg.FailurePolicy {
	case FailOpen, FailClosed:
	default:
		return fmt.Errorf("unknown FAILURE_POLICY: %s", cfg.FailurePolicy)
	}
	switch cfg.StoreType {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown STORE_TYPE: %s", cfg.StoreType)
	}
	if cfg.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	return nil
}

type flagOverrides struct {
	ListenAddr              *string
	UpstreamURL             *string
	StoreType               *string
	RateLimit               *int
	RateWindowMS            *int
	FailurePolicy           *string
	BreakerFailureThreshold *int
	BreakerOpenMS           *int
}

func parseFlagOverrides(args []string) (flagOverrides, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	listenAddr := fs.String("listen_addr", "", "listen address")
	upstreamURL := fs.String("upstream_url", "", "upstream base url")
	storeType := fs.String("store_type", "", "counter store type")
	rateLimit := fs.Int("rate_limit", 0, "requests per window")
	rateWindow := fs.Int("rate_window_ms", 0, "window size ms")
	failurePolicy := fs.String("failure_policy", "", "open or closed")
	breakerFailure := fs.Int("breaker_failure_threshold", 0, "breaker failure threshold")
	breakerOpen := fs.Int("breaker_open_ms", 0, "breaker open ms")

	if err := fs.Parse(args); err != nil {
		return flagOverrides{}, errors.New("invalid flag values")
	}

	overrides := flagOverrides{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen_addr":
			overrides.ListenAddr = listenAddr
		case "upstream_url":
			overrides.UpstreamURL = upstreamURL
		case "store_type":
			overrides.StoreType = storeType
		case "rate_limit":
			overrides.RateLimit = rateLimit
		case "rate_window_ms":
			overrides.RateWindowMS = rateWindow
		case "failure_policy":
			overrides.FailurePolicy = failurePolicy
		case "breaker_failure_threshold":
			overrides.BreakerFailureThreshold = breakerFailure
		case "breaker_open_ms":
			overrides.BreakerOpenMS = breakerOpen
		}
	})
	return overrides, nil
}

func applyFlagOverrides(cfg *Config, overrides flagOverrides) {
	if cfg == nil {
		return
	}
	if overrides.ListenAddr != nil {
		cfg.ListenAddr = *overrides.ListenAddr
	}
	if overrides.UpstreamURL != nil {
		cfg.UpstreamURL = *overrides.UpstreamURL
	}
	if overrides.StoreType != nil {
		cfg.StoreType = *overrides.StoreType
	}
	if overrides.RateLimit != nil {
		cfg.RateLimit = int64(*overrides.RateLimit)
	}
	if overrides.RateWindowMS != nil {
		cfg.RateWindow = time.Duration(*overrides.RateWindowMS) * time.Millisecond
	}
	if overrides.FailurePolicy != nil {
		cfg.FailurePolicy = FailurePolicy(*overrides.FailurePolicy)
	}
	if overrides.BreakerFailureThreshold != nil {
		cfg.BreakerOptions.FailureThreshold = int64(*overrides.BreakerFailureThreshold)
	}
	if overrides.BreakerOpenMS != nil {
		cfg.BreakerOptions.OpenTimeout = time.Duration(*overrides.BreakerOpenMS) * time.Millisecond
	}
}

func envString(getenv func(string) string, key, fallback string) string {
	value := strings.TrimSpace(getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(getenv func(string) string, key string, fallback int) (int, error) {
	value := strings.TrimSpace(getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func envDuration(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
