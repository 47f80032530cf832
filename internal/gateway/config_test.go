package gateway

import (
	"testing"
	"time"
)

func mapGetenv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(LoadOptions{Args: []string{}, Getenv: mapGetenv(nil)})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.RateAlgorithm != AlgorithmSliding {
		t.Fatalf("expected sliding algorithm, got %q", cfg.RateAlgorithm)
	}
	if cfg.RateWindow != 60*time.Second || cfg.RateLimit != 5 {
		t.Fatalf("expected 5 per 60s, got %d per %s", cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.FailurePolicy != FailOpen {
		t.Fatalf("expected fail-open default, got %q", cfg.FailurePolicy)
	}
	if cfg.BreakerOptions.FailureThreshold != 3 || cfg.BreakerOptions.OpenTimeout != 10*time.Second {
		t.Fatalf("expected breaker 3/10s, got %d/%s", cfg.BreakerOptions.FailureThreshold, cfg.BreakerOptions.OpenTimeout)
	}
	if cfg.CallerOptions.Timeout != 2*time.Second || cfg.CallerOptions.MaxAttempts != 2 {
		t.Fatalf("expected caller 2s/2 attempts, got %s/%d", cfg.CallerOptions.Timeout, cfg.CallerOptions.MaxAttempts)
	}
	if cfg.CallerOptions.Backoff.Base != 100*time.Millisecond || cfg.CallerOptions.Backoff.Cap != 2*time.Second {
		t.Fatalf("unexpected backoff defaults: %+v", cfg.CallerOptions.Backoff)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(LoadOptions{
		Args: []string{},
		Getenv: mapGetenv(map[string]string{
			"LISTEN_ADDR":               ":9999",
			"UPSTREAM_URL":              "http://origin:8000",
			"STORE_TYPE":                "memory",
			"RATE_ALGORITHM":            "fixed",
			"RATE_WINDOW":               "30s",
			"RATE_LIMIT":                "100",
			"FAILURE_POLICY":            "closed",
			"BREAKER_FAILURE_THRESHOLD": "7",
			"BREAKER_OPEN_TIMEOUT":      "20s",
			"ATTEMPT_TIMEOUT":           "500ms",
			"MAX_ATTEMPTS":              "4",
		}),
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.UpstreamURL != "http://origin:8000" {
		t.Fatalf("expected env addresses, got %q %q", cfg.ListenAddr, cfg.UpstreamURL)
	}
	if cfg.StoreType != "memory" {
		t.Fatalf("expected memory store, got %q", cfg.StoreType)
	}
	if cfg.RateAlgorithm != AlgorithmFixed || cfg.RateWindow != 30*time.Second || cfg.RateLimit != 100 {
		t.Fatalf("expected fixed 100 per 30s, got %s %d per %s", cfg.RateAlgorithm, cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.FailurePolicy != FailClosed {
		t.Fatalf("expected fail-closed, got %q", cfg.FailurePolicy)
	}
	if cfg.BreakerOptions.FailureThreshold != 7 || cfg.BreakerOptions.OpenTimeout != 20*time.Second {
		t.Fatalf("expected breaker 7/20s, got %d/%s", cfg.BreakerOptions.FailureThreshold, cfg.BreakerOptions.OpenTimeout)
	}
	if cfg.CallerOptions.Timeout != 500*time.Millisecond || cfg.CallerOptions.MaxAttempts != 4 {
		t.Fatalf("expected caller 500ms/4, got %s/%d", cfg.CallerOptions.Timeout, cfg.CallerOptions.MaxAttempts)
	}
}

func TestLoadConfig_FlagsWinOverEnv(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(LoadOptions{
		Args: []string{
			"-listen_addr", ":7777",
			"-rate_limit", "9",
			"-rate_window_ms", "15000",
			"-failure_policy", "closed",
			"-breaker_failure_threshold", "2",
			"-breaker_open_ms", "2500",
		},
		Getenv: mapGetenv(map[string]string{
			"LISTEN_ADDR": ":9999",
			"RATE_LIMIT":  "100",
		}),
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Fatalf("expected flag listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.RateLimit != 9 || cfg.RateWindow != 15*time.Second {
		t.Fatalf("expected 9 per 15s, got %d per %s", cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.FailurePolicy != FailClosed {
		t.Fatalf("expected fail-closed, got %q", cfg.FailurePolicy)
	}
	if cfg.BreakerOptions.FailureThreshold != 2 || cfg.BreakerOptions.OpenTimeout != 2500*time.Millisecond {
		t.Fatalf("expected breaker 2/2.5s, got %d/%s", cfg.BreakerOptions.FailureThreshold, cfg.BreakerOptions.OpenTimeout)
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad rate limit", env: map[string]string{"RATE_LIMIT": "lots"}},
		{name: "zero rate limit", args: []string{"-rate_limit", "0"}},
		{name: "bad window", env: map[string]string{"RATE_WINDOW": "soon"}},
		{name: "unknown algorithm", env: map[string]string{"RATE_ALGORITHM": "leaky"}},
		{name: "unknown policy", env: map[string]string{"FAILURE_POLICY": "maybe"}},
		{name: "unknown store", env: map[string]string{"STORE_TYPE": "etcd"}},
		{name: "unknown flag", args: []string{"-nope"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			args := tc.args
			if args == nil {
				args = []string{}
			}
			if _, err := LoadConfig(LoadOptions{Args: args, Getenv: mapGetenv(tc.env)}); err == nil {
				t.Fatalf("expected load to fail")
			}
		})
	}
}
