package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PORT", "METRICS_PORT", "EXTRACTION_SECRET", "MAX_CONCURRENT",
		"BROWSER_IDLE_TIMEOUT", "BROWSER_MAX_AGE", "SHUTDOWN_TIMEOUT",
		"CIRCUIT_BREAKER_EXIT_THRESHOLD", "CHROME_PATH", "LOG_LEVEL",
		"PPROF_ENABLED", "PPROF_PORT", "PPROF_BIND_ADDR",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "TRUST_PROXY",
		"CORS_ALLOWED_ORIGINS", "SELECTORS_PATH", "SELECTORS_HOT_RELOAD",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Port != 3001 {
		t.Errorf("expected default port 3001, got %d", cfg.Port)
	}
	if cfg.MetricsPort != 9090 {
		t.Errorf("expected default metrics port 9090, got %d", cfg.MetricsPort)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("expected default MaxConcurrent 2, got %d", cfg.MaxConcurrent)
	}
	if cfg.BrowserIdleTimeout != 60*time.Second {
		t.Errorf("expected default idle timeout 60s, got %v", cfg.BrowserIdleTimeout)
	}
	if cfg.BrowserMaxAge != 7200*time.Second {
		t.Errorf("expected default max age 7200s, got %v", cfg.BrowserMaxAge)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.CircuitExitThreshold != 120*time.Second {
		t.Errorf("expected default circuit exit threshold 120s, got %v", cfg.CircuitExitThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
	if !cfg.RateLimitEnabled {
		t.Error("expected rate limiting enabled by default")
	}
	if cfg.RateLimitRPM != 60 {
		t.Errorf("expected default rate limit 60rpm, got %d", cfg.RateLimitRPM)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("PORT", "4000")
	os.Setenv("MAX_CONCURRENT", "5")
	os.Setenv("EXTRACTION_SECRET", "a-very-long-secret-value")
	defer clearEnv(t)

	cfg := Load()
	if cfg.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.Port)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("expected MaxConcurrent 5, got %d", cfg.MaxConcurrent)
	}
	if cfg.ExtractionSecret != "a-very-long-secret-value" {
		t.Errorf("expected secret to be loaded, got %q", cfg.ExtractionSecret)
	}
}

func TestValidateClampsOutOfRangeValues(t *testing.T) {
	cfg := &Config{
		Port:                 -1,
		MetricsPort:          999999,
		MaxConcurrent:        0,
		BrowserIdleTimeout:   0,
		BrowserMaxAge:        0,
		ShutdownTimeout:      0,
		CircuitExitThreshold: 0,
		LogLevel:             "nonsense",
		ExtractionSecret:     "short",
	}
	cfg.Validate()

	if cfg.Port != 3001 {
		t.Errorf("expected port reset to 3001, got %d", cfg.Port)
	}
	if cfg.MetricsPort != 9090 {
		t.Errorf("expected metrics port reset to 9090, got %d", cfg.MetricsPort)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("expected MaxConcurrent reset to 2, got %d", cfg.MaxConcurrent)
	}
	if cfg.BrowserIdleTimeout != 60*time.Second {
		t.Errorf("expected idle timeout reset to 60s, got %v", cfg.BrowserIdleTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level reset to info, got %q", cfg.LogLevel)
	}
}

func TestValidateMetricsPortConflict(t *testing.T) {
	cfg := &Config{Port: 3001, MetricsPort: 3001, MaxConcurrent: 2,
		BrowserIdleTimeout: time.Minute, BrowserMaxAge: time.Hour,
		ShutdownTimeout: 30 * time.Second, CircuitExitThreshold: 120 * time.Second,
		LogLevel: "info", ExtractionSecret: "a-very-long-secret-value"}
	cfg.Validate()
	if cfg.MetricsPort == cfg.Port {
		t.Error("expected metrics port to be adjusted away from PORT")
	}
}

func TestValidateMaxConcurrentUpperBound(t *testing.T) {
	cfg := &Config{Port: 3001, MetricsPort: 9090, MaxConcurrent: 1000,
		BrowserIdleTimeout: time.Minute, BrowserMaxAge: time.Hour,
		ShutdownTimeout: 30 * time.Second, CircuitExitThreshold: 120 * time.Second,
		LogLevel: "info", ExtractionSecret: "a-very-long-secret-value"}
	cfg.Validate()
	if cfg.MaxConcurrent != maxConcurrent {
		t.Errorf("expected MaxConcurrent capped at %d, got %d", maxConcurrent, cfg.MaxConcurrent)
	}
}
