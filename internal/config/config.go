// Package config provides application configuration management.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Configuration upper bounds to prevent resource exhaustion.
const (
	maxConcurrent        = 64
	maxTimeoutMs         = 10 * 60 * 1000 // 10 minutes
	minExtractionSecret  = 16
	maxCircuitExitMs     = 30 * 60 * 1000
	maxShutdownTimeoutMs = 5 * 60 * 1000
)

// Config holds all application configuration.
// Configuration is loaded from environment variables at startup.
type Config struct {
	// Server settings
	Port        int
	MetricsPort int

	// Authentication
	ExtractionSecret string

	// Pool / extraction settings
	MaxConcurrent int

	BrowserIdleTimeout   time.Duration
	BrowserMaxAge        time.Duration
	ShutdownTimeout      time.Duration
	CircuitExitThreshold time.Duration

	ChromePath string

	// Logging
	LogLevel string

	// Profiling
	PProfEnabled  bool
	PProfPort     int
	PProfBindAddr string

	// Security
	RateLimitEnabled   bool
	RateLimitRPM       int
	TrustProxy         bool
	CORSAllowedOrigins []string

	// Selectors settings
	SelectorsPath      string
	SelectorsHotReload bool
}

// Load loads configuration from environment variables.
// Returns a Config with values from environment or sensible defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 3001),
		MetricsPort: getEnvInt("METRICS_PORT", 9090),

		ExtractionSecret: getEnvString("EXTRACTION_SECRET", ""),

		MaxConcurrent: getEnvInt("MAX_CONCURRENT", 2),

		BrowserIdleTimeout:   getEnvDuration("BROWSER_IDLE_TIMEOUT", 60*time.Second),
		BrowserMaxAge:        getEnvDuration("BROWSER_MAX_AGE", 7200*time.Second),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		CircuitExitThreshold: getEnvDuration("CIRCUIT_BREAKER_EXIT_THRESHOLD", 120*time.Second),

		ChromePath: getEnvString("CHROME_PATH", ""),

		LogLevel: getEnvString("LOG_LEVEL", "info"),

		PProfEnabled:  getEnvBool("PPROF_ENABLED", false),
		PProfPort:     getEnvInt("PPROF_PORT", 6060),
		PProfBindAddr: getEnvString("PPROF_BIND_ADDR", "127.0.0.1"),

		RateLimitEnabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPM:       getEnvInt("RATE_LIMIT_RPM", 60),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),
		CORSAllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", nil),

		SelectorsPath:      getEnvString("SELECTORS_PATH", ""),
		SelectorsHotReload: getEnvBool("SELECTORS_HOT_RELOAD", false),
	}
}

// Validate checks configuration values and logs warnings for invalid values.
// Invalid values are corrected to sensible defaults.
func (c *Config) Validate() {
	if c.Port < 0 || c.Port > 65535 {
		log.Warn().Int("port", c.Port).Msg("Invalid port, using default 3001")
		c.Port = 3001
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		log.Warn().Int("port", c.MetricsPort).Msg("Invalid metrics port, using default 9090")
		c.MetricsPort = 9090
	}
	if c.MetricsPort == c.Port {
		log.Error().Int("port", c.Port).Msg("METRICS_PORT conflicts with PORT, adjusting to PORT+1")
		c.MetricsPort = c.Port + 1
	}

	if c.ChromePath != "" && strings.Contains(c.ChromePath, "..") {
		log.Error().Str("path", c.ChromePath).Msg("CHROME_PATH contains path traversal sequence (..), ignoring")
		c.ChromePath = ""
	}

	if c.MaxConcurrent < 1 {
		log.Warn().Int("max_concurrent", c.MaxConcurrent).Msg("Invalid MAX_CONCURRENT, using default 2")
		c.MaxConcurrent = 2
	} else if c.MaxConcurrent > maxConcurrent {
		log.Warn().Int("max_concurrent", c.MaxConcurrent).Int("max", maxConcurrent).Msg("MAX_CONCURRENT too large, capping")
		c.MaxConcurrent = maxConcurrent
	}

	const minIdle = 1 * time.Second
	const maxIdle = 1 * time.Hour
	if c.BrowserIdleTimeout < minIdle {
		log.Warn().Dur("idle", c.BrowserIdleTimeout).Msg("BROWSER_IDLE_TIMEOUT too short, using 60s")
		c.BrowserIdleTimeout = 60 * time.Second
	} else if c.BrowserIdleTimeout > maxIdle {
		log.Warn().Dur("idle", c.BrowserIdleTimeout).Msg("BROWSER_IDLE_TIMEOUT too long, capping to 1h")
		c.BrowserIdleTimeout = maxIdle
	}

	const minMaxAge = 1 * time.Minute
	const maxMaxAge = 24 * time.Hour
	if c.BrowserMaxAge < minMaxAge {
		log.Warn().Dur("max_age", c.BrowserMaxAge).Msg("BROWSER_MAX_AGE too short, using minimum")
		c.BrowserMaxAge = minMaxAge
	} else if c.BrowserMaxAge > maxMaxAge {
		log.Warn().Dur("max_age", c.BrowserMaxAge).Msg("BROWSER_MAX_AGE too long, capping to maximum")
		c.BrowserMaxAge = maxMaxAge
	}

	if c.ShutdownTimeout < time.Second {
		log.Warn().Dur("shutdown", c.ShutdownTimeout).Msg("SHUTDOWN_TIMEOUT too short, using 30s")
		c.ShutdownTimeout = 30 * time.Second
	} else if c.ShutdownTimeout > maxShutdownTimeoutMs*time.Millisecond {
		log.Warn().Dur("shutdown", c.ShutdownTimeout).Msg("SHUTDOWN_TIMEOUT too long, capping")
		c.ShutdownTimeout = maxShutdownTimeoutMs * time.Millisecond
	}

	if c.CircuitExitThreshold < 10*time.Second {
		log.Warn().Dur("threshold", c.CircuitExitThreshold).Msg("CIRCUIT_BREAKER_EXIT_THRESHOLD too short, using 120s")
		c.CircuitExitThreshold = 120 * time.Second
	} else if c.CircuitExitThreshold > maxCircuitExitMs*time.Millisecond {
		log.Warn().Dur("threshold", c.CircuitExitThreshold).Msg("CIRCUIT_BREAKER_EXIT_THRESHOLD too long, capping")
		c.CircuitExitThreshold = maxCircuitExitMs * time.Millisecond
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		log.Warn().Str("level", c.LogLevel).Msg("Invalid log level, using 'info'")
		c.LogLevel = "info"
	}

	if c.PProfEnabled && c.PProfBindAddr != "127.0.0.1" && c.PProfBindAddr != "localhost" {
		log.Warn().Str("addr", c.PProfBindAddr).Msg("WARNING: pprof exposed on non-localhost address - this is a security risk")
	}
	if c.PProfEnabled && (c.PProfPort == c.Port || c.PProfPort == c.MetricsPort) {
		log.Error().Int("port", c.PProfPort).Msg("PPROF_PORT conflicts with another port, disabling pprof")
		c.PProfEnabled = false
	}

	if len(c.CORSAllowedOrigins) == 0 {
		log.Warn().Msg("CORS_ALLOWED_ORIGINS not set - cross-origin requests will be rejected")
	}

	if c.RateLimitEnabled {
		if c.RateLimitRPM < 1 {
			log.Warn().Int("rpm", c.RateLimitRPM).Msg("Invalid rate limit, using 60 RPM")
			c.RateLimitRPM = 60
		} else if c.RateLimitRPM > maxRateLimitRPM {
			log.Warn().Int("rpm", c.RateLimitRPM).Int("max", maxRateLimitRPM).Msg("Rate limit too high, capping to maximum")
			c.RateLimitRPM = maxRateLimitRPM
		}
	}

	if c.SelectorsPath != "" {
		if strings.Contains(c.SelectorsPath, "..") {
			log.Error().Str("path", c.SelectorsPath).Msg("SelectorsPath contains path traversal sequence (..), ignoring")
			c.SelectorsPath = ""
		} else if c.SelectorsHotReload {
			if _, err := os.Stat(c.SelectorsPath); os.IsNotExist(err) {
				log.Warn().Str("path", c.SelectorsPath).Msg("SelectorsPath does not exist - hot-reload will watch for file creation")
			}
		}
	}
	if c.SelectorsHotReload && c.SelectorsPath == "" {
		log.Warn().Msg("SELECTORS_HOT_RELOAD enabled but SELECTORS_PATH not set - hot-reload disabled")
		c.SelectorsHotReload = false
	}

	switch {
	case c.ExtractionSecret == "":
		log.Error().Msg("EXTRACTION_SECRET is empty - all requests will be rejected with 500 until it is set")
	case len(c.ExtractionSecret) < minExtractionSecret:
		log.Warn().Int("length", len(c.ExtractionSecret)).Int("min_recommended", minExtractionSecret).
			Msg("EXTRACTION_SECRET is short for secure authentication")
	}
}

const maxRateLimitRPM = 10000

// Helper functions for environment variable parsing.

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 32)
		if err == nil {
			return int(intValue)
		}
		log.Warn().Str("key", key).Str("value", value).Err(err).Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		log.Warn().Str("key", key).Str("value", value).Err(err).Bool("default", defaultValue).
			Msg("Invalid boolean in environment variable, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			if duration > 0 {
				return duration
			}
			log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).
				Msg("Duration must be positive, using default")
			return defaultValue
		}
		log.Warn().Str("key", key).Str("value", value).Err(err).Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
