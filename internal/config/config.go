// Package config provides centralized configuration for the couchgen CLI.
// It loads settings from environment variables, validates them, and
// provides sensible defaults. Command-line flags override individual
// fields after loading.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/couchgen/internal/logutil"
	"github.com/kuitang/couchgen/internal/ratelimit"
	"github.com/kuitang/couchgen/internal/urlutil"
	"github.com/kuitang/couchgen/pkg/exampledb"
)

// Environment variable names.
const (
	EnvDBURL      = "COUCHGEN_DB_URL"
	EnvDBUser     = "COUCHGEN_DB_USER"
	EnvDBPassword = "COUCHGEN_DB_PASSWORD"
	EnvDBRPS      = "COUCHGEN_DB_RPS"
	EnvDBBurst    = "COUCHGEN_DB_BURST"
	EnvDBTimeout  = "COUCHGEN_DB_TIMEOUT"
	EnvLogLevel   = "COUCHGEN_LOG_LEVEL"
)

// Config holds all CLI configuration.
type Config struct {
	// Example database
	DBURL      string
	DBUser     string
	DBPassword string
	DBTimeout  time.Duration

	// Request pacing toward the database
	RateLimit ratelimit.Config

	// Logging
	LogLevel string // debug, info, warn or error
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// FromEnv reads configuration from environment variables without
// validating it, so that callers can apply flag overrides first.
func FromEnv() *Config {
	return &Config{
		DBURL:      getEnvOrDefault(EnvDBURL, exampledb.DefaultURL),
		DBUser:     strings.TrimSpace(os.Getenv(EnvDBUser)),
		DBPassword: os.Getenv(EnvDBPassword),
		DBTimeout:  parseDurationOrDefault(EnvDBTimeout, 30*time.Second),
		RateLimit: ratelimit.Config{
			RPS:   parseFloat64OrDefault(EnvDBRPS, 0),
			Burst: parseIntOrDefault(EnvDBBurst, 1),
		},
		LogLevel: getEnvOrDefault(EnvLogLevel, "info"),
	}
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if !urlutil.IsHTTP(c.DBURL) {
		errs = append(errs, EnvDBURL+" must start with http:// or https://")
	}
	if c.DBUser != "" && c.DBPassword == "" {
		errs = append(errs, EnvDBPassword+" is required when "+EnvDBUser+" is set")
	}
	if c.DBTimeout < 0 {
		errs = append(errs, EnvDBTimeout+" must not be negative")
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, EnvDBRPS+" must not be negative (0 disables pacing)")
	}
	if c.RateLimit.Burst < 1 {
		errs = append(errs, EnvDBBurst+" must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, EnvLogLevel+" must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Store returns the example store settings.
func (c *Config) Store() exampledb.Config {
	return exampledb.Config{
		URL:               c.DBURL,
		Username:          c.DBUser,
		Password:          c.DBPassword,
		RequestsPerSecond: c.RateLimit.RPS,
		Burst:             c.RateLimit.Burst,
		Timeout:           c.DBTimeout,
	}
}

// PrintSummary writes a human-readable summary of the configuration.
func (c *Config) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "  Database: %s\n", logutil.RedactURL(c.DBURL))
	if c.DBUser != "" {
		fmt.Fprintf(w, "  Auth:     basic (%s)\n", c.DBUser)
	} else {
		fmt.Fprintln(w, "  Auth:     none")
	}
	if c.RateLimit.Enabled() {
		fmt.Fprintf(w, "  Pacing:   %g req/s (burst %d)\n", c.RateLimit.RPS, c.RateLimit.Burst)
	} else {
		fmt.Fprintln(w, "  Pacing:   off")
	}
	fmt.Fprintf(w, "  Timeout:  %s\n", c.DBTimeout)
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
