package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"KESTREL_PORT" default:"8080"`
	LogLevel string `envconfig:"KESTREL_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"KESTREL_LOG_DIR" default:"./logs"`
	AuditDir string `envconfig:"KESTREL_AUDIT_DIR" default:"./logs/audit"`

	RoutingStrategy string `envconfig:"KESTREL_ROUTING_STRATEGY" default:"health_based"`

	MaxAttempts       int     `envconfig:"KESTREL_MAX_ATTEMPTS" default:"3"`
	InitialDelayMS    int     `envconfig:"KESTREL_INITIAL_DELAY_MS" default:"1000"`
	BackoffMultiplier float64 `envconfig:"KESTREL_BACKOFF_MULTIPLIER" default:"2.0"`
	MaxDelayMS        int     `envconfig:"KESTREL_MAX_DELAY_MS" default:"60000"`
	AttemptTimeoutMS  int     `envconfig:"KESTREL_ATTEMPT_TIMEOUT_MS" default:"10000"`

	BreakerFailureThreshold int `envconfig:"KESTREL_BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerTimeoutS         int `envconfig:"KESTREL_BREAKER_TIMEOUT_S" default:"30"`
	BreakerHalfOpenMaxCalls int `envconfig:"KESTREL_BREAKER_HALF_OPEN_MAX_CALLS" default:"3"`

	APIRateLimit       float64 `envconfig:"KESTREL_API_RATE_LIMIT" default:"200"`
	APIRateBurst       int     `envconfig:"KESTREL_API_RATE_BURST" default:"50"`
	HealthIntervalS    int     `envconfig:"KESTREL_HEALTH_INTERVAL_S" default:"30"`
	LoadgenConcurrency int     `envconfig:"KESTREL_LOADGEN_CONCURRENCY" default:"8"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars, so real environment
	// variables take precedence over .env values.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		} else {
			slog.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if !validStrategies[c.RoutingStrategy] {
		return fmt.Errorf("%w: unknown routing strategy %q", ErrInvalidConfig, c.RoutingStrategy)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.BackoffMultiplier < 1.0 {
		return fmt.Errorf("%w: backoff multiplier must be >= 1.0, got %g", ErrInvalidConfig, c.BackoffMultiplier)
	}
	if c.BreakerFailureThreshold < 1 {
		return fmt.Errorf("%w: breaker failure threshold must be >= 1, got %d", ErrInvalidConfig, c.BreakerFailureThreshold)
	}
	return nil
}

var validStrategies = map[string]bool{
	"health_based":           true,
	"round_robin":            true,
	"failover":               true,
	"cost_optimized":         true,
	"card_network_optimized": true,
}
