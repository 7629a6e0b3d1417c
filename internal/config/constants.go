package config

import "time"

// Circuit Breaker
const (
	CircuitClosed   = "CLOSED"
	CircuitOpen     = "OPEN"
	CircuitHalfOpen = "HALF_OPEN"

	CircuitBreakerFailureThreshold = 5
	CircuitBreakerTimeout          = 30 * time.Second
	CircuitBreakerHalfOpenMax      = 3
)

// Retry
const (
	RetryMaxAttempts       = 3
	RetryInitialDelay      = 1 * time.Second
	RetryBackoffMultiplier = 2.0
	RetryMaxDelay          = 60 * time.Second
)

// Provider Rate Limiting (fixed window)
const (
	ProviderRateLimitThreshold = 100
	ProviderRateLimitWindow    = 60 * time.Second
)

// Monitoring
const (
	MetricsHistorySize   = 1000
	SystemHealthInterval = 30 * time.Second
)

// Server
const (
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second
	ShutdownTimeout    = 10 * time.Second
)

// Logging
const (
	LogFilePattern = "kestrel-%s.log" // %s = YYYY-MM-DD
	LogMaxAgeDays  = 30
)
