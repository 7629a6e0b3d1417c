package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelpay/kestrel/internal/config"
)

// Settings configures a circuit breaker.
type Settings struct {
	FailureThreshold int
	Timeout          time.Duration
	HalfOpenMaxCalls int
}

// DefaultSettings returns the standard breaker configuration.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: config.CircuitBreakerFailureThreshold,
		Timeout:          config.CircuitBreakerTimeout,
		HalfOpenMaxCalls: config.CircuitBreakerHalfOpenMax,
	}
}

// StateChangeFunc is invoked on every state transition while the breaker
// lock is held; callbacks must not call back into the breaker.
type StateChangeFunc func(name, from, to string, failureCount int)

// CircuitBreaker guards one provider against cascading failures.
//
// State machine:
//   - CLOSED: requests pass. Failure increments the counter; reaching the
//     threshold trips to OPEN. Success decays the counter by one rather
//     than resetting it.
//   - OPEN: requests are rejected until the timeout has elapsed since the
//     last failure, then the breaker probes via HALF_OPEN.
//   - HALF_OPEN: a bounded number of probe calls pass. Enough successes
//     close the breaker; any failure reopens it immediately.
type CircuitBreaker struct {
	mu sync.Mutex

	name     string
	settings Settings
	onChange StateChangeFunc

	state             string
	failureCount      int
	lastFailureTime   time.Time
	halfOpenAttempts  int
	halfOpenSuccesses int

	now func() time.Time // test hook
}

// New creates a closed circuit breaker for the named provider.
func New(name string, settings Settings, onChange StateChangeFunc) *CircuitBreaker {
	return &CircuitBreaker{
		name:     name,
		settings: settings,
		onChange: onChange,
		state:    config.CircuitClosed,
		now:      time.Now,
	}
}

// Allow returns true if a call should be let through. In OPEN state it
// transitions to HALF_OPEN once the timeout has elapsed and allows the probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case config.CircuitClosed:
		return true

	case config.CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.settings.Timeout {
			cb.transition(config.CircuitHalfOpen)
			cb.halfOpenAttempts = 1
			return true
		}
		return false

	case config.CircuitHalfOpen:
		if cb.halfOpenAttempts < cb.settings.HalfOpenMaxCalls {
			cb.halfOpenAttempts++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess records a successful call. In CLOSED state the failure
// counter decays by one; in HALF_OPEN enough successes close the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case config.CircuitHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.settings.HalfOpenMaxCalls {
			cb.reset()
			cb.transition(config.CircuitClosed)
		}
	default:
		if cb.failureCount > 0 {
			cb.failureCount--
		}
	}
}

// RecordFailure records a failed call and may trip the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case config.CircuitHalfOpen:
		slog.Warn("circuit breaker reopened from half-open after failure",
			"provider", cb.name,
			"failureCount", cb.failureCount,
		)
		cb.halfOpenAttempts = 0
		cb.halfOpenSuccesses = 0
		cb.transition(config.CircuitOpen)

	case config.CircuitClosed:
		if cb.failureCount >= cb.settings.FailureThreshold {
			slog.Warn("circuit breaker tripped to open",
				"provider", cb.name,
				"failureCount", cb.failureCount,
				"threshold", cb.settings.FailureThreshold,
			)
			cb.transition(config.CircuitOpen)
		}
	}
}

// ForceOpen trips the breaker regardless of failure counts. Administrative.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()
	cb.failureCount = cb.settings.FailureThreshold
	cb.transition(config.CircuitOpen)
}

// ForceClose closes the breaker and zeroes every counter. Administrative.
func (cb *CircuitBreaker) ForceClose() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.reset()
	cb.transition(config.CircuitClosed)
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the current failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Stats is a serializable snapshot of breaker state.
type Stats struct {
	State           string     `json:"state"`
	FailureCount    int        `json:"failure_count"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
	HalfOpenCalls   int        `json:"half_open_calls"`
}

// Snapshot returns the breaker's current stats.
func (cb *CircuitBreaker) Snapshot() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Stats{
		State:         cb.state,
		FailureCount:  cb.failureCount,
		HalfOpenCalls: cb.halfOpenAttempts,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		s.LastFailureTime = &t
	}
	return s
}

// reset zeroes counters; caller holds the lock.
func (cb *CircuitBreaker) reset() {
	cb.failureCount = 0
	cb.halfOpenAttempts = 0
	cb.halfOpenSuccesses = 0
	cb.lastFailureTime = time.Time{}
}

// transition changes state and fires the callback; caller holds the lock.
func (cb *CircuitBreaker) transition(to string) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.onChange != nil {
		cb.onChange(cb.name, from, to, cb.failureCount)
	}
}
