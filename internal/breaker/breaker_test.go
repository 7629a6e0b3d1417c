package breaker

import (
	"testing"
	"time"

	"github.com/kestrelpay/kestrel/internal/config"
)

func testSettings() Settings {
	return Settings{
		FailureThreshold: 3,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

func TestClosedAllowsCalls(t *testing.T) {
	cb := New("stripe", testSettings(), nil)

	for i := 0; i < 10; i++ {
		if !cb.Allow() {
			t.Fatalf("call %d: closed breaker should allow", i)
		}
	}
}

func TestTripsAtExactThreshold(t *testing.T) {
	cb := New("stripe", testSettings(), nil)

	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.State(); got != config.CircuitClosed {
		t.Fatalf("after threshold-1 failures: state = %s, want CLOSED", got)
	}

	cb.RecordFailure()
	if got := cb.State(); got != config.CircuitOpen {
		t.Fatalf("after threshold failures: state = %s, want OPEN", got)
	}
	if cb.Allow() {
		t.Fatal("open breaker should reject before timeout")
	}
}

func TestSuccessDecaysFailureCount(t *testing.T) {
	cb := New("stripe", testSettings(), nil)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	if got := cb.FailureCount(); got != 1 {
		t.Fatalf("failure count = %d, want 1 after decay", got)
	}

	// Decay never goes negative.
	cb.RecordSuccess()
	cb.RecordSuccess()
	if got := cb.FailureCount(); got != 0 {
		t.Fatalf("failure count = %d, want 0", got)
	}
}

func TestOpenTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	cb := New("stripe", testSettings(), nil)
	now := time.Now()
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.Allow() {
		t.Fatal("open breaker should reject before timeout")
	}

	now = now.Add(31 * time.Second)
	if !cb.Allow() {
		t.Fatal("breaker should allow a probe after timeout")
	}
	if got := cb.State(); got != config.CircuitHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", got)
	}
}

func TestHalfOpenBoundsProbes(t *testing.T) {
	cb := New("stripe", testSettings(), nil)
	now := time.Now()
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	now = now.Add(31 * time.Second)

	// HalfOpenMaxCalls = 2: the transition probe plus one more.
	if !cb.Allow() {
		t.Fatal("first probe should be allowed")
	}
	if !cb.Allow() {
		t.Fatal("second probe should be allowed")
	}
	if cb.Allow() {
		t.Fatal("third probe should be rejected")
	}
}

func TestHalfOpenSuccessesClose(t *testing.T) {
	cb := New("stripe", testSettings(), nil)
	now := time.Now()
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	now = now.Add(31 * time.Second)
	cb.Allow()
	cb.RecordSuccess()
	if got := cb.State(); got != config.CircuitHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN after one probe success", got)
	}

	cb.Allow()
	cb.RecordSuccess()
	if got := cb.State(); got != config.CircuitClosed {
		t.Fatalf("state = %s, want CLOSED after enough probe successes", got)
	}
	if got := cb.FailureCount(); got != 0 {
		t.Fatalf("failure count = %d, want 0 after close", got)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New("stripe", testSettings(), nil)
	now := time.Now()
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	now = now.Add(31 * time.Second)
	cb.Allow()
	cb.RecordFailure()

	if got := cb.State(); got != config.CircuitOpen {
		t.Fatalf("state = %s, want OPEN after half-open failure", got)
	}
	if cb.Allow() {
		t.Fatal("reopened breaker should reject until cooldown restarts")
	}
}

func TestForceOverrides(t *testing.T) {
	cb := New("stripe", testSettings(), nil)

	cb.ForceOpen()
	if got := cb.State(); got != config.CircuitOpen {
		t.Fatalf("state = %s, want OPEN after ForceOpen", got)
	}
	if cb.Allow() {
		t.Fatal("forced-open breaker should reject")
	}

	cb.ForceClose()
	if got := cb.State(); got != config.CircuitClosed {
		t.Fatalf("state = %s, want CLOSED after ForceClose", got)
	}
	if got := cb.FailureCount(); got != 0 {
		t.Fatalf("failure count = %d, want 0 after ForceClose", got)
	}
	if !cb.Allow() {
		t.Fatal("forced-closed breaker should allow")
	}
}

func TestStateChangeCallback(t *testing.T) {
	type change struct{ from, to string }
	var changes []change
	cb := New("stripe", testSettings(), func(name, from, to string, failures int) {
		if name != "stripe" {
			t.Errorf("callback name = %s, want stripe", name)
		}
		changes = append(changes, change{from, to})
	})

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	cb.ForceClose()

	want := []change{
		{config.CircuitClosed, config.CircuitOpen},
		{config.CircuitOpen, config.CircuitClosed},
	}
	if len(changes) != len(want) {
		t.Fatalf("got %d transitions, want %d", len(changes), len(want))
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("transition %d = %+v, want %+v", i, changes[i], w)
		}
	}
}

func TestSnapshotReflectsState(t *testing.T) {
	cb := New("stripe", testSettings(), nil)
	cb.RecordFailure()

	s := cb.Snapshot()
	if s.State != config.CircuitClosed {
		t.Errorf("snapshot state = %s, want CLOSED", s.State)
	}
	if s.FailureCount != 1 {
		t.Errorf("snapshot failure count = %d, want 1", s.FailureCount)
	}
	if s.LastFailureTime == nil {
		t.Error("snapshot should carry last failure time")
	}
}
