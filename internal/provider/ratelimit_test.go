package provider

import (
	"testing"
	"time"
)

func TestFixedWindowEnforcesThreshold(t *testing.T) {
	fw := newFixedWindow(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !fw.Acquire() {
			t.Fatalf("acquire %d: should succeed within budget", i)
		}
	}
	if fw.Acquire() {
		t.Fatal("acquire over threshold should fail")
	}
	if got := fw.Load(); got != 3 {
		t.Fatalf("load = %d, want 3", got)
	}
}

func TestFixedWindowResetsAfterWindow(t *testing.T) {
	now := time.Now()
	fw := newFixedWindow(2, time.Minute)
	fw.now = func() time.Time { return now }
	fw.resetAt = now.Add(time.Minute)

	fw.Acquire()
	fw.Acquire()
	if fw.Acquire() {
		t.Fatal("budget should be exhausted")
	}

	now = now.Add(61 * time.Second)
	if !fw.Acquire() {
		t.Fatal("acquire should succeed after window reset")
	}
	if got := fw.Load(); got != 1 {
		t.Fatalf("load after reset = %d, want 1", got)
	}
}

func TestFixedWindowSetThreshold(t *testing.T) {
	fw := newFixedWindow(100, time.Minute)
	fw.Acquire()

	fw.SetThreshold(1)
	if fw.Acquire() {
		t.Fatal("lowered threshold should take effect within the current window")
	}
}
