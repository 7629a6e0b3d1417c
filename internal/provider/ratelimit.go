package provider

import (
	"sync"
	"time"
)

// fixedWindow is the per-provider request budget: threshold requests per
// window, counter reset when the window elapses. Unlike a token bucket the
// budget refills all at once, which is how upstream acquirers meter calls.
type fixedWindow struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	count     int
	resetAt   time.Time

	now func() time.Time // test hook
}

func newFixedWindow(threshold int, window time.Duration) *fixedWindow {
	fw := &fixedWindow{
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
	fw.resetAt = fw.now().Add(window)
	return fw
}

// Acquire consumes one slot in the current window. Returns false when the
// window budget is exhausted.
func (fw *fixedWindow) Acquire() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if now := fw.now(); now.After(fw.resetAt) {
		fw.count = 0
		fw.resetAt = now.Add(fw.window)
	}

	if fw.count >= fw.threshold {
		return false
	}
	fw.count++
	return true
}

// Load returns the number of requests consumed in the current window.
func (fw *fixedWindow) Load() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.count
}

// SetThreshold replaces the per-window budget. The current window's count
// is preserved so a lowered threshold takes effect immediately.
func (fw *fixedWindow) SetThreshold(threshold int) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.threshold = threshold
}
