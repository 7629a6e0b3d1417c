package provider

import (
	"sync"
	"time"

	"github.com/kestrelpay/kestrel/internal/models"
)

// bucket is one rolling counter line: requests, failures, cumulative time.
type bucket struct {
	requests  int
	failures  int
	totalTime float64 // seconds
}

// healthTracker aggregates post-call observations per network, method and
// region plus global totals. One mutex serializes all counters so health
// snapshots are internally consistent (requests >= failures always holds).
type healthTracker struct {
	mu sync.Mutex

	requests  int
	failures  int
	totalTime float64

	byNetwork map[string]*bucket
	byMethod  map[string]*bucket
	byRegion  map[string]*bucket
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		byNetwork: map[string]*bucket{},
		byMethod:  map[string]*bucket{},
		byRegion:  map[string]*bucket{},
	}
}

// ObserveStart counts an inbound attempt against the relevant breakdowns.
func (h *healthTracker) ObserveStart(tx *models.Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests++
	if tx.Instrument != nil {
		if tx.Instrument.Network != "" {
			h.dim(h.byNetwork, string(tx.Instrument.Network)).requests++
		}
		h.dim(h.byMethod, string(tx.Instrument.Method)).requests++
	}
	if tx.Customer != nil && tx.Customer.Region != "" {
		h.dim(h.byRegion, string(tx.Customer.Region)).requests++
	}
}

// ObserveCompletion records the outcome and duration of a processed attempt.
func (h *healthTracker) ObserveCompletion(tx *models.Transaction, success bool, elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	secs := elapsed.Seconds()
	h.totalTime += secs
	if !success {
		h.failures++
	}

	if tx.Instrument != nil {
		if tx.Instrument.Network != "" {
			b := h.dim(h.byNetwork, string(tx.Instrument.Network))
			b.totalTime += secs
			if !success {
				b.failures++
			}
		}
		b := h.dim(h.byMethod, string(tx.Instrument.Method))
		b.totalTime += secs
		if !success {
			b.failures++
		}
	}
	if tx.Customer != nil && tx.Customer.Region != "" {
		b := h.dim(h.byRegion, string(tx.Customer.Region))
		b.totalTime += secs
		if !success {
			b.failures++
		}
	}
}

// Snapshot derives the ratio view. Success rate defaults to 1.0 with no
// traffic so a cold provider is not penalized by the router.
func (h *healthTracker) Snapshot() (successRate, avgLatencyMS float64, byNetwork, byMethod, byRegion map[string]float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	successRate = 1.0
	if h.requests > 0 {
		successRate = float64(h.requests-h.failures) / float64(h.requests)
		avgLatencyMS = h.totalTime / float64(h.requests) * 1000
	}
	return successRate, avgLatencyMS, rates(h.byNetwork), rates(h.byMethod), rates(h.byRegion)
}

// Reset zeroes every counter. Used by the scenario injector's reset path.
func (h *healthTracker) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests = 0
	h.failures = 0
	h.totalTime = 0
	h.byNetwork = map[string]*bucket{}
	h.byMethod = map[string]*bucket{}
	h.byRegion = map[string]*bucket{}
}

func (h *healthTracker) dim(m map[string]*bucket, key string) *bucket {
	b, ok := m[key]
	if !ok {
		b = &bucket{}
		m[key] = b
	}
	return b
}

func rates(m map[string]*bucket) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, b := range m {
		if b.requests > 0 {
			out[k] = float64(b.requests-b.failures) / float64(b.requests)
		}
	}
	return out
}
