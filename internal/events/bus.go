package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/models"
)

// Event types published on the bus.
const (
	EventPaymentInitiated    = "payment_initiated"
	EventPaymentSuccess      = "payment_success"
	EventPaymentFailure      = "payment_failure"
	EventPaymentFinalFailure = "payment_final_failure"
	EventPaymentRetry        = "payment_retry"
	EventRoutingDecision     = "routing_decision"
	EventRoutingSwitch       = "routing_switch"
	EventCircuitBreaker      = "circuit_breaker_event"
	EventPerformanceMetrics  = "performance_metrics"
	EventSystemHealth        = "system_health"
)

// Event is one lifecycle notification. Transaction is a snapshot taken at
// emission time, so observers can read it without racing the orchestrator.
type Event struct {
	Type        string
	Timestamp   time.Time
	Provider    string
	Transaction *models.TransactionView
	Data        map[string]any
}

// Observer receives every published event. Observers run synchronously on
// the publishing goroutine and must not block.
type Observer func(Event)

// MetricPoint is one recorded metric sample.
type MetricPoint struct {
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MetricSummary aggregates a metric over a recent window.
type MetricSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Total float64 `json:"total"`
}

// Bus fans lifecycle events out to observers and keeps bounded in-memory
// metric history. Publishing is synchronous with respect to the
// orchestrator: an event is fully observed before the next step runs.
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
	metrics   map[string][]MetricPoint
	maxHist   int
}

// NewBus creates a bus with the standard metric history bound.
func NewBus() *Bus {
	return &Bus{
		metrics: map[string][]MetricPoint{},
		maxHist: config.MetricsHistorySize,
	}
}

// Subscribe registers an observer for all subsequent events.
func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Publish delivers the event to every observer. A panicking observer is
// contained and reported; it never fails the payment path.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event observer panicked", "eventType", ev.Type, "panic", r)
				}
			}()
			o(ev)
		}()
	}
}

// RecordMetric appends a sample to the named metric's bounded history.
func (b *Bus) RecordMetric(name string, value float64, tags map[string]string) {
	point := MetricPoint{Value: value, Tags: tags, Timestamp: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()

	hist := append(b.metrics[name], point)
	if len(hist) > b.maxHist {
		hist = hist[len(hist)-b.maxHist:]
	}
	b.metrics[name] = hist
}

// Metrics returns a copy of every metric's history.
func (b *Bus) Metrics() map[string][]MetricPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]MetricPoint, len(b.metrics))
	for name, hist := range b.metrics {
		out[name] = append([]MetricPoint(nil), hist...)
	}
	return out
}

// Summary computes statistics for a metric over the trailing window.
func (b *Bus) Summary(name string, window time.Duration) MetricSummary {
	cutoff := time.Now().Add(-window)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var s MetricSummary
	for _, p := range b.metrics[name] {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		if s.Count == 0 || p.Value < s.Min {
			s.Min = p.Value
		}
		if s.Count == 0 || p.Value > s.Max {
			s.Max = p.Value
		}
		s.Total += p.Value
		s.Count++
	}
	if s.Count > 0 {
		s.Avg = s.Total / float64(s.Count)
	}
	return s
}
