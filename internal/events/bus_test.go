package events

import (
	"testing"
	"time"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus()

	var order []string
	b.Subscribe(func(ev Event) { order = append(order, "first:"+ev.Type) })
	b.Subscribe(func(ev Event) { order = append(order, "second:"+ev.Type) })

	b.Publish(Event{Type: EventPaymentInitiated})

	if len(order) != 2 || order[0] != "first:payment_initiated" || order[1] != "second:payment_initiated" {
		t.Fatalf("delivery order = %v", order)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := NewBus()

	var got time.Time
	b.Subscribe(func(ev Event) { got = ev.Timestamp })

	b.Publish(Event{Type: EventSystemHealth})
	if got.IsZero() {
		t.Error("timestamp not stamped on publish")
	}

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(Event{Type: EventSystemHealth, Timestamp: fixed})
	if !got.Equal(fixed) {
		t.Errorf("explicit timestamp overwritten: %v", got)
	}
}

func TestPanickingObserverIsContained(t *testing.T) {
	b := NewBus()

	b.Subscribe(func(Event) { panic("observer bug") })
	delivered := false
	b.Subscribe(func(Event) { delivered = true })

	b.Publish(Event{Type: EventPaymentSuccess})

	if !delivered {
		t.Error("later observer not reached after panic")
	}
}

func TestMetricHistoryIsBounded(t *testing.T) {
	b := NewBus()
	b.maxHist = 5

	for i := 0; i < 12; i++ {
		b.RecordMetric("payment_latency", float64(i), nil)
	}

	hist := b.Metrics()["payment_latency"]
	if len(hist) != 5 {
		t.Fatalf("history length = %d, want 5", len(hist))
	}
	// Oldest samples are evicted first.
	if hist[0].Value != 7 || hist[4].Value != 11 {
		t.Errorf("history window = [%v .. %v], want [7 .. 11]", hist[0].Value, hist[4].Value)
	}
}

func TestSummaryAggregates(t *testing.T) {
	b := NewBus()

	for _, v := range []float64{10, 20, 30} {
		b.RecordMetric("payment_latency", v, map[string]string{"provider": "stripe"})
	}

	s := b.Summary("payment_latency", time.Minute)
	if s.Count != 3 {
		t.Fatalf("count = %d, want 3", s.Count)
	}
	if s.Min != 10 || s.Max != 30 || s.Total != 60 || s.Avg != 20 {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummaryRespectsWindow(t *testing.T) {
	b := NewBus()
	b.RecordMetric("payment_success", 1, nil)

	// Samples exist but the window is behind them.
	old := b.metrics["payment_success"][0]
	old.Timestamp = time.Now().Add(-time.Hour)
	b.metrics["payment_success"][0] = old

	if s := b.Summary("payment_success", time.Minute); s.Count != 0 {
		t.Errorf("count = %d, want 0 outside window", s.Count)
	}
}

func TestSummaryUnknownMetric(t *testing.T) {
	b := NewBus()
	if s := b.Summary("no_such_metric", time.Minute); s.Count != 0 || s.Total != 0 {
		t.Errorf("summary of unknown metric = %+v", s)
	}
}
