package loadgen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kestrelpay/kestrel/internal/gateway"
	"github.com/kestrelpay/kestrel/internal/models"
)

// stubProcessor scripts outcomes round-robin across calls.
type stubProcessor struct {
	mu       sync.Mutex
	calls    int
	requests []gateway.PaymentRequest
	// every third call declines, every seventh errors
}

func (s *stubProcessor) ProcessPayment(_ context.Context, req gateway.PaymentRequest) (models.PaymentResult, error) {
	s.mu.Lock()
	n := s.calls
	s.calls++
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if n%7 == 6 {
		return models.PaymentResult{}, errors.New("boom")
	}
	view := &models.TransactionView{ID: "tx", Attempts: 1 + n%3}
	if n%3 == 2 {
		return models.PaymentResult{Success: false, Transaction: view, Error: "declined"}, nil
	}
	return models.PaymentResult{Success: true, Transaction: view}, nil
}

func TestRunCountsOutcomes(t *testing.T) {
	proc := &stubProcessor{}
	g := New(proc, 4)

	s := g.Run(context.Background(), 21)

	if s.Total != 21 {
		t.Fatalf("total = %d, want 21", s.Total)
	}
	if got := s.Approved + s.Declined + s.Errors; got != 21 {
		t.Fatalf("approved+declined+errors = %d, want 21", got)
	}
	if s.Errors != 3 {
		t.Errorf("errors = %d, want 3 (calls 6, 13, 20)", s.Errors)
	}
	if s.TotalAttempts == 0 {
		t.Error("total attempts not aggregated")
	}
	if s.DurationMS < 0 {
		t.Errorf("duration = %v", s.DurationMS)
	}
}

func TestRunZeroCount(t *testing.T) {
	g := New(&stubProcessor{}, 2)
	s := g.Run(context.Background(), 0)
	if s.Total != 0 || s.Approved != 0 || s.Declined != 0 {
		t.Errorf("summary = %+v, want empty", s)
	}
}

func TestCancelledContextSkipsSubmissions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &stubProcessor{}
	g := New(proc, 2)
	s := g.Run(ctx, 5)

	if proc.calls != 0 {
		t.Errorf("processor called %d times with cancelled context", proc.calls)
	}
	if s.Errors != 5 {
		t.Errorf("errors = %d, want 5", s.Errors)
	}
}

func TestRandomRequestsAreProcessable(t *testing.T) {
	g := New(&stubProcessor{}, 1)

	for i := 0; i < 200; i++ {
		req := g.randomRequest()
		if req.Amount <= 0 {
			t.Fatalf("amount = %v", req.Amount)
		}
		if !req.Currency.Valid() {
			t.Fatalf("currency = %s", req.Currency)
		}
		if req.Instrument == nil || req.Customer == nil {
			t.Fatal("instrument/customer missing")
		}
		if req.Instrument.Method == models.MethodCard && req.Instrument.Network == "" {
			t.Fatal("card request without network")
		}
		if req.RiskScore < 0 || req.RiskScore >= 1 {
			t.Fatalf("risk score = %v", req.RiskScore)
		}
	}
}

func TestConcurrencyFloor(t *testing.T) {
	g := New(&stubProcessor{}, 0)
	if g.concurrency != 1 {
		t.Errorf("concurrency = %d, want floor of 1", g.concurrency)
	}
}
