package router

import (
	"context"
	"testing"

	"github.com/kestrelpay/kestrel/internal/breaker"
	"github.com/kestrelpay/kestrel/internal/models"
	"github.com/kestrelpay/kestrel/internal/provider"
)

// stubProvider gives tests full control over health and capability answers.
type stubProvider struct {
	name        string
	successRate float64
	avgLatency  float64
	healthy     bool
	canProcess  bool
	feePercent  float64
	prefs       map[models.CardNetwork]float64
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Capabilities() models.ProviderCapability {
	return models.ProviderCapability{ProcessingFeePercent: s.feePercent}
}

func (s *stubProvider) CanProcess(*models.Transaction) bool { return s.canProcess }

func (s *stubProvider) Process(context.Context, *models.Transaction) (*provider.Result, error) {
	return nil, nil
}

func (s *stubProvider) Health() models.ProviderHealth {
	return models.ProviderHealth{
		Provider:    s.name,
		SuccessRate: s.successRate,
		AvgLatency:  s.avgLatency,
		IsHealthy:   s.healthy,
	}
}

func (s *stubProvider) Configure(provider.Options) {}

func (s *stubProvider) SpecificErrors() []models.ErrorCode { return nil }

func (s *stubProvider) NetworkPreference(n models.CardNetwork) float64 {
	if v, ok := s.prefs[n]; ok {
		return v
	}
	return 0.5
}

func stub(name string, successRate, avgLatency float64) *stubProvider {
	return &stubProvider{
		name:        name,
		successRate: successRate,
		avgLatency:  avgLatency,
		healthy:     true,
		canProcess:  true,
		feePercent:  2.5,
	}
}

func newTestRouter(strategy models.RoutingStrategy, providers ...provider.Provider) (*Router, *breaker.Set) {
	reg := provider.NewRegistry(providers...)
	set := breaker.NewSet(reg.Names(), breaker.DefaultSettings(), nil)
	return New(reg, set, strategy), set
}

func usdTx(amount float64) *models.Transaction {
	return models.NewTransaction("tx-1", amount, models.CurrencyUSD, models.TypePayment)
}

func TestHealthBasedPicksBestScore(t *testing.T) {
	// adyen: 0.9 * 1000 / 150 = 6.0; stripe: 0.85 * 1000 / 200 = 4.25
	r, _ := newTestRouter(models.StrategyHealthBased,
		stub("stripe", 0.85, 200), stub("adyen", 0.9, 150))

	name, d := r.Select(usdTx(100), nil)
	if name != "adyen" {
		t.Fatalf("selected = %s, want adyen", name)
	}
	if d.StrategyUsed != models.StrategyHealthBased {
		t.Errorf("strategy = %s", d.StrategyUsed)
	}
	if len(d.AlternativeProviders) != 1 || d.AlternativeProviders[0] != "stripe" {
		t.Errorf("alternatives = %v, want [stripe]", d.AlternativeProviders)
	}
	if d.ConfidenceScore <= 0 || d.ConfidenceScore > 1 {
		t.Errorf("confidence = %v", d.ConfidenceScore)
	}
}

func TestHealthBasedTieBreaksLexicographically(t *testing.T) {
	r, _ := newTestRouter(models.StrategyHealthBased,
		stub("stripe", 0.9, 100), stub("adyen", 0.9, 100))

	if name, _ := r.Select(usdTx(100), nil); name != "adyen" {
		t.Fatalf("selected = %s, want adyen (lexicographic tie-break)", name)
	}
}

func TestHealthBasedSkipsUnhealthyAndOpen(t *testing.T) {
	a := stub("adyen", 0.9, 100)
	a.healthy = false
	r, set := newTestRouter(models.StrategyHealthBased,
		stub("stripe", 0.85, 200), a, stub("paypal", 0.8, 300))
	set.Get("stripe").ForceOpen()

	name, d := r.Select(usdTx(100), nil)
	if name != "paypal" {
		t.Fatalf("selected = %s, want paypal", name)
	}
	filtered, ok := d.DecisionFactors["eligibility_filtered_out"].([]string)
	if !ok || len(filtered) != 2 {
		t.Errorf("eligibility_filtered_out = %v", d.DecisionFactors["eligibility_filtered_out"])
	}
}

func TestCostOptimizedPicksCheapest(t *testing.T) {
	cheap := stub("razorpay", 0.88, 180)
	cheap.feePercent = 2.0
	expensive := stub("paypal", 0.8, 300)
	expensive.feePercent = 3.5

	r, _ := newTestRouter(models.StrategyCostOptimized, cheap, expensive)

	name, d := r.Select(usdTx(100), nil)
	if name != "razorpay" {
		t.Fatalf("selected = %s, want razorpay", name)
	}

	costs, ok := d.DecisionFactors["estimated_cost"].(map[string]float64)
	if !ok {
		t.Fatalf("estimated_cost missing: %v", d.DecisionFactors)
	}
	if costs["razorpay"] != 2.0 || costs["paypal"] != 3.5 {
		t.Errorf("costs = %v, want razorpay=2.0 paypal=3.5", costs)
	}
	if len(d.AlternativeProviders) != 1 || d.AlternativeProviders[0] != "paypal" {
		t.Errorf("alternatives = %v, want [paypal]", d.AlternativeProviders)
	}
	if want := 1 - 2.0/3.5; d.ConfidenceScore != want {
		t.Errorf("confidence = %v, want %v", d.ConfidenceScore, want)
	}
}

func TestFailoverHonorsPreferenceOrder(t *testing.T) {
	r, set := newTestRouter(models.StrategyFailover,
		stub("stripe", 0.85, 200), stub("adyen", 0.9, 150),
		stub("paypal", 0.8, 300), stub("razorpay", 0.88, 180))

	if name, d := r.Select(usdTx(100), nil); name != "stripe" || d.ConfidenceScore != 1.0 {
		t.Fatalf("selected = %s (confidence %v), want stripe at 1.0", name, d.ConfidenceScore)
	}

	// Open stripe's breaker: failover skips it and picks adyen.
	set.Get("stripe").ForceOpen()
	name, d := r.Select(usdTx(100), nil)
	if name != "adyen" {
		t.Fatalf("selected = %s, want adyen after stripe opened", name)
	}
	if d.ConfidenceScore != 0.75 {
		t.Errorf("confidence = %v, want 0.75", d.ConfidenceScore)
	}
}

func TestRoundRobinRotates(t *testing.T) {
	r, _ := newTestRouter(models.StrategyRoundRobin,
		stub("stripe", 0.85, 200), stub("adyen", 0.9, 150), stub("paypal", 0.8, 300))

	// Cursor advances once per selection over registration order.
	var got []string
	for i := 0; i < 4; i++ {
		name, d := r.Select(usdTx(100), nil)
		got = append(got, name)
		if d.ConfidenceScore != 0.5 {
			t.Errorf("confidence = %v, want 0.5", d.ConfidenceScore)
		}
	}
	want := []string{"adyen", "paypal", "stripe", "adyen"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
}

func TestRoundRobinSkipsWithoutExtraTick(t *testing.T) {
	r, set := newTestRouter(models.StrategyRoundRobin,
		stub("stripe", 0.85, 200), stub("adyen", 0.9, 150), stub("paypal", 0.8, 300))
	set.Get("adyen").ForceOpen()

	// First selection lands on adyen's slot but scans forward to paypal.
	if name, _ := r.Select(usdTx(100), nil); name != "paypal" {
		t.Fatalf("first selection should skip open adyen to paypal, got %s", name)
	}
	// Cursor only consumed one tick, so the next slot is paypal again.
	if name, _ := r.Select(usdTx(100), nil); name != "paypal" {
		t.Fatalf("second selection should start at paypal, got %s", name)
	}
	if name, _ := r.Select(usdTx(100), nil); name != "stripe" {
		t.Fatalf("third selection should be stripe, got %s", name)
	}
}

func TestNetworkOptimizedUsesPreference(t *testing.T) {
	s := stub("stripe", 0.9, 200)
	s.prefs = map[models.CardNetwork]float64{models.NetworkUnionPay: 0.6}
	a := stub("adyen", 0.9, 150)
	a.prefs = map[models.CardNetwork]float64{models.NetworkUnionPay: 0.9}

	r, _ := newTestRouter(models.StrategyCardNetworkOptimized, s, a)

	tx := usdTx(100)
	tx.Instrument = &models.PaymentInstrument{Method: models.MethodCard, Network: models.NetworkUnionPay}
	name, d := r.Select(tx, nil)
	if name != "adyen" {
		t.Fatalf("selected = %s, want adyen", name)
	}
	prefs, ok := d.DecisionFactors["network_preference"].(map[string]float64)
	if !ok || prefs["adyen"] != 0.9 {
		t.Errorf("network_preference = %v", d.DecisionFactors["network_preference"])
	}
}

func TestNetworkOptimizedDegradesWithoutNetwork(t *testing.T) {
	r, _ := newTestRouter(models.StrategyCardNetworkOptimized,
		stub("stripe", 0.85, 200), stub("adyen", 0.9, 150))

	_, d := r.Select(usdTx(100), nil)
	if d.StrategyUsed != models.StrategyHealthBased {
		t.Errorf("strategy = %s, want health_based degrade", d.StrategyUsed)
	}
}

func TestExclusionSetHonored(t *testing.T) {
	r, _ := newTestRouter(models.StrategyHealthBased,
		stub("stripe", 0.85, 200), stub("adyen", 0.9, 150))

	name, _ := r.Select(usdTx(100), map[string]bool{"adyen": true})
	if name != "stripe" {
		t.Fatalf("selected = %s, want stripe with adyen excluded", name)
	}
}

func TestFallbackAlwaysReturnsProvider(t *testing.T) {
	r, set := newTestRouter(models.StrategyHealthBased,
		stub("stripe", 0.85, 200), stub("adyen", 0.9, 150))
	set.Get("stripe").ForceOpen()
	set.Get("adyen").ForceOpen()
	set.Get("adyen").RecordFailure() // adyen now has more failures

	name, d := r.Select(usdTx(100), nil)
	if name != "stripe" {
		t.Fatalf("fallback selected = %s, want stripe (lowest failure count)", name)
	}
	if d.DecisionFactors["fallback"] != true {
		t.Errorf("decision should be flagged fallback: %v", d.DecisionFactors)
	}
}

func TestFallbackWhenNothingCanProcess(t *testing.T) {
	s := stub("stripe", 0.85, 200)
	s.canProcess = false
	a := stub("adyen", 0.9, 150)
	a.canProcess = false

	r, _ := newTestRouter(models.StrategyHealthBased, s, a)

	name, d := r.Select(usdTx(100), nil)
	if name != "stripe" {
		t.Fatalf("fallback selected = %s, want stripe (registry order)", name)
	}
	if d.DecisionFactors["fallback"] != true {
		t.Errorf("decision should be flagged fallback")
	}
}

func TestSetStrategyValidation(t *testing.T) {
	r, _ := newTestRouter(models.StrategyHealthBased, stub("stripe", 0.85, 200))

	if err := r.SetStrategy(models.StrategyCostOptimized); err != nil {
		t.Fatalf("valid strategy rejected: %v", err)
	}
	if got := r.Strategy(); got != models.StrategyCostOptimized {
		t.Errorf("strategy = %s", got)
	}
	if err := r.SetStrategy(models.RoutingStrategy("coin_flip")); err == nil {
		t.Error("invalid strategy accepted")
	}
}
