package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelpay/kestrel/internal/breaker"
	"github.com/kestrelpay/kestrel/internal/events"
	"github.com/kestrelpay/kestrel/internal/models"
	"github.com/kestrelpay/kestrel/internal/provider"
	"github.com/kestrelpay/kestrel/internal/router"
)

// fakeProvider plays back a scripted outcome per Process call.
type fakeProvider struct {
	name   string
	script []error // nil entry means success; past the end keeps succeeding
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Capabilities() models.ProviderCapability {
	return models.ProviderCapability{ProcessingFeePercent: 2.5}
}

func (f *fakeProvider) CanProcess(*models.Transaction) bool { return true }

func (f *fakeProvider) Process(ctx context.Context, tx *models.Transaction) (*provider.Result, error) {
	i := f.calls
	f.calls++
	if i < len(f.script) && f.script[i] != nil {
		return nil, f.script[i]
	}
	return &provider.Result{
		TransactionID:         tx.ID,
		ProviderTransactionID: f.name + "-ptx",
		ProcessingTime:        0.05,
		Provider:              f.name,
		NetworkResponseCode:   "00",
		ProviderResponseCode:  "SUCCESS",
		ProcessingFee:         1.25,
	}, nil
}

func (f *fakeProvider) Health() models.ProviderHealth {
	return models.ProviderHealth{Provider: f.name, SuccessRate: 0.9, AvgLatency: 100, IsHealthy: true}
}

func (f *fakeProvider) Configure(provider.Options) {}

func (f *fakeProvider) SpecificErrors() []models.ErrorCode { return nil }

func (f *fakeProvider) NetworkPreference(models.CardNetwork) float64 { return 0.5 }

func failWith(p string, code models.ErrorCode) error {
	return &provider.Error{Provider: p, Code: code, Message: "simulated " + string(code)}
}

type fixture struct {
	orch     *Orchestrator
	breakers *breaker.Set
	bus      *events.Bus
	sleeps   []time.Duration
}

// newFixture wires an orchestrator over the given providers using the
// failover strategy, so selection order is deterministic in tests.
func newFixture(t *testing.T, cfg Config, providers ...provider.Provider) *fixture {
	t.Helper()
	reg := provider.NewRegistry(providers...)
	set := breaker.NewSet(reg.Names(), breaker.DefaultSettings(), nil)
	rt := router.New(reg, set, models.StrategyFailover)
	bus := events.NewBus()

	f := &fixture{breakers: set, bus: bus}
	f.orch = New(reg, set, rt, bus, cfg)
	f.orch.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = 10 * time.Millisecond
	cfg.MaxDelay = 40 * time.Millisecond
	return cfg
}

func newTx() *models.Transaction {
	return models.NewTransaction("tx-1", 100.0, models.CurrencyUSD, models.TypePayment)
}

func TestFirstAttemptSucceeds(t *testing.T) {
	stripe := &fakeProvider{name: "stripe"}
	f := newFixture(t, fastConfig(), stripe)

	tx := newTx()
	res := f.orch.Run(context.Background(), tx, Options{})

	require.True(t, res.Success)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, models.StatusSuccess, res.Transaction.Status)
	assert.Equal(t, 1, res.Transaction.Attempts)
	require.Len(t, res.Transaction.RouteHistory, 1)
	assert.Equal(t, models.RouteSuccess, res.Transaction.RouteHistory[0].Status)
	assert.Equal(t, 1.25, res.Transaction.Metadata["processing_fee"])
	assert.Equal(t, "stripe-ptx", res.Transaction.Metadata["provider_transaction_id"])
	assert.Empty(t, f.sleeps)
}

func TestPreferredProviderHonored(t *testing.T) {
	stripe := &fakeProvider{name: "stripe"}
	paypal := &fakeProvider{name: "paypal"}
	f := newFixture(t, fastConfig(), stripe, paypal)

	res := f.orch.Run(context.Background(), newTx(), Options{PreferredProvider: "paypal"})

	require.True(t, res.Success)
	assert.Equal(t, "paypal", res.Transaction.Provider)
	assert.Equal(t, 1, paypal.calls)
	assert.Equal(t, 0, stripe.calls)
	require.NotNil(t, res.Transaction.RouteHistory[0].RoutingDecision)
	assert.Equal(t, true, res.Transaction.RouteHistory[0].RoutingDecision.DecisionFactors["preferred_provider"])
}

func TestRetryableFailureSwitchesProvider(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", script: []error{failWith("stripe", models.ErrTimeout)}}
	adyen := &fakeProvider{name: "adyen"}
	f := newFixture(t, fastConfig(), stripe, adyen)

	tx := newTx()
	res := f.orch.Run(context.Background(), tx, Options{})

	require.True(t, res.Success)
	assert.Equal(t, 2, res.Transaction.Attempts)
	require.Len(t, res.Transaction.RouteHistory, 2)

	first := res.Transaction.RouteHistory[0]
	assert.Equal(t, "stripe", first.Provider)
	assert.Equal(t, models.RouteFailed, first.Status)
	assert.Equal(t, "TIMEOUT", first.Reason)
	assert.True(t, first.RetryEligible)

	second := res.Transaction.RouteHistory[1]
	assert.Equal(t, "adyen", second.Provider)
	assert.Equal(t, models.RouteSuccess, second.Status)

	// One backoff between the two attempts.
	require.Len(t, f.sleeps, 1)
	assert.Equal(t, 10*time.Millisecond, f.sleeps[0])
}

func TestTerminalErrorStopsImmediately(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", script: []error{failWith("stripe", models.ErrCardDeclined)}}
	adyen := &fakeProvider{name: "adyen"}
	f := newFixture(t, fastConfig(), stripe, adyen)

	res := f.orch.Run(context.Background(), newTx(), Options{})

	require.False(t, res.Success)
	assert.Equal(t, finalFailureMessage, res.Error)
	assert.Equal(t, models.StatusFailed, res.Transaction.Status)
	assert.Equal(t, 1, res.Transaction.Attempts)
	assert.False(t, res.Transaction.RouteHistory[0].RetryEligible)
	assert.Equal(t, 0, adyen.calls)
}

func TestBudgetExhaustion(t *testing.T) {
	timeout := func(p string) []error {
		return []error{failWith(p, models.ErrNetworkTimeout), failWith(p, models.ErrNetworkTimeout)}
	}
	stripe := &fakeProvider{name: "stripe", script: timeout("stripe")}
	adyen := &fakeProvider{name: "adyen", script: timeout("adyen")}
	paypal := &fakeProvider{name: "paypal", script: timeout("paypal")}
	f := newFixture(t, fastConfig(), stripe, adyen, paypal)

	res := f.orch.Run(context.Background(), newTx(), Options{})

	require.False(t, res.Success)
	assert.Equal(t, finalFailureMessage, res.Error)
	assert.Equal(t, 3, res.Transaction.Attempts)
	assert.Len(t, res.Transaction.RouteHistory, 3)

	// No two consecutive attempts share a provider.
	for i := 1; i < len(res.Transaction.RouteHistory); i++ {
		assert.NotEqual(t, res.Transaction.RouteHistory[i-1].Provider, res.Transaction.RouteHistory[i].Provider)
	}

	// Backoff doubles: 10ms then 20ms.
	require.Len(t, f.sleeps, 2)
	assert.Equal(t, 10*time.Millisecond, f.sleeps[0])
	assert.Equal(t, 20*time.Millisecond, f.sleeps[1])
}

func TestAllBreakersOpenBurnsBudget(t *testing.T) {
	stripe := &fakeProvider{name: "stripe"}
	adyen := &fakeProvider{name: "adyen"}
	f := newFixture(t, fastConfig(), stripe, adyen)
	f.breakers.Get("stripe").ForceOpen()
	f.breakers.Get("adyen").ForceOpen()

	res := f.orch.Run(context.Background(), newTx(), Options{})

	require.False(t, res.Success)
	assert.Equal(t, models.StatusFailed, res.Transaction.Status)
	assert.Len(t, res.Transaction.RouteHistory, 3)
	for _, r := range res.Transaction.RouteHistory {
		assert.Equal(t, models.RouteError, r.Status)
		assert.Equal(t, "CIRCUIT_OPEN", r.Reason)
		assert.True(t, r.RetryEligible)
	}
	assert.Equal(t, 0, stripe.calls+adyen.calls)
	// Circuit rejections never back off.
	assert.Empty(t, f.sleeps)
}

func TestRateLimitedSwitchesWithoutBackoff(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", script: []error{failWith("stripe", models.ErrRateLimited)}}
	adyen := &fakeProvider{name: "adyen"}
	f := newFixture(t, fastConfig(), stripe, adyen)

	res := f.orch.Run(context.Background(), newTx(), Options{})

	require.True(t, res.Success)
	assert.Equal(t, "adyen", res.Transaction.Provider)
	assert.Empty(t, f.sleeps)
}

func TestRetryRunContinuesAttemptNumbering(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", script: []error{failWith("stripe", models.ErrCardDeclined)}}
	adyen := &fakeProvider{name: "adyen"}
	f := newFixture(t, fastConfig(), stripe, adyen)

	tx := newTx()
	first := f.orch.Run(context.Background(), tx, Options{})
	require.False(t, first.Success)
	require.Equal(t, 1, tx.AttemptCount())

	// A retry run gets a fresh budget but keeps numbering, and starts away
	// from the provider that just failed.
	second := f.orch.Run(context.Background(), tx, Options{Exclude: map[string]bool{"stripe": true}})
	require.True(t, second.Success)
	assert.Equal(t, 2, second.Transaction.Attempts)
	require.Len(t, second.Transaction.RouteHistory, 2)
	assert.Equal(t, 1, second.Transaction.RouteHistory[0].AttemptNumber)
	assert.Equal(t, 2, second.Transaction.RouteHistory[1].AttemptNumber)
	assert.Equal(t, "adyen", second.Transaction.RouteHistory[1].Provider)
}

func TestRouteCountMatchesAttempts(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", script: []error{failWith("stripe", models.ErrTimeout)}}
	adyen := &fakeProvider{name: "adyen", script: []error{failWith("adyen", models.ErrTimeout)}}
	f := newFixture(t, fastConfig(), stripe, adyen)

	res := f.orch.Run(context.Background(), newTx(), Options{})
	assert.Equal(t, len(res.Transaction.RouteHistory), res.Transaction.Attempts)
}

func TestEventsPublishedInOrder(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", script: []error{failWith("stripe", models.ErrTimeout)}}
	adyen := &fakeProvider{name: "adyen"}
	f := newFixture(t, fastConfig(), stripe, adyen)

	var types []string
	f.bus.Subscribe(func(ev events.Event) { types = append(types, ev.Type) })

	res := f.orch.Run(context.Background(), newTx(), Options{})
	require.True(t, res.Success)

	want := []string{
		events.EventRoutingDecision,
		events.EventPaymentFailure,
		events.EventPaymentRetry,
		events.EventRoutingSwitch,
		events.EventPaymentSuccess,
	}
	assert.Equal(t, want, types)
}

func TestBackoffFormula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Second
	cfg.BackoffMultiplier = 2.0
	cfg.MaxDelay = 5 * time.Second
	o := &Orchestrator{cfg: cfg}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second}, // capped
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, o.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestFailureCodeMapping(t *testing.T) {
	assert.Equal(t, models.ErrCardDeclined, failureCode(failWith("stripe", models.ErrCardDeclined)))
	assert.Equal(t, models.ErrTimeout, failureCode(context.DeadlineExceeded))
}
