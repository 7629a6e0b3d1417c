// Package gateway is the orchestration facade: it owns the provider fleet,
// circuit breakers, router, event plumbing, and the transaction store, and
// exposes the operations the API surface calls into.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelpay/kestrel/internal/breaker"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/events"
	"github.com/kestrelpay/kestrel/internal/models"
	"github.com/kestrelpay/kestrel/internal/orchestrator"
	"github.com/kestrelpay/kestrel/internal/provider"
	"github.com/kestrelpay/kestrel/internal/router"
)

// retrySuccessfulMessage is returned when a retry targets a transaction that
// already settled.
const retrySuccessfulMessage = "Transaction already successful"

// PaymentRequest is the gateway-level payment submission. HTTP validation
// happens before this type is built.
type PaymentRequest struct {
	Amount            float64
	Currency          models.Currency
	TransactionType   models.TransactionType
	Instrument        *models.PaymentInstrument
	Customer          *models.CustomerInfo
	MerchantID        string
	OrderID           string
	RiskScore         float64
	PreferredProvider string
	Metadata          map[string]any
}

// ProviderStatus is the health view the API exposes per provider, combining
// the provider's own counters with its breaker standing.
type ProviderStatus struct {
	Health  models.ProviderHealth `json:"health"`
	Breaker breaker.Stats         `json:"circuit_breaker"`
}

// Gateway wires the whole payment path together.
type Gateway struct {
	cfg      *config.Config
	registry *provider.Registry
	breakers *breaker.Set
	router   *router.Router
	orch     *orchestrator.Orchestrator
	bus      *events.Bus
	audit    *events.AuditLogger
	hub      *events.Hub

	mu           sync.RWMutex
	transactions map[string]*models.Transaction
	order        []string

	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a gateway over the default provider fleet and starts its
// background loops (event hub, periodic system health).
func New(cfg *config.Config) (*Gateway, error) {
	audit, err := events.NewAuditLogger(cfg.AuditDir)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	registry := provider.DefaultRegistry()

	settings := breaker.Settings{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Timeout:          time.Duration(cfg.BreakerTimeoutS) * time.Second,
		HalfOpenMaxCalls: cfg.BreakerHalfOpenMaxCalls,
	}
	breakers := breaker.NewSet(registry.Names(), settings, func(name, from, to string, failures int) {
		bus.Publish(events.Event{
			Type:     events.EventCircuitBreaker,
			Provider: name,
			Data: map[string]any{
				"from_state":        from,
				"to_state":          to,
				"failure_count":     failures,
				"impact_assessment": breakerImpact(to),
			},
		})
	})

	rt := router.New(registry, breakers, models.RoutingStrategy(cfg.RoutingStrategy))

	orchCfg := orchestrator.Config{
		MaxAttempts:       cfg.MaxAttempts,
		InitialDelay:      time.Duration(cfg.InitialDelayMS) * time.Millisecond,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxDelay:          time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		AttemptTimeout:    time.Duration(cfg.AttemptTimeoutMS) * time.Millisecond,
		RetryOn:           orchestrator.DefaultRetryOn(),
	}

	g := &Gateway{
		cfg:          cfg,
		registry:     registry,
		breakers:     breakers,
		router:       rt,
		orch:         orchestrator.New(registry, breakers, rt, bus, orchCfg),
		bus:          bus,
		audit:        audit,
		hub:          events.NewHub(),
		transactions: map[string]*models.Transaction{},
	}

	bus.Subscribe(audit.Handle)
	bus.Subscribe(g.hub.Observe)

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		g.hub.Run(ctx)
	}()
	go func() {
		defer g.wg.Done()
		g.healthLoop(ctx)
	}()

	return g, nil
}

// Hub exposes the WebSocket hub for the API layer.
func (g *Gateway) Hub() *events.Hub { return g.hub }

// ProcessPayment creates a transaction and drives it to a terminal state.
func (g *Gateway) ProcessPayment(ctx context.Context, req PaymentRequest) (models.PaymentResult, error) {
	if g.closed.Load() {
		return models.PaymentResult{}, config.ErrGatewayClosed
	}
	if req.PreferredProvider != "" && !g.registry.Has(req.PreferredProvider) {
		return models.PaymentResult{}, fmt.Errorf("%w: Invalid provider: %s", config.ErrInvalidProvider, req.PreferredProvider)
	}

	txType := req.TransactionType
	if txType == "" {
		txType = models.TypePayment
	}

	tx := models.NewTransaction(uuid.NewString(), req.Amount, req.Currency, txType)
	tx.Instrument = req.Instrument
	tx.Customer = req.Customer
	tx.MerchantID = req.MerchantID
	tx.OrderID = req.OrderID
	tx.RiskScore = req.RiskScore
	if len(req.Metadata) > 0 {
		tx.MergeMetadata(req.Metadata)
	}

	g.mu.Lock()
	g.transactions[tx.ID] = tx
	g.order = append(g.order, tx.ID)
	g.mu.Unlock()

	snap := tx.Snapshot()
	g.bus.Publish(events.Event{
		Type:        events.EventPaymentInitiated,
		Provider:    req.PreferredProvider,
		Transaction: &snap,
		Data:        map[string]any{"preferred_provider": req.PreferredProvider},
	})
	slog.Info("payment initiated",
		"transactionID", tx.ID,
		"amount", req.Amount,
		"currency", string(req.Currency),
	)

	return g.orch.Run(ctx, tx, orchestrator.Options{PreferredProvider: req.PreferredProvider}), nil
}

// GetTransactionStatus returns a point-in-time view of the transaction.
func (g *Gateway) GetTransactionStatus(id string) (models.TransactionView, error) {
	g.mu.RLock()
	tx, ok := g.transactions[id]
	g.mu.RUnlock()
	if !ok {
		return models.TransactionView{}, fmt.Errorf("%w: %s", config.ErrTransactionNotFound, id)
	}
	return tx.Snapshot(), nil
}

// RetryPayment re-runs a settled-but-failed transaction with a fresh attempt
// budget, starting away from the provider that failed last.
func (g *Gateway) RetryPayment(ctx context.Context, id string) (models.PaymentResult, error) {
	if g.closed.Load() {
		return models.PaymentResult{}, config.ErrGatewayClosed
	}

	g.mu.RLock()
	tx, ok := g.transactions[id]
	g.mu.RUnlock()
	if !ok {
		return models.PaymentResult{}, fmt.Errorf("%w: %s", config.ErrTransactionNotFound, id)
	}

	if tx.CurrentStatus() == models.StatusSuccess {
		snap := tx.Snapshot()
		return models.PaymentResult{Success: false, Transaction: &snap, Error: retrySuccessfulMessage}, nil
	}

	exclude := map[string]bool{}
	if last, ok := tx.LastRoute(); ok {
		exclude[last.Provider] = true
	}

	tx.SetStatus(models.StatusRetrying)
	snap := tx.Snapshot()
	g.bus.Publish(events.Event{
		Type:        events.EventPaymentRetry,
		Provider:    tx.CurrentProvider(),
		Transaction: &snap,
		Data:        map[string]any{"manual_retry": true},
	})
	slog.Info("manual retry requested", "transactionID", id)

	return g.orch.Run(ctx, tx, orchestrator.Options{Exclude: exclude}), nil
}

// GetProviderHealth reports health plus breaker standing for every provider
// and publishes the same view as a performance metrics event.
func (g *Gateway) GetProviderHealth() map[string]ProviderStatus {
	stats := g.breakers.Stats()

	out := make(map[string]ProviderStatus, g.registry.Len())
	summary := map[string]any{}
	for _, name := range g.registry.Names() {
		p := g.registry.Get(name)
		h := p.Health()
		st := stats[name]
		h.CircuitBreakerOpen = st.State == config.CircuitOpen
		h.LastCircuitFailure = st.LastFailureTime

		out[name] = ProviderStatus{Health: h, Breaker: st}
		summary[name] = map[string]any{
			"success_rate":  h.SuccessRate,
			"avg_latency":   h.AvgLatency,
			"breaker_state": st.State,
		}
	}

	g.bus.Publish(events.Event{
		Type: events.EventPerformanceMetrics,
		Data: summary,
	})
	return out
}

// Metrics is the aggregate operational view for the metrics endpoint.
type Metrics struct {
	Transactions map[string]int                   `json:"transactions"`
	Latency      events.MetricSummary             `json:"payment_latency_5m"`
	Successes    events.MetricSummary             `json:"payment_success_5m"`
	Failures     events.MetricSummary             `json:"payment_failure_5m"`
	Providers    map[string]models.ProviderHealth `json:"providers"`
	AuditErrors  int64                            `json:"audit_write_errors"`
}

// GetMetrics aggregates transaction counts, recent metric summaries, and
// per-provider health.
func (g *Gateway) GetMetrics() Metrics {
	g.mu.RLock()
	counts := map[string]int{"total": len(g.transactions)}
	for _, tx := range g.transactions {
		counts[string(tx.CurrentStatus())]++
	}
	g.mu.RUnlock()

	providers := map[string]models.ProviderHealth{}
	for _, name := range g.registry.Names() {
		providers[name] = g.registry.Get(name).Health()
	}

	return Metrics{
		Transactions: counts,
		Latency:      g.bus.Summary("payment_latency", 5*time.Minute),
		Successes:    g.bus.Summary("payment_success", 5*time.Minute),
		Failures:     g.bus.Summary("payment_failure", 5*time.Minute),
		Providers:    providers,
		AuditErrors:  g.audit.WriteErrors(),
	}
}

// ConfigureProvider applies administrative overrides to one provider.
func (g *Gateway) ConfigureProvider(name string, opts provider.Options) error {
	p := g.registry.Get(name)
	if p == nil {
		return fmt.Errorf("%w: Invalid provider: %s", config.ErrInvalidProvider, name)
	}
	p.Configure(opts)
	slog.Info("provider reconfigured", "provider", name)
	return nil
}

// SetRoutingStrategy switches the live routing strategy.
func (g *Gateway) SetRoutingStrategy(s models.RoutingStrategy) error {
	if err := g.router.SetStrategy(s); err != nil {
		return err
	}
	slog.Info("routing strategy changed", "strategy", string(s))
	return nil
}

// RoutingStrategy returns the live routing strategy.
func (g *Gateway) RoutingStrategy() models.RoutingStrategy {
	return g.router.Strategy()
}

// ListTransactions returns a page of transaction views, newest first, plus
// the total count.
func (g *Gateway) ListTransactions(offset, limit int) ([]models.TransactionView, int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	total := len(g.order)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}

	views := make([]models.TransactionView, 0, limit)
	// g.order is append-only, so walking it backwards yields newest first.
	for i := total - 1 - offset; i >= 0 && len(views) < limit; i-- {
		views = append(views, g.transactions[g.order[i]].Snapshot())
	}
	return views, total
}

// healthLoop periodically publishes a system health event.
func (g *Gateway) healthLoop(ctx context.Context) {
	interval := time.Duration(g.cfg.HealthIntervalS) * time.Second
	if interval <= 0 {
		interval = config.SystemHealthInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.publishSystemHealth()
		}
	}
}

func (g *Gateway) publishSystemHealth() {
	healthy := 0
	names := g.registry.Names()
	sort.Strings(names)
	providerStates := map[string]any{}
	for _, name := range names {
		h := g.registry.Get(name).Health()
		if h.IsHealthy {
			healthy++
		}
		providerStates[name] = map[string]any{
			"is_healthy":   h.IsHealthy,
			"success_rate": h.SuccessRate,
		}
	}

	g.mu.RLock()
	txCount := len(g.transactions)
	g.mu.RUnlock()

	g.bus.Publish(events.Event{
		Type: events.EventSystemHealth,
		Data: map[string]any{
			"healthy_providers": healthy,
			"total_providers":   len(names),
			"transaction_count": txCount,
			"providers":         providerStates,
			"websocket_clients": g.hub.ClientCount(),
		},
	})
}

// Close stops background loops and flushes the audit streams. Idempotent.
func (g *Gateway) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	g.cancel()
	g.wg.Wait()
	return g.audit.Close()
}

func breakerImpact(toState string) string {
	switch toState {
	case config.CircuitOpen:
		return "provider removed from routing until recovery probe"
	case config.CircuitHalfOpen:
		return "provider accepting limited recovery probes"
	default:
		return "provider restored to full routing"
	}
}
