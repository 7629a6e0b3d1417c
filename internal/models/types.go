package models

import (
	"sync"
	"time"
)

// PaymentInstrument describes how the customer pays. PAN/CVV are never
// carried; LastFour and issuer metadata are opaque display fields.
type PaymentInstrument struct {
	Method      PaymentMethod `json:"method"`
	Network     CardNetwork   `json:"network,omitempty"`
	LastFour    string        `json:"last_four,omitempty"`
	ExpiryMonth int           `json:"expiry_month,omitempty"`
	ExpiryYear  int           `json:"expiry_year,omitempty"`
	CountryCode string        `json:"country_code,omitempty"`
	Issuer      string        `json:"issuer,omitempty"`
	Brand       string        `json:"brand,omitempty"`
}

// CustomerInfo carries customer context used for routing and risk.
type CustomerInfo struct {
	CustomerID         string    `json:"customer_id"`
	Country            string    `json:"country,omitempty"`
	Region             Region    `json:"region,omitempty"`
	RiskLevel          RiskLevel `json:"risk_level,omitempty"`
	SuccessfulPayments int       `json:"successful_payments"`
	PreviousFailures   int       `json:"previous_failures"`
	PreferredProviders []string  `json:"preferred_providers,omitempty"`
}

// RoutingDecision records why the router picked what it picked.
type RoutingDecision struct {
	SelectedProvider     string          `json:"selected_provider"`
	StrategyUsed         RoutingStrategy `json:"strategy_used"`
	DecisionFactors      map[string]any  `json:"decision_factors"`
	AlternativeProviders []string        `json:"alternative_providers"`
	ConfidenceScore      float64         `json:"confidence_score"`
	Timestamp            time.Time       `json:"timestamp"`
}

// Route is the immutable audit record of one attempt.
type Route struct {
	Provider             string           `json:"provider"`
	AttemptNumber        int              `json:"attempt_number"`
	Status               RouteStatus      `json:"status"`
	Timestamp            time.Time        `json:"timestamp"`
	Reason               string           `json:"reason,omitempty"`
	ProcessingTime       float64          `json:"processing_time,omitempty"` // seconds
	ProviderResponseCode string           `json:"provider_response_code,omitempty"`
	NetworkResponseCode  string           `json:"network_response_code,omitempty"`
	NetworkLatency       float64          `json:"network_latency,omitempty"` // milliseconds
	RetryEligible        bool             `json:"retry_eligible"`
	RoutingDecision      *RoutingDecision `json:"routing_decision,omitempty"`
}

// ProviderCapability is the static contract a provider declares at construction.
type ProviderCapability struct {
	SupportedNetworks    []CardNetwork   `json:"supported_networks"`
	SupportedMethods     []PaymentMethod `json:"supported_methods"`
	SupportedCurrencies  []Currency      `json:"supported_currencies"`
	SupportedRegions     []Region        `json:"supported_regions"`
	MinAmount            float64         `json:"min_amount"`
	MaxAmount            float64         `json:"max_amount"`
	ProcessingFeePercent float64         `json:"processing_fee_percent"`
}

// SupportsNetwork reports whether the capability set includes the network.
func (c ProviderCapability) SupportsNetwork(n CardNetwork) bool {
	for _, v := range c.SupportedNetworks {
		if v == n {
			return true
		}
	}
	return false
}

// SupportsMethod reports whether the capability set includes the method.
func (c ProviderCapability) SupportsMethod(m PaymentMethod) bool {
	for _, v := range c.SupportedMethods {
		if v == m {
			return true
		}
	}
	return false
}

// SupportsCurrency reports whether the capability set includes the currency.
func (c ProviderCapability) SupportsCurrency(cur Currency) bool {
	for _, v := range c.SupportedCurrencies {
		if v == cur {
			return true
		}
	}
	return false
}

// SupportsRegion reports whether the capability set includes the region.
func (c ProviderCapability) SupportsRegion(r Region) bool {
	for _, v := range c.SupportedRegions {
		if v == r {
			return true
		}
	}
	return false
}

// ProviderHealth is a computed view over a provider's rolling counters.
type ProviderHealth struct {
	Provider            string             `json:"provider"`
	SuccessRate         float64            `json:"success_rate"`
	AvgLatency          float64            `json:"avg_latency"` // milliseconds
	CurrentLoad         int                `json:"current_load"`
	IsHealthy           bool               `json:"is_healthy"`
	LastChecked         time.Time          `json:"last_checked"`
	CircuitBreakerOpen  bool               `json:"circuit_breaker_open"`
	LastCircuitFailure  *time.Time         `json:"last_circuit_failure,omitempty"`
	NetworkSuccessRates map[string]float64 `json:"network_success_rates"`
	MethodSuccessRates  map[string]float64 `json:"method_success_rates"`
	RegionSuccessRates  map[string]float64 `json:"region_success_rates"`
}

// Transaction is the unit of orchestration. Identity, economics, instrument
// and customer context are immutable after creation; routing state is
// mutated only through the accessor methods, which serialize access so the
// status endpoints can read while the orchestrator writes.
type Transaction struct {
	mu sync.RWMutex

	ID              string             `json:"id"`
	Amount          float64            `json:"amount"`
	Currency        Currency           `json:"currency"`
	TransactionType TransactionType    `json:"transaction_type"`
	Provider        string             `json:"provider"`
	Status          PaymentStatus      `json:"status"`
	Instrument      *PaymentInstrument `json:"payment_instrument,omitempty"`
	Customer        *CustomerInfo      `json:"customer_info,omitempty"`
	MerchantID      string             `json:"merchant_id,omitempty"`
	OrderID         string             `json:"order_id,omitempty"`
	Attempts        int                `json:"attempts"`
	RouteHistory    []Route            `json:"route_history"`
	Timestamp       time.Time          `json:"timestamp"`
	Metadata        map[string]any     `json:"metadata"`
	RiskScore       float64            `json:"risk_score,omitempty"`
	FraudIndicators []string           `json:"fraud_indicators,omitempty"`
}

// NewTransaction constructs a pending transaction with empty routing state.
func NewTransaction(id string, amount float64, currency Currency, txType TransactionType) *Transaction {
	return &Transaction{
		ID:              id,
		Amount:          amount,
		Currency:        currency,
		TransactionType: txType,
		Status:          StatusPending,
		RouteHistory:    []Route{},
		Timestamp:       time.Now(),
		Metadata:        map[string]any{},
	}
}

// BeginAttempt increments the attempt counter and stamps the provider chosen
// for this attempt. Returns the new attempt number.
func (t *Transaction) BeginAttempt(provider string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Attempts++
	t.Provider = provider
	return t.Attempts
}

// AppendRoute records the outcome of the current attempt. Routes are
// append-only and never mutated afterwards.
func (t *Transaction) AppendRoute(r Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.RouteHistory = append(t.RouteHistory, r)
}

// SetStatus updates the lifecycle status.
func (t *Transaction) SetStatus(s PaymentStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = s
}

// CurrentStatus returns the lifecycle status.
func (t *Transaction) CurrentStatus() PaymentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// CurrentProvider returns the provider stamped for the latest attempt.
func (t *Transaction) CurrentProvider() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Provider
}

// AttemptCount returns the number of attempts made so far.
func (t *Transaction) AttemptCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Attempts
}

// LastRoute returns the most recent route, if any.
func (t *Transaction) LastRoute() (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.RouteHistory) == 0 {
		return Route{}, false
	}
	return t.RouteHistory[len(t.RouteHistory)-1], true
}

// MergeMetadata copies the given keys into the metadata bag.
func (t *Transaction) MergeMetadata(kv map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range kv {
		t.Metadata[k] = v
	}
}

// Snapshot returns a deep copy safe for serialization and event publication
// while the orchestrator may still be mutating the original.
func (t *Transaction) Snapshot() TransactionView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	routes := make([]Route, len(t.RouteHistory))
	copy(routes, t.RouteHistory)

	meta := make(map[string]any, len(t.Metadata))
	for k, v := range t.Metadata {
		meta[k] = v
	}

	var instrument *PaymentInstrument
	if t.Instrument != nil {
		c := *t.Instrument
		instrument = &c
	}
	var customer *CustomerInfo
	if t.Customer != nil {
		c := *t.Customer
		customer = &c
	}

	return TransactionView{
		ID:              t.ID,
		Amount:          t.Amount,
		Currency:        t.Currency,
		TransactionType: t.TransactionType,
		Provider:        t.Provider,
		Status:          t.Status,
		Instrument:      instrument,
		Customer:        customer,
		MerchantID:      t.MerchantID,
		OrderID:         t.OrderID,
		Attempts:        t.Attempts,
		RouteHistory:    routes,
		Timestamp:       t.Timestamp,
		Metadata:        meta,
		RiskScore:       t.RiskScore,
		FraudIndicators: append([]string(nil), t.FraudIndicators...),
	}
}

// TransactionView is the immutable serialization of a Transaction.
type TransactionView struct {
	ID              string             `json:"id"`
	Amount          float64            `json:"amount"`
	Currency        Currency           `json:"currency"`
	TransactionType TransactionType    `json:"transaction_type"`
	Provider        string             `json:"provider"`
	Status          PaymentStatus      `json:"status"`
	Instrument      *PaymentInstrument `json:"payment_instrument,omitempty"`
	Customer        *CustomerInfo      `json:"customer_info,omitempty"`
	MerchantID      string             `json:"merchant_id,omitempty"`
	OrderID         string             `json:"order_id,omitempty"`
	Attempts        int                `json:"attempts"`
	RouteHistory    []Route            `json:"route_history"`
	Timestamp       time.Time          `json:"timestamp"`
	Metadata        map[string]any     `json:"metadata"`
	RiskScore       float64            `json:"risk_score,omitempty"`
	FraudIndicators []string           `json:"fraud_indicators,omitempty"`
}

// PaymentResult is the response envelope for process and retry operations.
type PaymentResult struct {
	Success     bool             `json:"success"`
	Transaction *TransactionView `json:"transaction"`
	Error       string           `json:"error,omitempty"`
}

// LogEntry is one line of the JSONL audit streams. Nullable fields marshal
// as explicit nulls so every line carries the full field set.
type LogEntry struct {
	LogID              string         `json:"log_id"`
	Timestamp          time.Time      `json:"timestamp"`
	Level              string         `json:"level"`
	EventType          string         `json:"event_type"`
	TransactionID      *string        `json:"transaction_id"`
	Provider           *string        `json:"provider"`
	Message            string         `json:"message"`
	Context            map[string]any `json:"context"`
	Metrics            map[string]any `json:"metrics"`
	ErrorDetails       map[string]any `json:"error_details"`
	RoutingContext     map[string]any `json:"routing_context"`
	PerformanceMetrics map[string]any `json:"performance_metrics"`
	BusinessImpact     map[string]any `json:"business_impact"`
}
