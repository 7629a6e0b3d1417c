package provider

import (
	"context"
	"fmt"

	"github.com/kestrelpay/kestrel/internal/models"
)

// Provider is an upstream acquirer surface. Implementations declare static
// capabilities, report live health, and process one attempt at a time.
type Provider interface {
	Name() string
	Capabilities() models.ProviderCapability
	CanProcess(tx *models.Transaction) bool
	Process(ctx context.Context, tx *models.Transaction) (*Result, error)
	Health() models.ProviderHealth
	Configure(opts Options)
	SpecificErrors() []models.ErrorCode
	NetworkPreference(network models.CardNetwork) float64
}

// Result is a successful provider response.
type Result struct {
	TransactionID         string  `json:"transaction_id"`
	ProviderTransactionID string  `json:"provider_transaction_id"`
	ProcessingTime        float64 `json:"processing_time"` // seconds
	Provider              string  `json:"provider"`
	NetworkResponseCode   string  `json:"network_response_code"`
	ProviderResponseCode  string  `json:"provider_response_code"`
	ProcessingFee         float64 `json:"processing_fee"`
}

// Error is a typed provider failure carrying the wire error code.
type Error struct {
	Provider string
	Code     models.ErrorCode
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

// CodeOf extracts the wire error code from a provider error, or empty.
func CodeOf(err error) models.ErrorCode {
	if pe, ok := err.(*Error); ok {
		return pe.Code
	}
	return ""
}

// Options carries administrative overrides applied by configure_provider and
// the scenario injector. Nil fields are left unchanged.
type Options struct {
	SuccessRate        *float64 `json:"success_rate,omitempty"`
	AvgLatencyMS       *float64 `json:"avg_latency,omitempty"`
	Maintenance        *bool    `json:"is_maintenance,omitempty"`
	RateLimitThreshold *int     `json:"rate_limit_threshold,omitempty"`
}

// Registry is the ordered provider catalog. It is built once at gateway
// startup and read-only afterwards; registration order is the tie-break
// order of last resort for routing fallbacks.
type Registry struct {
	names     []string
	providers map[string]Provider
}

// NewRegistry builds a registry preserving registration order.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.names = append(r.names, p.Name())
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the named provider, or nil if unknown.
func (r *Registry) Get(name string) Provider {
	return r.providers[name]
}

// Has reports whether a provider is registered under the name.
func (r *Registry) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.names)
}
