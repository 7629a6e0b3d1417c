package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/models"
)

// SimConfig is the immutable baseline a simulated provider is built from.
// The scenario injector perturbs the live knobs and the reset scenario
// restores this baseline.
type SimConfig struct {
	Name            string
	BaseSuccessRate float64
	BaseLatencyMS   float64
	Capability      models.ProviderCapability
	NetworkPrefs    map[models.CardNetwork]float64
	DefaultPref     float64
	Errors          []models.ErrorCode
}

// SimState is the live, administratively tunable knob set.
type SimState struct {
	SuccessRate        float64 `json:"success_rate"`
	AvgLatencyMS       float64 `json:"avg_latency"`
	Maintenance        bool    `json:"is_maintenance"`
	RateLimitThreshold int     `json:"rate_limit_threshold"`
}

// Latency multipliers by card network and payment method. Fixed tables; the
// jitter factor U(0.7, 1.3) is applied on top.
var networkLatencyMultiplier = map[models.CardNetwork]float64{
	models.NetworkVisa:       1.0,
	models.NetworkMastercard: 1.1,
	models.NetworkAmex:       1.3,
	models.NetworkDiscover:   1.2,
	models.NetworkJCB:        1.4,
	models.NetworkUnionPay:   1.5,
}

var methodLatencyMultiplier = map[models.PaymentMethod]float64{
	models.MethodCard:           1.0,
	models.MethodDigitalWallet:  0.8,
	models.MethodBankTransfer:   2.0,
	models.MethodCryptocurrency: 3.0,
}

// Fee multipliers by card network applied on the provider's base fee percent.
var networkFeeMultiplier = map[models.CardNetwork]float64{
	models.NetworkVisa:       1.0,
	models.NetworkMastercard: 1.05,
	models.NetworkAmex:       1.5,
	models.NetworkDiscover:   1.1,
	models.NetworkJCB:        1.3,
	models.NetworkUnionPay:   1.2,
}

// Simulated is the in-process acquirer surface. It honors the full provider
// contract: capability filtering, fixed-window rate limiting, maintenance
// mode, probabilistic outcomes with contextual error selection, and rolling
// health counters.
type Simulated struct {
	cfg     SimConfig
	limiter *fixedWindow
	tracker *healthTracker

	mu          sync.RWMutex
	successRate float64
	latencyMS   float64
	maintenance bool
	threshold   int

	randFloat func() float64   // test hook
	randIntN  func(n int) int  // test hook
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewSimulated builds a provider from its baseline configuration.
func NewSimulated(cfg SimConfig) *Simulated {
	return &Simulated{
		cfg:         cfg,
		limiter:     newFixedWindow(config.ProviderRateLimitThreshold, config.ProviderRateLimitWindow),
		tracker:     newHealthTracker(),
		successRate: cfg.BaseSuccessRate,
		latencyMS:   cfg.BaseLatencyMS,
		threshold:   config.ProviderRateLimitThreshold,
		randFloat:   rand.Float64,
		randIntN:    rand.Intn,
		sleep:       sleepCtx,
	}
}

func (s *Simulated) Name() string { return s.cfg.Name }

func (s *Simulated) Capabilities() models.ProviderCapability { return s.cfg.Capability }

func (s *Simulated) SpecificErrors() []models.ErrorCode {
	return append([]models.ErrorCode(nil), s.cfg.Errors...)
}

// NetworkPreference returns the provider's declared preference score for the
// network, or its default for networks it has no opinion on.
func (s *Simulated) NetworkPreference(network models.CardNetwork) float64 {
	if score, ok := s.cfg.NetworkPrefs[network]; ok {
		return score
	}
	return s.cfg.DefaultPref
}

// CanProcess is the capability conjunction: currency, amount bounds, method,
// card network (when the instrument is a card), and customer region.
func (s *Simulated) CanProcess(tx *models.Transaction) bool {
	caps := s.cfg.Capability

	if !caps.SupportsCurrency(tx.Currency) {
		return false
	}
	if tx.Amount < caps.MinAmount || tx.Amount > caps.MaxAmount {
		return false
	}
	if tx.Instrument != nil {
		if !caps.SupportsMethod(tx.Instrument.Method) {
			return false
		}
		if tx.Instrument.Method == models.MethodCard && tx.Instrument.Network != "" &&
			!caps.SupportsNetwork(tx.Instrument.Network) {
			return false
		}
	}
	if tx.Customer != nil && tx.Customer.Region != "" && !caps.SupportsRegion(tx.Customer.Region) {
		return false
	}
	return true
}

// Process runs one attempt. Guard failures (unsupported, rate-limited,
// maintenance) fail fast before any simulated work; otherwise the call holds
// for the computed latency and resolves probabilistically.
func (s *Simulated) Process(ctx context.Context, tx *models.Transaction) (*Result, error) {
	start := time.Now()
	s.tracker.ObserveStart(tx)

	if !s.CanProcess(tx) {
		return nil, &Error{
			Provider: s.cfg.Name,
			Code:     models.ErrUnsupportedTransaction,
			Message:  "transaction not supported by provider capabilities",
		}
	}
	if !s.limiter.Acquire() {
		return nil, &Error{
			Provider: s.cfg.Name,
			Code:     models.ErrRateLimited,
			Message:  "rate limit exceeded",
		}
	}
	if s.inMaintenance() {
		return nil, &Error{
			Provider: s.cfg.Name,
			Code:     models.ErrProviderMaintenance,
			Message:  "provider is under maintenance",
		}
	}

	latency := s.processingLatency(tx)
	if err := s.sleep(ctx, latency); err != nil {
		s.tracker.ObserveCompletion(tx, false, time.Since(start))
		return nil, &Error{
			Provider: s.cfg.Name,
			Code:     models.ErrTimeout,
			Message:  "attempt deadline exceeded",
		}
	}

	success := s.randFloat() < s.successProbability(tx)
	elapsed := time.Since(start)
	s.tracker.ObserveCompletion(tx, success, elapsed)

	if !success {
		code := s.contextualError(tx)
		return nil, &Error{
			Provider: s.cfg.Name,
			Code:     code,
			Message:  fmt.Sprintf("payment failed: %s", code),
		}
	}

	return &Result{
		TransactionID:         tx.ID,
		ProviderTransactionID: fmt.Sprintf("%s_%s", s.cfg.Name, strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		ProcessingTime:        elapsed.Seconds(),
		Provider:              s.cfg.Name,
		NetworkResponseCode:   "00",
		ProviderResponseCode:  "SUCCESS",
		ProcessingFee:         s.Fee(tx),
	}, nil
}

// successProbability adjusts the configured success rate for network
// preference, amount band, and customer risk, clamped to [0, 1].
func (s *Simulated) successProbability(tx *models.Transaction) float64 {
	s.mu.RLock()
	p := s.successRate
	s.mu.RUnlock()

	if tx.Instrument != nil && tx.Instrument.Network != "" {
		p *= s.NetworkPreference(tx.Instrument.Network)
	}

	switch {
	case tx.Amount <= 1000:
		// no penalty
	case tx.Amount <= 5000:
		p *= 0.95
	default:
		p *= 0.90
	}

	switch {
	case tx.RiskScore <= 0.5:
		// no penalty
	case tx.RiskScore <= 0.7:
		p *= 0.95
	default:
		p *= 0.85
	}

	if p > 1.0 {
		p = 1.0
	}
	if p < 0 {
		p = 0
	}
	return p
}

// processingLatency derives the simulated hold time from the base latency,
// the network and method multiplier tables, and uniform jitter.
func (s *Simulated) processingLatency(tx *models.Transaction) time.Duration {
	s.mu.RLock()
	base := s.latencyMS / 1000 // seconds
	s.mu.RUnlock()

	if tx.Instrument != nil {
		if tx.Instrument.Network != "" {
			if m, ok := networkLatencyMultiplier[tx.Instrument.Network]; ok {
				base *= m
			}
		}
		if m, ok := methodLatencyMultiplier[tx.Instrument.Method]; ok {
			base *= m
		}
	}

	jitter := 0.7 + s.randFloat()*0.6
	return time.Duration(base * jitter * float64(time.Second))
}

// contextualError picks uniformly from the provider's error profile plus
// context-driven additions.
func (s *Simulated) contextualError(tx *models.Transaction) models.ErrorCode {
	codes := append([]models.ErrorCode(nil), s.cfg.Errors...)

	if tx.Instrument != nil && tx.Instrument.Network != "" {
		switch tx.Instrument.Network {
		case models.NetworkAmex:
			codes = append(codes, models.ErrAuthFailed, models.ErrBlockedCard)
		case models.NetworkJCB, models.NetworkUnionPay:
			codes = append(codes, models.ErrRegionBlocked, models.ErrCurrencyNotSupported)
		}
	}
	if tx.Amount > 5000 {
		codes = append(codes, models.ErrInsufficientFunds, models.ErrFraudDetected)
	}
	if tx.Instrument != nil {
		switch tx.Instrument.Method {
		case models.MethodDigitalWallet:
			codes = append(codes, models.ErrWalletInsufficientBalance, models.ErrWalletSuspended)
		case models.MethodBankTransfer:
			codes = append(codes, models.ErrBankAccountClosed, models.ErrBankTransferLimitExceeded)
		}
	}

	return codes[s.randIntN(len(codes))]
}

// Fee computes the success fee: amount x (base fee x network multiplier) / 100.
func (s *Simulated) Fee(tx *models.Transaction) float64 {
	feePercent := s.cfg.Capability.ProcessingFeePercent
	if tx.Instrument != nil && tx.Instrument.Network != "" {
		if m, ok := networkFeeMultiplier[tx.Instrument.Network]; ok {
			feePercent *= m
		}
	}
	return tx.Amount * feePercent / 100
}

// Health derives the live health view from the rolling counters.
func (s *Simulated) Health() models.ProviderHealth {
	successRate, avgLatency, byNetwork, byMethod, byRegion := s.tracker.Snapshot()

	return models.ProviderHealth{
		Provider:            s.cfg.Name,
		SuccessRate:         successRate,
		AvgLatency:          avgLatency,
		CurrentLoad:         s.limiter.Load(),
		IsHealthy:           successRate > 0.5 && !s.inMaintenance(),
		LastChecked:         time.Now(),
		NetworkSuccessRates: byNetwork,
		MethodSuccessRates:  byMethod,
		RegionSuccessRates:  byRegion,
	}
}

// Configure applies administrative overrides. Nil fields are untouched.
func (s *Simulated) Configure(opts Options) {
	s.mu.Lock()
	if opts.SuccessRate != nil {
		s.successRate = *opts.SuccessRate
	}
	if opts.AvgLatencyMS != nil {
		s.latencyMS = *opts.AvgLatencyMS
	}
	if opts.Maintenance != nil {
		s.maintenance = *opts.Maintenance
	}
	if opts.RateLimitThreshold != nil {
		s.threshold = *opts.RateLimitThreshold
	}
	s.mu.Unlock()

	if opts.RateLimitThreshold != nil {
		s.limiter.SetThreshold(*opts.RateLimitThreshold)
	}
}

// ResetBaseline restores the construction-time knobs: baseline success rate
// and latency, maintenance off, standard rate-limit budget.
func (s *Simulated) ResetBaseline() {
	s.mu.Lock()
	s.successRate = s.cfg.BaseSuccessRate
	s.latencyMS = s.cfg.BaseLatencyMS
	s.maintenance = false
	s.threshold = config.ProviderRateLimitThreshold
	s.mu.Unlock()

	s.limiter.SetThreshold(config.ProviderRateLimitThreshold)
	s.tracker.Reset()
}

// State returns the live knob values.
func (s *Simulated) State() SimState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SimState{
		SuccessRate:        s.successRate,
		AvgLatencyMS:       s.latencyMS,
		Maintenance:        s.maintenance,
		RateLimitThreshold: s.threshold,
	}
}

func (s *Simulated) inMaintenance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
