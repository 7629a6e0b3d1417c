// Package orchestrator drives a transaction through routing, circuit
// breaking, and retry with exponential backoff until it succeeds, exhausts
// its attempt budget, or hits a non-retryable failure.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kestrelpay/kestrel/internal/breaker"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/events"
	"github.com/kestrelpay/kestrel/internal/models"
	"github.com/kestrelpay/kestrel/internal/provider"
	"github.com/kestrelpay/kestrel/internal/router"
)

// finalFailureMessage is the envelope error after the budget is exhausted.
const finalFailureMessage = "Payment failed after all retry attempts"

// Config tunes the retry loop.
type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	AttemptTimeout    time.Duration
	RetryOn           map[models.ErrorCode]bool
}

// DefaultRetryOn is the transient-failure allowlist: only these error codes
// justify another attempt. Circuit rejections and rate limiting are always
// retryable regardless of the allowlist, because switching providers is the
// whole point of both.
func DefaultRetryOn() map[models.ErrorCode]bool {
	return map[models.ErrorCode]bool{
		models.ErrTimeout:             true,
		models.ErrConnectionRefused:   true,
		models.ErrNetworkTimeout:      true,
		models.ErrProviderMaintenance: true,
	}
}

// DefaultConfig returns the standard retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       config.RetryMaxAttempts,
		InitialDelay:      config.RetryInitialDelay,
		BackoffMultiplier: config.RetryBackoffMultiplier,
		MaxDelay:          config.RetryMaxDelay,
		AttemptTimeout:    10 * time.Second,
		RetryOn:           DefaultRetryOn(),
	}
}

// Options shapes a single orchestration run.
type Options struct {
	// PreferredProvider is attempted first when it is registered and can
	// process the transaction. Later attempts always go through the router.
	PreferredProvider string

	// Exclude removes providers from the first selection. Retry runs pass
	// the provider that failed last so the run starts somewhere else.
	Exclude map[string]bool
}

// Orchestrator executes payment attempts against the provider fleet.
type Orchestrator struct {
	registry *provider.Registry
	breakers *breaker.Set
	router   *router.Router
	bus      *events.Bus
	cfg      Config

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. The bus may not be nil; callers that do not
// care about events should pass a fresh one.
func New(registry *provider.Registry, breakers *breaker.Set, rt *router.Router, bus *events.Bus, cfg Config) *Orchestrator {
	if cfg.RetryOn == nil {
		cfg.RetryOn = DefaultRetryOn()
	}
	return &Orchestrator{
		registry: registry,
		breakers: breakers,
		router:   rt,
		bus:      bus,
		cfg:      cfg,
		sleep:    sleepCtx,
	}
}

// Run drives the transaction until success, exhaustion, or a terminal error.
// Each call gets a fresh attempt budget; attempt numbers continue from the
// transaction's history so route records never repeat a number.
func (o *Orchestrator) Run(ctx context.Context, tx *models.Transaction, opts Options) models.PaymentResult {
	exclude := make(map[string]bool, len(opts.Exclude))
	for name, v := range opts.Exclude {
		exclude[name] = v
	}

	for budgetAttempt := 1; budgetAttempt <= o.cfg.MaxAttempts; budgetAttempt++ {
		name, decision := o.choose(tx, exclude, budgetAttempt == 1, opts.PreferredProvider)
		attemptNo := tx.BeginAttempt(name)

		routingEvent := events.EventRoutingDecision
		if attemptNo > 1 {
			routingEvent = events.EventRoutingSwitch
		}
		o.publish(routingEvent, name, tx, map[string]any{"decision": decision})

		cb := o.breakers.Get(name)
		if !cb.Allow() {
			o.recordRejection(tx, name, attemptNo, decision)
			exclude = map[string]bool{name: true}
			continue
		}

		p := o.registry.Get(name)
		start := time.Now()
		res, err := o.process(ctx, p, tx)
		elapsed := time.Since(start)

		if err == nil {
			cb.RecordSuccess()
			return o.succeed(tx, name, attemptNo, decision, res, elapsed)
		}

		cb.RecordFailure()
		code := failureCode(err)
		retryable := o.retryable(code)

		tx.AppendRoute(models.Route{
			Provider:        name,
			AttemptNumber:   attemptNo,
			Status:          models.RouteFailed,
			Timestamp:       time.Now(),
			Reason:          string(code),
			ProcessingTime:  elapsed.Seconds(),
			RetryEligible:   retryable,
			RoutingDecision: &decision,
		})
		o.bus.RecordMetric("payment_failure", 1, map[string]string{"provider": name, "error_code": string(code)})
		o.publish(events.EventPaymentFailure, name, tx, map[string]any{
			"error_code":    string(code),
			"error_message": err.Error(),
			"attempt":       attemptNo,
		})
		slog.Warn("payment attempt failed",
			"transactionID", tx.ID,
			"provider", name,
			"attempt", attemptNo,
			"errorCode", string(code),
		)

		if !retryable || budgetAttempt == o.cfg.MaxAttempts {
			break
		}

		tx.SetStatus(models.StatusRetrying)
		o.publish(events.EventPaymentRetry, name, tx, map[string]any{
			"next_attempt": attemptNo + 1,
			"error_code":   string(code),
		})

		// Rate limiting and circuit rejections switch providers immediately;
		// everything else backs off exponentially.
		if code != models.ErrRateLimited && code != models.ErrCircuitOpen {
			if err := o.sleep(ctx, o.backoff(budgetAttempt)); err != nil {
				break
			}
		}
		exclude = map[string]bool{name: true}
	}

	tx.SetStatus(models.StatusFailed)
	snap := tx.Snapshot()
	o.publish(events.EventPaymentFinalFailure, tx.CurrentProvider(), tx, map[string]any{
		"attempts": snap.Attempts,
	})
	slog.Error("payment failed after all attempts", "transactionID", tx.ID, "attempts", snap.Attempts)

	return models.PaymentResult{Success: false, Transaction: &snap, Error: finalFailureMessage}
}

// choose picks the provider for this attempt. The preferred provider only
// applies to the first attempt of the run, and only when it could plausibly
// take the transaction.
func (o *Orchestrator) choose(tx *models.Transaction, exclude map[string]bool, first bool, preferred string) (string, models.RoutingDecision) {
	if first && preferred != "" && !exclude[preferred] {
		if p := o.registry.Get(preferred); p != nil && p.CanProcess(tx) {
			return preferred, models.RoutingDecision{
				SelectedProvider:     preferred,
				StrategyUsed:         o.router.Strategy(),
				DecisionFactors:      map[string]any{"preferred_provider": true},
				AlternativeProviders: []string{},
				ConfidenceScore:      1.0,
				Timestamp:            time.Now(),
			}
		}
	}
	return o.router.Select(tx, exclude)
}

// recordRejection writes the route for an attempt the breaker refused. The
// rejection burns an attempt but is always retry-eligible.
func (o *Orchestrator) recordRejection(tx *models.Transaction, name string, attemptNo int, decision models.RoutingDecision) {
	tx.AppendRoute(models.Route{
		Provider:        name,
		AttemptNumber:   attemptNo,
		Status:          models.RouteError,
		Timestamp:       time.Now(),
		Reason:          string(models.ErrCircuitOpen),
		RetryEligible:   true,
		RoutingDecision: &decision,
	})
	tx.SetStatus(models.StatusRetrying)
	o.bus.RecordMetric("payment_failure", 1, map[string]string{"provider": name, "error_code": string(models.ErrCircuitOpen)})
	o.publish(events.EventPaymentFailure, name, tx, map[string]any{
		"error_code":    string(models.ErrCircuitOpen),
		"error_message": "circuit breaker rejected the attempt",
		"attempt":       attemptNo,
	})
}

func (o *Orchestrator) succeed(tx *models.Transaction, name string, attemptNo int, decision models.RoutingDecision, res *provider.Result, elapsed time.Duration) models.PaymentResult {
	tx.AppendRoute(models.Route{
		Provider:             name,
		AttemptNumber:        attemptNo,
		Status:               models.RouteSuccess,
		Timestamp:            time.Now(),
		ProcessingTime:       res.ProcessingTime,
		ProviderResponseCode: res.ProviderResponseCode,
		NetworkResponseCode:  res.NetworkResponseCode,
		NetworkLatency:       res.ProcessingTime * 1000,
		RetryEligible:        false,
		RoutingDecision:      &decision,
	})
	tx.MergeMetadata(map[string]any{
		"processing_fee":          res.ProcessingFee,
		"provider_transaction_id": res.ProviderTransactionID,
	})
	tx.SetStatus(models.StatusSuccess)

	o.bus.RecordMetric("payment_success", 1, map[string]string{"provider": name})
	o.bus.RecordMetric("payment_latency", float64(elapsed.Milliseconds()), map[string]string{"provider": name})
	o.publish(events.EventPaymentSuccess, name, tx, map[string]any{"attempt": attemptNo})
	slog.Info("payment succeeded",
		"transactionID", tx.ID,
		"provider", name,
		"attempt", attemptNo,
	)

	snap := tx.Snapshot()
	return models.PaymentResult{Success: true, Transaction: &snap}
}

// process runs one attempt under the per-attempt deadline.
func (o *Orchestrator) process(ctx context.Context, p provider.Provider, tx *models.Transaction) (*provider.Result, error) {
	if o.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AttemptTimeout)
		defer cancel()
	}
	return p.Process(ctx, tx)
}

func (o *Orchestrator) retryable(code models.ErrorCode) bool {
	if code == models.ErrCircuitOpen || code == models.ErrRateLimited {
		return true
	}
	return o.cfg.RetryOn[code]
}

// backoff computes the delay after the given (1-based) failed attempt:
// initial * multiplier^(attempt-1), capped at the maximum.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := float64(o.cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= o.cfg.BackoffMultiplier
	}
	if capped := float64(o.cfg.MaxDelay); d > capped {
		d = capped
	}
	return time.Duration(d)
}

// failureCode maps an attempt error onto the wire taxonomy. Deadline errors
// that escaped the provider untyped count as timeouts.
func failureCode(err error) models.ErrorCode {
	if code := provider.CodeOf(err); code != "" {
		return code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrTimeout
	}
	return models.ErrConnectionRefused
}

func (o *Orchestrator) publish(eventType, providerName string, tx *models.Transaction, data map[string]any) {
	snap := tx.Snapshot()
	o.bus.Publish(events.Event{
		Type:        eventType,
		Timestamp:   time.Now(),
		Provider:    providerName,
		Transaction: &snap,
		Data:        data,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
