package gateway

import (
	"fmt"
	"log/slog"

	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/provider"
)

// Scenario names accepted by SimulateScenario.
const (
	ScenarioStripeMaintenance  = "stripe_maintenance"
	ScenarioAdyenHighLatency   = "adyen_high_latency"
	ScenarioPayPalLowSuccess   = "paypal_low_success"
	ScenarioRazorpayRateLimit  = "razorpay_rate_limit"
	ScenarioMassFailure        = "mass_failure"
	ScenarioCircuitBreakerTest = "circuit_breaker_test"
	ScenarioResetAll           = "reset_all"
)

// Scenarios lists every recognized scenario name.
var Scenarios = []string{
	ScenarioStripeMaintenance, ScenarioAdyenHighLatency, ScenarioPayPalLowSuccess,
	ScenarioRazorpayRateLimit, ScenarioMassFailure, ScenarioCircuitBreakerTest,
	ScenarioResetAll,
}

// SimulateScenario injects a named degradation into the provider fleet and
// returns a human-readable description of what changed.
func (g *Gateway) SimulateScenario(name string) (string, error) {
	msg := ""
	switch name {
	case ScenarioStripeMaintenance:
		on := true
		g.registry.Get("stripe").Configure(provider.Options{Maintenance: &on})
		msg = "Stripe set to maintenance mode"

	case ScenarioAdyenHighLatency:
		latency := 2000.0
		g.registry.Get("adyen").Configure(provider.Options{AvgLatencyMS: &latency})
		msg = "Adyen latency raised to 2000ms"

	case ScenarioPayPalLowSuccess:
		rate := 0.3
		g.registry.Get("paypal").Configure(provider.Options{SuccessRate: &rate})
		msg = "PayPal success rate dropped to 30%"

	case ScenarioRazorpayRateLimit:
		threshold := 1
		g.registry.Get("razorpay").Configure(provider.Options{RateLimitThreshold: &threshold})
		msg = "Razorpay rate limit threshold dropped to 1 request per window"

	case ScenarioMassFailure:
		rate := 0.1
		for _, pname := range g.registry.Names() {
			g.registry.Get(pname).Configure(provider.Options{SuccessRate: &rate})
		}
		msg = "All providers degraded to 10% success rate"

	case ScenarioCircuitBreakerTest:
		g.breakers.Get("stripe").ForceOpen()
		msg = "Circuit breaker for Stripe forced to OPEN state"

	case ScenarioResetAll:
		for _, pname := range g.registry.Names() {
			if sim, ok := g.registry.Get(pname).(baselineResetter); ok {
				sim.ResetBaseline()
			}
		}
		g.breakers.ForceCloseAll()
		msg = "All providers restored to baseline and circuit breakers closed"

	default:
		return "", fmt.Errorf("%w: Unknown scenario: %s", config.ErrUnknownScenario, name)
	}

	slog.Warn("scenario injected", "scenario", name, "effect", msg)
	return msg, nil
}

// baselineResetter is implemented by providers whose live knobs can be
// restored to their construction-time baseline.
type baselineResetter interface {
	ResetBaseline()
}
