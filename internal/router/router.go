package router

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelpay/kestrel/internal/breaker"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/models"
	"github.com/kestrelpay/kestrel/internal/provider"
)

// failoverOrder is the static preference chain for the failover strategy.
var failoverOrder = []string{"stripe", "adyen", "paypal", "razorpay"}

// Router selects the provider for each attempt according to the active
// strategy. Selection is non-blocking: it reads provider health and breaker
// state but never suspends.
type Router struct {
	registry *provider.Registry
	breakers *breaker.Set

	mu       sync.RWMutex
	strategy models.RoutingStrategy

	cursor atomic.Uint64
}

// New creates a router over the given registry and breaker set.
func New(registry *provider.Registry, breakers *breaker.Set, strategy models.RoutingStrategy) *Router {
	return &Router{
		registry: registry,
		breakers: breakers,
		strategy: strategy,
	}
}

// Strategy returns the active routing strategy.
func (r *Router) Strategy() models.RoutingStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategy
}

// SetStrategy switches the active routing strategy.
func (r *Router) SetStrategy(s models.RoutingStrategy) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %s", config.ErrInvalidStrategy, s)
	}
	r.mu.Lock()
	r.strategy = s
	r.mu.Unlock()
	return nil
}

// candidate is one provider's evaluated standing for a transaction.
type candidate struct {
	name         string
	health       models.ProviderHealth
	breakerState string
	canProcess   bool
	excluded     bool
}

func (c candidate) eligible() bool {
	return c.canProcess && !c.excluded && c.breakerState != config.CircuitOpen
}

// Select picks a provider for the transaction, honoring the exclusion set
// (providers used on previous attempts). It always returns a provider; when
// nothing is eligible the decision is flagged as a fallback.
func (r *Router) Select(tx *models.Transaction, exclude map[string]bool) (string, models.RoutingDecision) {
	strategy := r.Strategy()
	cands := r.evaluate(tx, exclude)

	switch strategy {
	case models.StrategyHealthBased:
		return r.selectHealthBased(tx, cands)
	case models.StrategyRoundRobin:
		return r.selectRoundRobin(tx, cands)
	case models.StrategyFailover:
		return r.selectFailover(tx, cands)
	case models.StrategyCardNetworkOptimized:
		return r.selectNetworkOptimized(tx, cands)
	case models.StrategyCostOptimized:
		return r.selectCostOptimized(tx, cands)
	default:
		return r.selectHealthBased(tx, cands)
	}
}

// evaluate computes every provider's standing once, in lexicographic name
// order so ties resolve deterministically.
func (r *Router) evaluate(tx *models.Transaction, exclude map[string]bool) []candidate {
	names := r.registry.Names()
	sort.Strings(names)

	cands := make([]candidate, 0, len(names))
	for _, name := range names {
		p := r.registry.Get(name)
		cands = append(cands, candidate{
			name:         name,
			health:       p.Health(),
			breakerState: r.breakers.Get(name).State(),
			canProcess:   p.CanProcess(tx),
			excluded:     exclude[name],
		})
	}
	return cands
}

func (r *Router) selectHealthBased(tx *models.Transaction, cands []candidate) (string, models.RoutingDecision) {
	best := ""
	bestScore := -1.0
	scores := map[string]float64{}

	for _, c := range cands {
		if !c.eligible() || !c.health.IsHealthy {
			continue
		}
		score := c.health.SuccessRate * 1000 / max(c.health.AvgLatency, 1)
		scores[c.name] = score
		if score > bestScore {
			bestScore = score
			best = c.name
		}
	}

	if best == "" {
		return r.fallback(tx, cands, models.StrategyHealthBased)
	}

	factors := r.baseFactors(cands)
	factors["estimated_latency"] = latencyMap(cands)
	confidence := bestScore / 1000
	if confidence > 1 {
		confidence = 1
	}

	return best, r.decision(best, models.StrategyHealthBased, factors, rankedByScore(scores, best), confidence)
}

func (r *Router) selectRoundRobin(tx *models.Transaction, cands []candidate) (string, models.RoutingDecision) {
	// Registration order, not lexicographic: the cursor rotates over the
	// registry as built. The cursor advances exactly once per selection;
	// skipping ineligible providers does not consume extra ticks.
	names := r.registry.Names()
	byName := map[string]candidate{}
	for _, c := range cands {
		byName[c.name] = c
	}

	start := int(r.cursor.Add(1) % uint64(len(names)))
	for i := 0; i < len(names); i++ {
		name := names[(start+i)%len(names)]
		c := byName[name]
		if c.canProcess && !c.excluded && c.breakerState != config.CircuitOpen {
			factors := r.baseFactors(cands)
			var alts []string
			for _, other := range cands {
				if other.name != name && other.eligible() {
					alts = append(alts, other.name)
				}
			}
			return name, r.decision(name, models.StrategyRoundRobin, factors, alts, 0.5)
		}
	}

	return r.fallback(tx, cands, models.StrategyRoundRobin)
}

func (r *Router) selectFailover(tx *models.Transaction, cands []candidate) (string, models.RoutingDecision) {
	byName := map[string]candidate{}
	for _, c := range cands {
		byName[c.name] = c
	}

	for pos, name := range failoverOrder {
		c, ok := byName[name]
		if !ok {
			continue
		}
		if c.eligible() && c.health.IsHealthy {
			factors := r.baseFactors(cands)
			var alts []string
			for _, rest := range failoverOrder[pos+1:] {
				if other, ok := byName[rest]; ok && other.eligible() && other.health.IsHealthy {
					alts = append(alts, rest)
				}
			}
			confidence := 1 - float64(pos)/float64(len(failoverOrder))
			return name, r.decision(name, models.StrategyFailover, factors, alts, confidence)
		}
	}

	return r.fallback(tx, cands, models.StrategyFailover)
}

func (r *Router) selectNetworkOptimized(tx *models.Transaction, cands []candidate) (string, models.RoutingDecision) {
	if tx.Instrument == nil || tx.Instrument.Network == "" {
		return r.selectHealthBased(tx, cands)
	}
	network := tx.Instrument.Network

	best := ""
	bestScore := -1.0
	scores := map[string]float64{}
	prefs := map[string]float64{}

	for _, c := range cands {
		if !c.eligible() || !c.health.IsHealthy {
			continue
		}
		pref := r.registry.Get(c.name).NetworkPreference(network)
		prefs[c.name] = pref
		score := c.health.SuccessRate * pref
		scores[c.name] = score
		if score > bestScore {
			bestScore = score
			best = c.name
		}
	}

	if best == "" {
		return r.fallback(tx, cands, models.StrategyCardNetworkOptimized)
	}

	factors := r.baseFactors(cands)
	factors["network_preference"] = prefs

	return best, r.decision(best, models.StrategyCardNetworkOptimized, factors, rankedByScore(scores, best), bestScore)
}

func (r *Router) selectCostOptimized(tx *models.Transaction, cands []candidate) (string, models.RoutingDecision) {
	best := ""
	lowest := 0.0
	maxFee := 0.0
	costs := map[string]float64{}

	for _, c := range cands {
		if !c.eligible() || !c.health.IsHealthy {
			continue
		}
		fee := tx.Amount * r.registry.Get(c.name).Capabilities().ProcessingFeePercent / 100
		costs[c.name] = fee
		if fee > maxFee {
			maxFee = fee
		}
		if best == "" || fee < lowest {
			lowest = fee
			best = c.name
		}
	}

	if best == "" {
		return r.fallback(tx, cands, models.StrategyCostOptimized)
	}

	factors := r.baseFactors(cands)
	factors["estimated_cost"] = costs

	confidence := 1.0
	if maxFee > 0 {
		confidence = 1 - lowest/maxFee
	}

	// Alternatives ranked cheapest-first.
	alts := rankedByScoreAsc(costs, best)

	return best, r.decision(best, models.StrategyCostOptimized, factors, alts, confidence)
}

// fallback fires when no provider is eligible: prefer the lowest breaker
// failure count among capability matches, then registry order. The decision
// is always flagged so downstream analysis can spot forced routing.
func (r *Router) fallback(tx *models.Transaction, cands []candidate, strategy models.RoutingStrategy) (string, models.RoutingDecision) {
	best := ""
	bestFailures := -1
	var alts []string

	for _, c := range cands { // lexicographic order: first win keeps ties stable
		if !c.canProcess || c.excluded {
			continue
		}
		failures := r.breakers.Get(c.name).FailureCount()
		if best == "" || failures < bestFailures {
			if best != "" {
				alts = append(alts, best)
			}
			best = c.name
			bestFailures = failures
		} else {
			alts = append(alts, c.name)
		}
	}

	if best == "" {
		// Last resort: first registry-order provider not excluded, else first outright.
		for _, name := range r.registry.Names() {
			if !exclusionOf(cands, name) {
				best = name
				break
			}
		}
		if best == "" {
			best = r.registry.Names()[0]
		}
	}

	factors := r.baseFactors(cands)
	factors["fallback"] = true

	return best, r.decision(best, strategy, factors, alts, 0.1)
}

func exclusionOf(cands []candidate, name string) bool {
	for _, c := range cands {
		if c.name == name {
			return c.excluded
		}
	}
	return false
}

// baseFactors carries the standing shared by all strategies: per-provider
// health, breaker state, and who was filtered out and why.
func (r *Router) baseFactors(cands []candidate) map[string]any {
	health := map[string]float64{}
	states := map[string]string{}
	var filtered []string

	for _, c := range cands {
		health[c.name] = c.health.SuccessRate
		states[c.name] = c.breakerState

		switch {
		case c.excluded:
			filtered = append(filtered, c.name+": used on previous attempt")
		case !c.canProcess:
			filtered = append(filtered, c.name+": capability mismatch")
		case c.breakerState == config.CircuitOpen:
			filtered = append(filtered, c.name+": circuit breaker open")
		case !c.health.IsHealthy:
			filtered = append(filtered, c.name+": unhealthy")
		}
	}

	factors := map[string]any{
		"provider_health":       health,
		"circuit_breaker_state": states,
	}
	if len(filtered) > 0 {
		factors["eligibility_filtered_out"] = filtered
	}
	return factors
}

func (r *Router) decision(selected string, strategy models.RoutingStrategy, factors map[string]any, alternatives []string, confidence float64) models.RoutingDecision {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if alternatives == nil {
		alternatives = []string{}
	}
	return models.RoutingDecision{
		SelectedProvider:     selected,
		StrategyUsed:         strategy,
		DecisionFactors:      factors,
		AlternativeProviders: alternatives,
		ConfidenceScore:      confidence,
		Timestamp:            time.Now(),
	}
}

func latencyMap(cands []candidate) map[string]float64 {
	out := map[string]float64{}
	for _, c := range cands {
		out[c.name] = c.health.AvgLatency
	}
	return out
}

// rankedByScore lists the non-selected candidates by descending score.
func rankedByScore(scores map[string]float64, selected string) []string {
	return rankScores(scores, selected, func(a, b float64) bool { return a > b })
}

// rankedByScoreAsc lists the non-selected candidates by ascending score.
func rankedByScoreAsc(scores map[string]float64, selected string) []string {
	return rankScores(scores, selected, func(a, b float64) bool { return a < b })
}

func rankScores(scores map[string]float64, selected string, better func(a, b float64) bool) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		if name != selected {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] == scores[names[j]] {
			return names[i] < names[j]
		}
		return better(scores[names[i]], scores[names[j]])
	})
	return names
}
