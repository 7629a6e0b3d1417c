package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kestrelpay/kestrel/internal/models"
)

// The six audit streams.
const (
	StreamPaymentEvents    = "payment_events"
	StreamRoutingDecisions = "routing_decisions"
	StreamFailureAnalysis  = "failure_analysis"
	StreamPerformance      = "performance_metrics"
	StreamCircuitBreaker   = "circuit_breaker_events"
	StreamSystemHealth     = "system_health"
)

var streamNames = []string{
	StreamPaymentEvents, StreamRoutingDecisions, StreamFailureAnalysis,
	StreamPerformance, StreamCircuitBreaker, StreamSystemHealth,
}

// stream is one JSONL file with serialized writes.
type stream struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func (s *stream) write(entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(entry)
}

// AuditLogger renders bus events into the typed JSONL audit streams. It is
// an observer: write failures are counted and reported via slog, never
// propagated into the payment path.
type AuditLogger struct {
	streams     map[string]*stream
	writeErrors atomic.Int64
}

// NewAuditLogger opens the six streams under dir, creating it if needed.
func NewAuditLogger(dir string) (*AuditLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory %q: %w", dir, err)
	}

	l := &AuditLogger{streams: make(map[string]*stream, len(streamNames))}
	for _, name := range streamNames {
		path := filepath.Join(dir, name+".jsonl")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open audit stream %q: %w", path, err)
		}
		l.streams[name] = &stream{file: f, enc: json.NewEncoder(f)}
	}
	return l, nil
}

// Close flushes and closes every stream.
func (l *AuditLogger) Close() error {
	var firstErr error
	for _, s := range l.streams {
		if s == nil || s.file == nil {
			continue
		}
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WriteErrors returns the count of swallowed write failures.
func (l *AuditLogger) WriteErrors() int64 {
	return l.writeErrors.Load()
}

// Handle routes one event into its stream(s). Registered on the bus.
func (l *AuditLogger) Handle(ev Event) {
	switch ev.Type {
	case EventPaymentInitiated, EventPaymentSuccess, EventPaymentRetry:
		l.emit(StreamPaymentEvents, l.paymentEntry(ev))
	case EventPaymentFailure, EventPaymentFinalFailure:
		l.emit(StreamPaymentEvents, l.paymentEntry(ev))
		l.emit(StreamFailureAnalysis, l.failureEntry(ev))
	case EventRoutingDecision, EventRoutingSwitch:
		l.emit(StreamRoutingDecisions, l.routingEntry(ev))
	case EventCircuitBreaker:
		l.emit(StreamCircuitBreaker, l.breakerEntry(ev))
	case EventPerformanceMetrics:
		l.emit(StreamPerformance, l.genericEntry(ev, "INFO"))
	case EventSystemHealth:
		l.emit(StreamSystemHealth, l.genericEntry(ev, "INFO"))
	}
}

func (l *AuditLogger) emit(streamName string, entry models.LogEntry) {
	if err := l.streams[streamName].write(entry); err != nil {
		l.writeErrors.Add(1)
		slog.Error("failed to write audit log entry",
			"stream", streamName,
			"eventType", entry.EventType,
			"error", err,
		)
	}
}

func newEntry(ev Event, level string) models.LogEntry {
	entry := models.LogEntry{
		LogID:     uuid.NewString(),
		Timestamp: ev.Timestamp,
		Level:     level,
		EventType: ev.Type,
		Context:   map[string]any{},
		Metrics:   map[string]any{},
	}
	if ev.Transaction != nil {
		id := ev.Transaction.ID
		entry.TransactionID = &id
	}
	if ev.Provider != "" {
		p := ev.Provider
		entry.Provider = &p
	}
	return entry
}

// paymentEntry shapes payment lifecycle events with routing context,
// performance metrics, and derived business impact.
func (l *AuditLogger) paymentEntry(ev Event) models.LogEntry {
	level := "INFO"
	switch ev.Type {
	case EventPaymentFailure, EventPaymentRetry:
		level = "WARN"
	case EventPaymentFinalFailure:
		level = "ERROR"
	}

	entry := newEntry(ev, level)
	tx := ev.Transaction
	if tx == nil {
		entry.Message = ev.Type
		return entry
	}

	entry.Message = fmt.Sprintf("%s for transaction %s via %s", ev.Type, tx.ID, ev.Provider)
	entry.Context = paymentContext(tx)
	entry.RoutingContext = routingContext(tx)
	entry.PerformanceMetrics = performanceBlock(tx)
	entry.BusinessImpact = businessImpact(tx, ev.Type)

	if code, ok := ev.Data["error_code"]; ok {
		entry.ErrorDetails = map[string]any{
			"error_code":    code,
			"error_message": ev.Data["error_message"],
		}
	}
	return entry
}

// failureEntry shapes the failure-analysis view of a failed attempt.
func (l *AuditLogger) failureEntry(ev Event) models.LogEntry {
	entry := newEntry(ev, "ERROR")
	tx := ev.Transaction

	entry.Message = fmt.Sprintf("payment failure analysis for %s", ev.Provider)
	if tx != nil {
		entry.Message = fmt.Sprintf("payment failure analysis for transaction %s via %s", tx.ID, ev.Provider)
	}

	ctx := map[string]any{
		"error_code":    ev.Data["error_code"],
		"error_message": ev.Data["error_message"],
		"time_of_day":   ev.Timestamp.Hour(),
		"day_of_week":   ev.Timestamp.Weekday().String(),
	}
	if tx != nil {
		ctx["failure_context"] = paymentContext(tx)
		ctx["attempt_history"] = attemptHistory(tx)
		entry.BusinessImpact = businessImpact(tx, ev.Type)
	}
	entry.Context = ctx
	entry.ErrorDetails = map[string]any{
		"error_code":    ev.Data["error_code"],
		"error_message": ev.Data["error_message"],
	}
	return entry
}

// routingEntry shapes routing decisions and provider switches.
func (l *AuditLogger) routingEntry(ev Event) models.LogEntry {
	entry := newEntry(ev, "INFO")
	entry.Message = fmt.Sprintf("routing decision selected %s", ev.Provider)

	ctx := map[string]any{"selected_provider": ev.Provider}
	if d, ok := ev.Data["decision"].(models.RoutingDecision); ok {
		ctx["alternative_providers"] = d.AlternativeProviders
		ctx["decision_factors"] = d.DecisionFactors
		entry.Metrics["confidence_score"] = d.ConfidenceScore
		entry.Metrics["strategy_used"] = string(d.StrategyUsed)
	}
	if tx := ev.Transaction; tx != nil {
		ctx["transaction_context"] = map[string]any{
			"amount":   tx.Amount,
			"currency": string(tx.Currency),
			"attempt":  tx.Attempts,
		}
	}
	entry.Context = ctx
	return entry
}

// breakerEntry shapes circuit breaker state transitions.
func (l *AuditLogger) breakerEntry(ev Event) models.LogEntry {
	entry := newEntry(ev, "WARN")
	entry.Message = fmt.Sprintf("circuit breaker for %s: %v -> %v",
		ev.Provider, ev.Data["from_state"], ev.Data["to_state"])
	entry.Context = map[string]any{
		"state_change":  fmt.Sprintf("%v->%v", ev.Data["from_state"], ev.Data["to_state"]),
		"failure_count": ev.Data["failure_count"],
		"provider_context": map[string]any{
			"provider": ev.Provider,
		},
		"impact_assessment": ev.Data["impact_assessment"],
	}
	return entry
}

// genericEntry shapes metric and health events: the payload goes straight
// into the metrics block.
func (l *AuditLogger) genericEntry(ev Event, level string) models.LogEntry {
	entry := newEntry(ev, level)
	entry.Message = ev.Type
	for k, v := range ev.Data {
		entry.Metrics[k] = v
	}
	return entry
}

func paymentContext(tx *models.TransactionView) map[string]any {
	ctx := map[string]any{
		"transaction_amount":   tx.Amount,
		"transaction_currency": string(tx.Currency),
		"merchant_id":          tx.MerchantID,
		"attempt_number":       tx.Attempts,
		"total_routes_tried":   len(tx.RouteHistory),
	}
	if tx.Instrument != nil {
		ctx["payment_method"] = string(tx.Instrument.Method)
		ctx["card_network"] = string(tx.Instrument.Network)
	}
	if tx.Customer != nil {
		ctx["customer_region"] = string(tx.Customer.Region)
		ctx["customer_risk_level"] = string(tx.Customer.RiskLevel)
	}
	return ctx
}

func routingContext(tx *models.TransactionView) map[string]any {
	tried := make([]string, 0, len(tx.RouteHistory))
	seen := map[string]bool{}
	switches := 0
	prev := ""
	for _, r := range tx.RouteHistory {
		if !seen[r.Provider] {
			seen[r.Provider] = true
			tried = append(tried, r.Provider)
		}
		if prev != "" && r.Provider != prev {
			switches++
		}
		prev = r.Provider
	}

	return map[string]any{
		"current_provider":  tx.Provider,
		"providers_tried":   tried,
		"provider_switches": switches,
		"route_decisions":   attemptHistory(tx),
	}
}

func attemptHistory(tx *models.TransactionView) []map[string]any {
	out := make([]map[string]any, 0, len(tx.RouteHistory))
	for _, r := range tx.RouteHistory {
		h := map[string]any{
			"provider": r.Provider,
			"attempt":  r.AttemptNumber,
			"status":   string(r.Status),
		}
		if r.Reason != "" {
			h["reason"] = r.Reason
		}
		out = append(out, h)
	}
	return out
}

func performanceBlock(tx *models.TransactionView) map[string]any {
	var total, maxTime float64
	successes, failures := 0, 0
	for _, r := range tx.RouteHistory {
		total += r.ProcessingTime
		if r.ProcessingTime > maxTime {
			maxTime = r.ProcessingTime
		}
		if r.Status == models.RouteSuccess {
			successes++
		} else {
			failures++
		}
	}

	avg := 0.0
	if len(tx.RouteHistory) > 0 {
		avg = total / float64(len(tx.RouteHistory))
	}
	return map[string]any{
		"total_processing_time": total,
		"avg_processing_time":   avg,
		"max_processing_time":   maxTime,
		"successful_attempts":   successes,
		"failed_attempts":       failures,
	}
}

// businessImpact derives the revenue, customer-experience, and cost view of
// a payment event.
func businessImpact(tx *models.TransactionView, eventType string) map[string]any {
	failureEvent := eventType == EventPaymentFailure || eventType == EventPaymentFinalFailure
	failed := tx.Status == models.StatusFailed

	var totalTime float64
	for _, r := range tx.RouteHistory {
		totalTime += r.ProcessingTime
	}

	revenueAtRisk := 0.0
	if failureEvent {
		revenueAtRisk = tx.Amount
	}

	timePenalty := 5 * totalTime
	if timePenalty > 30 {
		timePenalty = 30
	}
	cx := 100 - 10*float64(tx.Attempts-1) - timePenalty
	if failed {
		cx -= 50
	}
	if cx < 0 {
		cx = 0
	}
	if cx > 100 {
		cx = 100
	}

	processingFees := 0.0
	for _, r := range tx.RouteHistory {
		if r.Status == models.RouteSuccess {
			if fee, ok := tx.Metadata["processing_fee"].(float64); ok {
				processingFees = fee
			}
		}
	}
	opportunityCost := 0.0
	if failed {
		opportunityCost = 0.1 * tx.Amount
	}

	return map[string]any{
		"revenue_at_risk":           revenueAtRisk,
		"customer_experience_score": cx,
		"cost_implications": map[string]any{
			"processing_fees":  processingFees,
			"retry_costs":      0.01 * float64(len(tx.RouteHistory)),
			"opportunity_cost": opportunityCost,
		},
	}
}
