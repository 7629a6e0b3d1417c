package config

import "errors"

// Sentinel errors for internal use.
var (
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidProvider     = errors.New("invalid provider")
	ErrInvalidStrategy     = errors.New("invalid routing strategy")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
	ErrUnknownScenario     = errors.New("unknown scenario")
	ErrGatewayClosed       = errors.New("gateway is shut down")
)

// Error codes — shared with clients via API responses.
const (
	ErrorInvalidRequest       = "ERROR_INVALID_REQUEST"
	ErrorInvalidConfig        = "ERROR_INVALID_CONFIG"
	ErrorTransactionNotFound  = "ERROR_TRANSACTION_NOT_FOUND"
	ErrorInvalidProvider      = "ERROR_INVALID_PROVIDER"
	ErrorInvalidStrategy      = "ERROR_INVALID_STRATEGY"
	ErrorUnknownScenario      = "ERROR_UNKNOWN_SCENARIO"
	ErrorRateLimited          = "ERROR_RATE_LIMITED"
	ErrorPaymentFailed        = "ERROR_PAYMENT_FAILED"
	ErrorInternal             = "ERROR_INTERNAL"
	ErrorWebsocketUpgrade     = "ERROR_WEBSOCKET_UPGRADE"
	ErrorLoadGenerationFailed = "ERROR_LOAD_GENERATION_FAILED"
)
