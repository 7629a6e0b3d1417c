package models

// Currency is the closed set of settlement currencies.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencySGD Currency = "SGD"
	CurrencyMYR Currency = "MYR"
	CurrencyTHB Currency = "THB"
	CurrencyIDR Currency = "IDR"
	CurrencyVND Currency = "VND"
	CurrencyPHP Currency = "PHP"
)

// Currencies lists every supported currency.
var Currencies = []Currency{
	CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencySGD, CurrencyMYR,
	CurrencyTHB, CurrencyIDR, CurrencyVND, CurrencyPHP,
}

// Valid reports whether c is a recognized currency.
func (c Currency) Valid() bool {
	for _, v := range Currencies {
		if c == v {
			return true
		}
	}
	return false
}

// Region is the closed set of customer regions.
type Region string

const (
	RegionNorthAmerica  Region = "north_america"
	RegionEurope        Region = "europe"
	RegionAsiaPacific   Region = "asia_pacific"
	RegionSoutheastAsia Region = "southeast_asia"
	RegionLatinAmerica  Region = "latin_america"
	RegionMiddleEast    Region = "middle_east"
	RegionAfrica        Region = "africa"
)

// Regions lists every recognized region.
var Regions = []Region{
	RegionNorthAmerica, RegionEurope, RegionAsiaPacific, RegionSoutheastAsia,
	RegionLatinAmerica, RegionMiddleEast, RegionAfrica,
}

// PaymentMethod is the closed set of instrument methods.
type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodDigitalWallet  PaymentMethod = "digital_wallet"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodCryptocurrency PaymentMethod = "cryptocurrency"
	MethodBuyNowPayLater PaymentMethod = "buy_now_pay_later"
)

// PaymentMethods lists every recognized payment method.
var PaymentMethods = []PaymentMethod{
	MethodCard, MethodDigitalWallet, MethodBankTransfer,
	MethodCryptocurrency, MethodBuyNowPayLater,
}

// CardNetwork is the closed set of card networks.
type CardNetwork string

const (
	NetworkVisa       CardNetwork = "visa"
	NetworkMastercard CardNetwork = "mastercard"
	NetworkAmex       CardNetwork = "amex"
	NetworkDiscover   CardNetwork = "discover"
	NetworkJCB        CardNetwork = "jcb"
	NetworkDiners     CardNetwork = "diners"
	NetworkUnionPay   CardNetwork = "unionpay"
)

// CardNetworks lists every recognized card network.
var CardNetworks = []CardNetwork{
	NetworkVisa, NetworkMastercard, NetworkAmex, NetworkDiscover,
	NetworkJCB, NetworkDiners, NetworkUnionPay,
}

// RiskLevel classifies a customer's fraud risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// TransactionType is the closed set of transaction kinds.
type TransactionType string

const (
	TypePayment       TransactionType = "payment"
	TypeRefund        TransactionType = "refund"
	TypeAuthorization TransactionType = "authorization"
	TypeCapture       TransactionType = "capture"
	TypeVoid          TransactionType = "void"
)

// PaymentStatus is the transaction lifecycle status.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusRetrying  PaymentStatus = "retrying"
	StatusSuccess   PaymentStatus = "success"
	StatusFailed    PaymentStatus = "failed"
	StatusTimeout   PaymentStatus = "timeout"
	StatusCancelled PaymentStatus = "cancelled"
	StatusRefunded  PaymentStatus = "refunded"
)

// RouteStatus is the outcome of one attempt.
type RouteStatus string

const (
	RouteSuccess RouteStatus = "success"
	RouteFailed  RouteStatus = "failed"
	RouteError   RouteStatus = "error"
)

// RoutingStrategy selects the provider-ranking algorithm.
type RoutingStrategy string

const (
	StrategyHealthBased          RoutingStrategy = "health_based"
	StrategyRoundRobin           RoutingStrategy = "round_robin"
	StrategyFailover             RoutingStrategy = "failover"
	StrategyCostOptimized        RoutingStrategy = "cost_optimized"
	StrategyCardNetworkOptimized RoutingStrategy = "card_network_optimized"
)

// RoutingStrategies lists every recognized strategy.
var RoutingStrategies = []RoutingStrategy{
	StrategyHealthBased, StrategyRoundRobin, StrategyFailover,
	StrategyCostOptimized, StrategyCardNetworkOptimized,
}

// Valid reports whether s is a recognized routing strategy.
func (s RoutingStrategy) Valid() bool {
	for _, v := range RoutingStrategies {
		if s == v {
			return true
		}
	}
	return false
}

// ErrorCode is the wire-level error taxonomy for provider failures.
type ErrorCode string

const (
	// Network
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrConnectionRefused  ErrorCode = "CONNECTION_REFUSED"
	ErrSSLHandshake       ErrorCode = "SSL_HANDSHAKE_FAILED"
	ErrDNSResolution      ErrorCode = "DNS_RESOLUTION_FAILED"
	ErrNetworkTimeout     ErrorCode = "NETWORK_TIMEOUT"
	ErrNetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"

	// Instrument / authorization
	ErrCardDeclined      ErrorCode = "CARD_DECLINED"
	ErrInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrAuthFailed        ErrorCode = "AUTHENTICATION_FAILED"
	ErrBlockedCard       ErrorCode = "BLOCKED_CARD"
	ErrExpiredCard       ErrorCode = "EXPIRED_CARD"
	ErrInvalidCardNumber ErrorCode = "INVALID_CARD_NUMBER"
	ErrInvalidCVV        ErrorCode = "INVALID_CVV"
	ErrIssuerUnavailable ErrorCode = "ISSUER_UNAVAILABLE"

	// Policy / compliance
	ErrAccountRestricted    ErrorCode = "ACCOUNT_RESTRICTED"
	ErrCurrencyNotSupported ErrorCode = "CURRENCY_NOT_SUPPORTED"
	ErrRegionBlocked        ErrorCode = "REGION_BLOCKED"
	ErrComplianceViolation  ErrorCode = "COMPLIANCE_VIOLATION"
	ErrFraudDetected        ErrorCode = "FRAUD_DETECTED"
	ErrDuplicateTransaction ErrorCode = "DUPLICATE_TRANSACTION"

	// Method-specific
	ErrWalletInsufficientBalance ErrorCode = "WALLET_INSUFFICIENT_BALANCE"
	ErrWalletSuspended           ErrorCode = "WALLET_SUSPENDED"
	ErrBankAccountClosed         ErrorCode = "BANK_ACCOUNT_CLOSED"
	ErrBankTransferLimitExceeded ErrorCode = "BANK_TRANSFER_LIMIT_EXCEEDED"

	// Provider / system
	ErrRateLimited            ErrorCode = "RATE_LIMITED"
	ErrProviderMaintenance    ErrorCode = "PROVIDER_MAINTENANCE"
	ErrUnsupportedTransaction ErrorCode = "UNSUPPORTED_TRANSACTION"

	// Synthesized by the orchestrator when a breaker rejects the call.
	ErrCircuitOpen ErrorCode = "CIRCUIT_OPEN"
)
