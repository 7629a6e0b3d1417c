package provider

import "github.com/kestrelpay/kestrel/internal/models"

// NewStripe builds the stripe provider: broad card coverage, strong on
// visa/mastercard, no unionpay or diners.
func NewStripe() *Simulated {
	return NewSimulated(SimConfig{
		Name:            "stripe",
		BaseSuccessRate: 0.85,
		BaseLatencyMS:   200,
		Capability: models.ProviderCapability{
			SupportedNetworks: []models.CardNetwork{
				models.NetworkVisa, models.NetworkMastercard, models.NetworkAmex,
				models.NetworkDiscover, models.NetworkJCB,
			},
			SupportedMethods: []models.PaymentMethod{
				models.MethodCard, models.MethodDigitalWallet, models.MethodBankTransfer,
			},
			SupportedCurrencies: []models.Currency{
				models.CurrencyUSD, models.CurrencyEUR, models.CurrencyGBP,
				models.CurrencySGD, models.CurrencyMYR,
			},
			SupportedRegions: []models.Region{
				models.RegionNorthAmerica, models.RegionEurope,
				models.RegionAsiaPacific, models.RegionSoutheastAsia,
			},
			MinAmount:            0.50,
			MaxAmount:            999999.99,
			ProcessingFeePercent: 2.9,
		},
		NetworkPrefs: map[models.CardNetwork]float64{
			models.NetworkVisa:       1.0,
			models.NetworkMastercard: 0.98,
			models.NetworkAmex:       0.85,
			models.NetworkDiscover:   0.95,
			models.NetworkJCB:        0.80,
			models.NetworkDiners:     0.70,
			models.NetworkUnionPay:   0.60,
		},
		DefaultPref: 0.5,
		Errors: []models.ErrorCode{
			models.ErrCardDeclined, models.ErrInsufficientFunds, models.ErrTimeout,
			models.ErrInvalidCardNumber, models.ErrExpiredCard, models.ErrInvalidCVV,
			models.ErrFraudDetected,
		},
	})
}

// NewAdyen builds the adyen provider: widest network, currency and region
// coverage with the best baseline success rate.
func NewAdyen() *Simulated {
	return NewSimulated(SimConfig{
		Name:            "adyen",
		BaseSuccessRate: 0.90,
		BaseLatencyMS:   150,
		Capability: models.ProviderCapability{
			SupportedNetworks: []models.CardNetwork{
				models.NetworkVisa, models.NetworkMastercard, models.NetworkAmex,
				models.NetworkDiscover, models.NetworkJCB, models.NetworkDiners,
				models.NetworkUnionPay,
			},
			SupportedMethods: []models.PaymentMethod{
				models.MethodCard, models.MethodDigitalWallet,
				models.MethodBankTransfer, models.MethodBuyNowPayLater,
			},
			SupportedCurrencies: []models.Currency{
				models.CurrencyUSD, models.CurrencyEUR, models.CurrencyGBP,
				models.CurrencySGD, models.CurrencyMYR, models.CurrencyTHB,
				models.CurrencyIDR, models.CurrencyVND, models.CurrencyPHP,
			},
			SupportedRegions: []models.Region{
				models.RegionNorthAmerica, models.RegionEurope,
				models.RegionAsiaPacific, models.RegionSoutheastAsia,
				models.RegionLatinAmerica, models.RegionMiddleEast,
			},
			MinAmount:            0.01,
			MaxAmount:            1000000.00,
			ProcessingFeePercent: 2.5,
		},
		NetworkPrefs: map[models.CardNetwork]float64{
			models.NetworkVisa:       1.0,
			models.NetworkMastercard: 1.0,
			models.NetworkAmex:       0.95,
			models.NetworkDiscover:   0.90,
			models.NetworkJCB:        0.95,
			models.NetworkDiners:     0.85,
			models.NetworkUnionPay:   0.90,
		},
		DefaultPref: 0.7,
		Errors: []models.ErrorCode{
			models.ErrAuthFailed, models.ErrBlockedCard, models.ErrTimeout,
			models.ErrNetworkUnavailable, models.ErrIssuerUnavailable,
			models.ErrCurrencyNotSupported,
		},
	})
}

// NewPayPal builds the paypal provider: wallet-first, higher fee, tighter
// amount ceiling.
func NewPayPal() *Simulated {
	return NewSimulated(SimConfig{
		Name:            "paypal",
		BaseSuccessRate: 0.80,
		BaseLatencyMS:   300,
		Capability: models.ProviderCapability{
			SupportedNetworks: []models.CardNetwork{
				models.NetworkVisa, models.NetworkMastercard, models.NetworkAmex,
				models.NetworkDiscover,
			},
			SupportedMethods: []models.PaymentMethod{
				models.MethodDigitalWallet, models.MethodCard,
				models.MethodBankTransfer, models.MethodBuyNowPayLater,
			},
			SupportedCurrencies: []models.Currency{
				models.CurrencyUSD, models.CurrencyEUR, models.CurrencyGBP,
				models.CurrencySGD, models.CurrencyMYR, models.CurrencyTHB,
			},
			SupportedRegions: []models.Region{
				models.RegionNorthAmerica, models.RegionEurope,
				models.RegionAsiaPacific, models.RegionSoutheastAsia,
				models.RegionLatinAmerica,
			},
			MinAmount:            1.00,
			MaxAmount:            60000.00,
			ProcessingFeePercent: 3.49,
		},
		NetworkPrefs: map[models.CardNetwork]float64{
			models.NetworkVisa:       0.95,
			models.NetworkMastercard: 0.95,
			models.NetworkAmex:       0.90,
			models.NetworkDiscover:   0.85,
			models.NetworkJCB:        0.70,
			models.NetworkDiners:     0.60,
			models.NetworkUnionPay:   0.50,
		},
		DefaultPref: 0.4,
		Errors: []models.ErrorCode{
			models.ErrAccountRestricted, models.ErrCurrencyNotSupported,
			models.ErrTimeout, models.ErrWalletInsufficientBalance,
			models.ErrWalletSuspended, models.ErrFraudDetected,
		},
	})
}

// NewRazorpay builds the razorpay provider: Southeast Asia focus, lowest fee.
func NewRazorpay() *Simulated {
	return NewSimulated(SimConfig{
		Name:            "razorpay",
		BaseSuccessRate: 0.88,
		BaseLatencyMS:   180,
		Capability: models.ProviderCapability{
			SupportedNetworks: []models.CardNetwork{
				models.NetworkVisa, models.NetworkMastercard, models.NetworkAmex,
				models.NetworkJCB, models.NetworkUnionPay,
			},
			SupportedMethods: []models.PaymentMethod{
				models.MethodCard, models.MethodDigitalWallet,
				models.MethodBankTransfer, models.MethodBuyNowPayLater,
			},
			SupportedCurrencies: []models.Currency{
				models.CurrencySGD, models.CurrencyMYR, models.CurrencyTHB,
				models.CurrencyIDR, models.CurrencyVND, models.CurrencyPHP,
				models.CurrencyUSD, models.CurrencyEUR,
			},
			SupportedRegions: []models.Region{
				models.RegionSoutheastAsia, models.RegionAsiaPacific,
				models.RegionNorthAmerica, models.RegionEurope,
			},
			MinAmount:            0.10,
			MaxAmount:            500000.00,
			ProcessingFeePercent: 2.0,
		},
		NetworkPrefs: map[models.CardNetwork]float64{
			models.NetworkVisa:       0.98,
			models.NetworkMastercard: 0.96,
			models.NetworkUnionPay:   0.92,
			models.NetworkJCB:        0.90,
			models.NetworkAmex:       0.75,
			models.NetworkDiscover:   0.70,
			models.NetworkDiners:     0.65,
		},
		DefaultPref: 0.5,
		Errors: []models.ErrorCode{
			models.ErrRegionBlocked, models.ErrComplianceViolation,
			models.ErrTimeout, models.ErrCurrencyNotSupported,
			models.ErrBankTransferLimitExceeded, models.ErrNetworkTimeout,
		},
	})
}

// DefaultRegistry builds the standard four-provider catalog in failover
// preference order.
func DefaultRegistry() *Registry {
	return NewRegistry(NewStripe(), NewAdyen(), NewPayPal(), NewRazorpay())
}
