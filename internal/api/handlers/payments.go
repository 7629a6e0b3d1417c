package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelpay/kestrel/internal/api/httputil"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/gateway"
	"github.com/kestrelpay/kestrel/internal/models"
)

type instrumentPayload struct {
	Method      string `json:"method" validate:"required"`
	Network     string `json:"network"`
	LastFour    string `json:"last_four" validate:"omitempty,len=4,numeric"`
	ExpiryMonth int    `json:"expiry_month" validate:"omitempty,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"omitempty,min=2000"`
	CountryCode string `json:"country_code" validate:"omitempty,len=2"`
	Issuer      string `json:"issuer"`
	Brand       string `json:"brand"`
}

type customerPayload struct {
	CustomerID         string   `json:"customer_id" validate:"required"`
	Country            string   `json:"country" validate:"omitempty,len=2"`
	Region             string   `json:"region"`
	RiskLevel          string   `json:"risk_level"`
	SuccessfulPayments int      `json:"successful_payments" validate:"gte=0"`
	PreviousFailures   int      `json:"previous_failures" validate:"gte=0"`
	PreferredProviders []string `json:"preferred_providers"`
}

type paymentPayload struct {
	Amount            float64            `json:"amount" validate:"required,gt=0"`
	Currency          string             `json:"currency" validate:"required,len=3,uppercase"`
	TransactionType   string             `json:"transaction_type"`
	PaymentInstrument *instrumentPayload `json:"payment_instrument"`
	CustomerInfo      *customerPayload   `json:"customer_info"`
	MerchantID        string             `json:"merchant_id"`
	OrderID           string             `json:"order_id"`
	RiskScore         float64            `json:"risk_score" validate:"gte=0,lte=1"`
	PreferredProvider string             `json:"preferred_provider"`
	Metadata          map[string]any     `json:"metadata"`
}

// toRequest converts the validated payload into the gateway request.
func (p *paymentPayload) toRequest() gateway.PaymentRequest {
	req := gateway.PaymentRequest{
		Amount:            p.Amount,
		Currency:          models.Currency(p.Currency),
		TransactionType:   models.TransactionType(p.TransactionType),
		MerchantID:        p.MerchantID,
		OrderID:           p.OrderID,
		RiskScore:         p.RiskScore,
		PreferredProvider: p.PreferredProvider,
		Metadata:          p.Metadata,
	}
	if p.PaymentInstrument != nil {
		req.Instrument = &models.PaymentInstrument{
			Method:      models.PaymentMethod(p.PaymentInstrument.Method),
			Network:     models.CardNetwork(p.PaymentInstrument.Network),
			LastFour:    p.PaymentInstrument.LastFour,
			ExpiryMonth: p.PaymentInstrument.ExpiryMonth,
			ExpiryYear:  p.PaymentInstrument.ExpiryYear,
			CountryCode: p.PaymentInstrument.CountryCode,
			Issuer:      p.PaymentInstrument.Issuer,
			Brand:       p.PaymentInstrument.Brand,
		}
	}
	if p.CustomerInfo != nil {
		req.Customer = &models.CustomerInfo{
			CustomerID:         p.CustomerInfo.CustomerID,
			Country:            p.CustomerInfo.Country,
			Region:             models.Region(p.CustomerInfo.Region),
			RiskLevel:          models.RiskLevel(p.CustomerInfo.RiskLevel),
			SuccessfulPayments: p.CustomerInfo.SuccessfulPayments,
			PreviousFailures:   p.CustomerInfo.PreviousFailures,
			PreferredProviders: p.CustomerInfo.PreferredProviders,
		}
	}
	return req
}

// ProcessPayment handles POST /api/payments.
func (d *Deps) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var payload paymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := d.Validate.Struct(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
		return
	}
	if !models.Currency(payload.Currency).Valid() {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest,
			fmt.Sprintf("unsupported currency: %s", payload.Currency))
		return
	}

	result, err := d.Gateway.ProcessPayment(r.Context(), payload.toRequest())
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// GetPayment handles GET /api/payments/{id}.
func (d *Deps) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := d.Gateway.GetTransactionStatus(id)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}

// RetryPayment handles POST /api/payments/{id}/retry.
func (d *Deps) RetryPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := d.Gateway.RetryPayment(r.Context(), id)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// ListPayments handles GET /api/payments.
func (d *Deps) ListPayments(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "page_size", 50)
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	views, total := d.Gateway.ListTransactions((page-1)*pageSize, pageSize)
	httputil.JSONList(w, views, page, pageSize, int64(total))
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
