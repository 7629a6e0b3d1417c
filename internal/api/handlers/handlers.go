// Package handlers implements the HTTP surface over the payment gateway.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/kestrelpay/kestrel/internal/api/httputil"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/gateway"
	"github.com/kestrelpay/kestrel/internal/loadgen"
)

// Deps holds the dependencies shared by all handlers.
type Deps struct {
	Gateway  *gateway.Gateway
	Loadgen  *loadgen.Generator
	Validate *validator.Validate
}

// New builds the handler dependency set with a shared validator.
func New(gw *gateway.Gateway, lg *loadgen.Generator) *Deps {
	return &Deps{
		Gateway:  gw,
		Loadgen:  lg,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// writeGatewayError maps gateway sentinel errors onto HTTP status codes and
// wire error codes.
func writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrTransactionNotFound):
		httputil.Error(w, http.StatusNotFound, config.ErrorTransactionNotFound, err.Error())
	case errors.Is(err, config.ErrInvalidProvider):
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidProvider, err.Error())
	case errors.Is(err, config.ErrInvalidStrategy):
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidStrategy, err.Error())
	case errors.Is(err, config.ErrUnknownScenario):
		httputil.Error(w, http.StatusBadRequest, config.ErrorUnknownScenario, err.Error())
	case errors.Is(err, config.ErrGatewayClosed):
		httputil.Error(w, http.StatusServiceUnavailable, config.ErrorInternal, err.Error())
	default:
		httputil.Error(w, http.StatusInternalServerError, config.ErrorInternal, err.Error())
	}
}
