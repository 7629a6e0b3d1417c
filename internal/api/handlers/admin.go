package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelpay/kestrel/internal/api/httputil"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/models"
	"github.com/kestrelpay/kestrel/internal/provider"
)

type configurePayload struct {
	SuccessRate        *float64 `json:"success_rate" validate:"omitempty,gte=0"`
	AvgLatencyMS       *float64 `json:"avg_latency" validate:"omitempty,gte=0"`
	Maintenance        *bool    `json:"is_maintenance"`
	RateLimitThreshold *int     `json:"rate_limit_threshold" validate:"omitempty,gte=1"`
}

// ConfigureProvider handles POST /api/admin/providers/{name}/configure.
func (d *Deps) ConfigureProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var payload configurePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := d.Validate.Struct(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
		return
	}

	opts := provider.Options{
		SuccessRate:        payload.SuccessRate,
		AvgLatencyMS:       payload.AvgLatencyMS,
		Maintenance:        payload.Maintenance,
		RateLimitThreshold: payload.RateLimitThreshold,
	}
	if err := d.Gateway.ConfigureProvider(name, opts); err != nil {
		writeGatewayError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"provider": name, "status": "configured"})
}

type scenarioPayload struct {
	Scenario string `json:"scenario" validate:"required"`
}

// SimulateScenario handles POST /api/admin/scenario.
func (d *Deps) SimulateScenario(w http.ResponseWriter, r *http.Request) {
	var payload scenarioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := d.Validate.Struct(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
		return
	}

	msg, err := d.Gateway.SimulateScenario(payload.Scenario)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{
		"scenario": payload.Scenario,
		"message":  msg,
	})
}

type strategyPayload struct {
	Strategy string `json:"strategy" validate:"required"`
}

// SetStrategy handles PUT /api/admin/strategy.
func (d *Deps) SetStrategy(w http.ResponseWriter, r *http.Request) {
	var payload strategyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := d.Validate.Struct(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
		return
	}

	if err := d.Gateway.SetRoutingStrategy(models.RoutingStrategy(payload.Strategy)); err != nil {
		writeGatewayError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"strategy": payload.Strategy})
}
