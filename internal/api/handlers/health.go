package handlers

import (
	"net/http"

	"github.com/kestrelpay/kestrel/internal/api/httputil"
)

// Health handles GET /api/health: a liveness view of the service itself.
func Health(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	}
}

// ProviderHealth handles GET /api/health/providers.
func (d *Deps) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, d.Gateway.GetProviderHealth())
}

// Metrics handles GET /api/metrics.
func (d *Deps) Metrics(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, d.Gateway.GetMetrics())
}
