// Package api assembles the HTTP router over the gateway.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelpay/kestrel/internal/api/handlers"
	"github.com/kestrelpay/kestrel/internal/api/middleware"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/gateway"
	"github.com/kestrelpay/kestrel/internal/loadgen"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Dependencies carries everything the router wires together.
type Dependencies struct {
	Gateway *gateway.Gateway
	Loadgen *loadgen.Generator
	Config  *config.Config
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.RateLimit(deps.Config.APIRateLimit, deps.Config.APIRateBurst))

	h := handlers.New(deps.Gateway, deps.Loadgen)

	slog.Info("router initialized",
		"middleware", []string{"requestLogging", "rateLimit"},
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health(Version))
		r.Get("/health/providers", h.ProviderHealth)
		r.Get("/metrics", h.Metrics)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.ProcessPayment)
			r.Get("/", h.ListPayments)
			r.Get("/{id}", h.GetPayment)
			r.Post("/{id}/retry", h.RetryPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/providers/{name}/configure", h.ConfigureProvider)
			r.Post("/scenario", h.SimulateScenario)
			r.Put("/strategy", h.SetStrategy)
		})

		r.Post("/simulate/batch", h.SimulateBatch)
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Gateway.Hub().ServeWS(w, r); err != nil {
			slog.Error("websocket upgrade failed", "error", err)
		}
	})

	return r
}
