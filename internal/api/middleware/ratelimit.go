package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/kestrelpay/kestrel/internal/api/httputil"
	"github.com/kestrelpay/kestrel/internal/config"
)

// RateLimit caps the inbound request rate across all clients. Requests over
// the budget get a 429 with the standard error envelope.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				httputil.Error(w, http.StatusTooManyRequests, config.ErrorRateLimited,
					"request rate limit exceeded, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
