package rest

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// NewRouter assembles the HTTP surface: API, health probes and, when
// metrics is non-nil, the Prometheus scrape endpoint.
func NewRouter(trust *TrustHandler, health *HealthHandler, metrics http.Handler, limiter *rate.Limiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	trust.RegisterRoutes(mux)
	health.RegisterRoutes(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	var h http.Handler = mux
	h = RateLimit(limiter)(h)
	h = Recovery(logger)(h)
	h = Logging(logger)(h)
	return h
}
