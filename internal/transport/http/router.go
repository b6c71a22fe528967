// Package httptransport assembles the HTTP surface: common middleware,
// health and metrics endpoints, and the per-feature handler mounts.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rostersync/internal/platform/metrics"
	"rostersync/internal/platform/middleware"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires all endpoints. Feature handlers attach their own auth
// guards; the common chain here stays concern-free of business logic.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
