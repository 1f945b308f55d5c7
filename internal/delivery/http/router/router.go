package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/delivery/http/handler"
	"github.com/user/jobcrawler/internal/delivery/http/middleware"
	"github.com/user/jobcrawler/pkg/metrics"
)

// New builds the monitoring API. gatherer backs /metrics.
func New(h *handler.Handler, gatherer prometheus.Gatherer, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/status", h.HandleGetStatus)
		r.Get("/failed", h.HandleListFailed)
	})

	return r
}
