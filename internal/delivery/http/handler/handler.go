package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/delivery/http/response"
	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/internal/usecase"
)

const (
	healthTimeout      = 2 * time.Second
	defaultFailedLimit = 50
	maxFailedLimit     = 500
)

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	crawler  usecase.Crawler
	failures repository.FailedListingRepository
	checks   map[string]Pinger
	logger   *zap.Logger
}

// NewHandler wires the crawl status endpoints. failures may be nil.
func NewHandler(crawler usecase.Crawler, failures repository.FailedListingRepository, checks map[string]Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		crawler:  crawler,
		failures: failures,
		checks:   checks,
		logger:   logger,
	}
}

// HandleHealthCheck probes every dependency and answers 503 if any is down.
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := response.HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			resp.Checks[name] = "unhealthy"
			resp.Status = "degraded"
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		resp.Checks[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

// HandleGetStatus returns the live summary of the current or last run.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.crawler.Status()
	if !ok {
		h.writeJSONError(w, "No crawl has run yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleListFailed returns the most recently failed listings.
func (h *Handler) HandleListFailed(w http.ResponseWriter, r *http.Request) {
	if h.failures == nil {
		h.writeJSONError(w, "Failed listings are not recorded", http.StatusNotFound)
		return
	}

	limit := defaultFailedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxFailedLimit)
	}

	failed, err := h.failures.FindRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list failed listings", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]response.FailedListingResponse, 0, len(failed))
	for _, f := range failed {
		resp = append(resp, response.FailedListingResponse{
			URL:                  f.URL,
			Fingerprint:          f.Fingerprint,
			FailureReason:        f.FailureReason,
			Attempts:             f.Attempts,
			LastAttemptTimestamp: f.LastAttemptTimestamp,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
