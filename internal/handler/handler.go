// Package handler exposes the HTTP surface: the inbound message
// endpoint, the quote webhook, health probes, and metrics.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/dispatch"
	"github.com/unravelhq/tripflow/internal/metrics"
	"github.com/unravelhq/tripflow/internal/middleware"
	"github.com/unravelhq/tripflow/internal/reconcile"
	"github.com/unravelhq/tripflow/internal/shutdown"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler bundles all HTTP handlers.
type Handler struct {
	dispatcher   *dispatch.Dispatcher
	reconciler   *reconcile.Reconciler
	webhookToken string

	dbChecker    HealthChecker
	redisChecker HealthChecker
	readiness    *shutdown.ReadinessProbe

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Config holds dependencies for the Handler.
type Config struct {
	Dispatcher   *dispatch.Dispatcher
	Reconciler   *reconcile.Reconciler
	WebhookToken string
	DBChecker    HealthChecker
	RedisChecker HealthChecker
	Readiness    *shutdown.ReadinessProbe
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// New creates a Handler with all required dependencies.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &Handler{
		dispatcher:   cfg.Dispatcher,
		reconciler:   cfg.Reconciler,
		webhookToken: cfg.WebhookToken,
		dbChecker:    cfg.DBChecker,
		redisChecker: cfg.RedisChecker,
		readiness:    cfg.Readiness,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
}

// RegisterRoutes registers all application routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.BodySizeLimiterJSON()).Post("/inbound", h.HandleInbound)
	r.With(middleware.BodySizeLimiterWebhook()).Post("/webhook", h.HandleWebhook)

	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReadiness)
	r.Get("/live", h.HandleLiveness)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}
