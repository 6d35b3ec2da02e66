package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks,omitempty"`
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleHealth returns a health check response including all service dependencies.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "ok",
		Checks: make(map[string]ComponentHealth),
	}

	unhealthy := false

	if h.dbChecker != nil {
		if err := h.dbChecker.Ping(ctx); err != nil {
			unhealthy = true
			response.Checks["database"] = ComponentHealth{Status: "unhealthy", Message: err.Error()}
			h.logger.Error("database health check failed", zap.Error(err))
		} else {
			response.Checks["database"] = ComponentHealth{Status: "healthy"}
		}
	}

	if h.redisChecker != nil {
		if err := h.redisChecker.Ping(ctx); err != nil {
			unhealthy = true
			response.Checks["redis"] = ComponentHealth{Status: "unhealthy", Message: err.Error()}
			h.logger.Error("redis health check failed", zap.Error(err))
		} else {
			response.Checks["redis"] = ComponentHealth{Status: "healthy"}
		}
	}

	statusCode := http.StatusOK
	if unhealthy {
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, response)
}

// HandleReadiness returns a readiness probe response. Not ready while
// draining or when the critical stores are unreachable.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil && !h.readiness.IsReady() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, checker := range map[string]HealthChecker{"database": h.dbChecker, "redis": h.redisChecker} {
		if checker == nil {
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			h.logger.Error("readiness check failed", zap.String("dependency", name), zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// HandleLiveness returns a simple liveness probe response.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
