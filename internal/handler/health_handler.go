package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HealthChecker defines the interface for checking database health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AIHealthChecker defines the interface for checking completion service health.
type AIHealthChecker interface {
	IsCircuitOpen() bool
}

// ReadinessGate reports whether the process is still accepting traffic.
// *shutdown.Coordinator satisfies it.
type ReadinessGate interface {
	IsReady() bool
}

// HealthHandler handles health check HTTP requests.
type HealthHandler struct {
	healthChecker   HealthChecker
	aiHealthChecker AIHealthChecker
	gate            ReadinessGate
	missing         []string
	logger          *zap.Logger
}

// HealthHandlerConfig holds configuration for HealthHandler.
type HealthHandlerConfig struct {
	// HealthChecker is nil when the database mirror is disabled.
	HealthChecker   HealthChecker
	AIHealthChecker AIHealthChecker
	Gate            ReadinessGate
	// MissingCredentials lists unset credential variables, reported as degradation.
	MissingCredentials []string
	Logger             *zap.Logger
}

// NewHealthHandler creates a new HealthHandler with all required dependencies.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &HealthHandler{
		healthChecker:   cfg.HealthChecker,
		aiHealthChecker: cfg.AIHealthChecker,
		gate:            cfg.Gate,
		missing:         cfg.MissingCredentials,
		logger:          cfg.Logger,
	}
}

// RegisterRoutes registers health routes on the router.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReadiness)
	r.Get("/live", h.HandleLiveness)
}

// Overall and per-component health states.
const (
	statusOK        = "ok"
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
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

// HandleHealth reports the state of every dependency. Only a failed database
// ping makes the service unhealthy.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: statusOK,
		Checks: make(map[string]ComponentHealth),
	}

	hasCriticalFailure := false
	hasDegradation := false

	if h.healthChecker != nil {
		if err := h.healthChecker.Ping(ctx); err != nil {
			hasCriticalFailure = true
			response.Checks["database"] = ComponentHealth{
				Status:  statusUnhealthy,
				Message: err.Error(),
			}
			h.logger.Error("database health check failed", zap.Error(err))
		} else {
			response.Checks["database"] = ComponentHealth{Status: statusHealthy}
		}
	}

	if h.aiHealthChecker != nil {
		if h.aiHealthChecker.IsCircuitOpen() {
			hasDegradation = true
			response.Checks["completion_service"] = ComponentHealth{
				Status:  statusDegraded,
				Message: "circuit breaker open",
			}
		} else {
			response.Checks["completion_service"] = ComponentHealth{Status: statusHealthy}
		}
	}

	for _, name := range h.missing {
		hasDegradation = true
		response.Checks[name] = ComponentHealth{
			Status:  statusDegraded,
			Message: "not configured",
		}
	}

	if hasCriticalFailure {
		response.Status = statusUnhealthy
	} else if hasDegradation {
		response.Status = statusDegraded
	}

	statusCode := http.StatusOK
	if response.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, r, h.logger, statusCode, response)
}

// HandleReadiness returns a simple readiness probe response.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.gate != nil && !h.gate.IsReady() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.healthChecker != nil {
		if err := h.healthChecker.Ping(ctx); err != nil {
			h.logger.Error("readiness check failed", zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// HandleLiveness returns a simple liveness probe response.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
