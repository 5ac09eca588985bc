package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/rkbansal/postify/utils"
	"go.uber.org/zap"
)

// HealthInfo is the static part of the health report
type HealthInfo struct {
	Environment      string
	AuthConfigured   bool
	PreferFreeModels bool
	DefaultModel     string
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Environment string            `json:"environment,omitempty"`
	Database    string            `json:"database,omitempty"`
	Auth        *AuthStatus       `json:"auth,omitempty"`
	OpenRouter  *OpenRouterStatus `json:"openrouter,omitempty"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// AuthStatus reports whether Google sign-in is available
type AuthStatus struct {
	Configured bool `json:"configured"`
}

// OpenRouterStatus reports the model routing settings
type OpenRouterStatus struct {
	PreferFreeModels bool   `json:"preferFreeModels"`
	DefaultModel     string `json:"defaultModel"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	info   HealthInfo
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db *sql.DB, info HealthInfo, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		info:   info,
		logger: logger,
	}
}

// HandleHealth handles GET /health
// Always returns 200 while the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	database := "disabled"
	if h.db != nil {
		database = "connected"
		if err := h.db.PingContext(ctx); err != nil {
			database = "disconnected"
		}
	}

	_ = utils.WriteOK(w, HealthResponse{
		Status:      "OK",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: h.info.Environment,
		Database:    database,
		Auth:        &AuthStatus{Configured: h.info.AuthConfigured},
		OpenRouter: &OpenRouterStatus{
			PreferFreeModels: h.info.PreferFreeModels,
			DefaultModel:     h.info.DefaultModel,
		},
	})
}

// HandleReadiness handles GET /readyz
// Validates that configured dependencies are reachable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	switch {
	case h.db == nil:
		checks["database"] = "disabled"
	case h.checkDatabase(ctx) != nil:
		checks["database"] = "unhealthy"
		allHealthy = false
	default:
		checks["database"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase pings and runs a trivial query
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	return nil
}
