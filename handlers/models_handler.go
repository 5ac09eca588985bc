package handlers

import (
	"context"
	"net/http"

	"github.com/rkbansal/postify/services/providers"
	"github.com/rkbansal/postify/services/routing"
	"github.com/rkbansal/postify/utils"
	"go.uber.org/zap"
)

// ModelRouter exposes the coordinator state shown by the diagnostics endpoint
type ModelRouter interface {
	DefaultModel() string
	PreferFreeModels() bool
	GetFreeModels(ctx context.Context) []providers.ModelDescriptor
	BuildFallbackChain(ctx context.Context) []string
	HealthSnapshot() []routing.ModelHealth
}

// ModelsResponse is the body of GET /api/models
type ModelsResponse struct {
	DefaultModel     string                      `json:"defaultModel"`
	PreferFreeModels bool                        `json:"preferFreeModels"`
	FreeModels       []providers.ModelDescriptor `json:"freeModels"`
	FallbackChain    []string                    `json:"fallbackChain"`
	Health           []routing.ModelHealth       `json:"health"`
}

// ModelsHandler handles GET /api/models
type ModelsHandler struct {
	router ModelRouter
	logger *zap.Logger
}

// NewModelsHandler creates a new ModelsHandler
func NewModelsHandler(router ModelRouter, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{router: router, logger: logger}
}

// HandleList reports free models, the current chain and model health. It never calls a model.
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	free := h.router.GetFreeModels(ctx)
	if free == nil {
		free = []providers.ModelDescriptor{}
	}
	health := h.router.HealthSnapshot()
	if health == nil {
		health = []routing.ModelHealth{}
	}

	_ = utils.WriteOK(w, ModelsResponse{
		DefaultModel:     h.router.DefaultModel(),
		PreferFreeModels: h.router.PreferFreeModels(),
		FreeModels:       free,
		FallbackChain:    h.router.BuildFallbackChain(ctx),
		Health:           health,
	})
}
