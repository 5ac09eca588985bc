package handlers

import (
	"context"
	"net/http"

	"github.com/rkbansal/postify/middleware"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/services/posts"
	"github.com/rkbansal/postify/utils"
	"go.uber.org/zap"
)

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	URL       string            `json:"url" validate:"required,http_url"`
	Tone      models.Tone       `json:"tone" validate:"required,oneof=Professional Witty Punchy Neutral"`
	Platforms []models.Platform `json:"platforms" validate:"required,min=1,max=3,unique,dive,oneof=Twitter LinkedIn Instagram"`
	Hashtags  []string          `json:"hashtags,omitempty" validate:"omitempty,max=10,dive,required,max=50"`
	CTA       string            `json:"cta,omitempty" validate:"max=100"`
}

// Generator defines the generation operation used by the handler
type Generator interface {
	Generate(ctx context.Context, in posts.GenerateInput) (*posts.GenerateResult, error)
}

// GenerateHandler handles POST /api/generate
type GenerateHandler struct {
	service Generator
	logger  *zap.Logger
}

// NewGenerateHandler creates a new GenerateHandler
func NewGenerateHandler(service Generator, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGenerate validates the request and returns generated posts
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req GenerateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Generate(ctx, posts.GenerateInput{
		UserID:    userID,
		URL:       req.URL,
		Tone:      req.Tone,
		Platforms: req.Platforms,
		Hashtags:  req.Hashtags,
		CTA:       req.CTA,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("posts generated",
		zap.String("user_id", userID.String()),
		zap.String("model", result.Model),
		zap.Bool("saved_to_history", result.SavedToHistory))

	_ = utils.WriteOK(w, result)
}
