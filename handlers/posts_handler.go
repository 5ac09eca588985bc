package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rkbansal/postify/middleware"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/services/posts"
	"github.com/rkbansal/postify/utils"
	"go.uber.org/zap"
)

// PostsService defines the history operations used by the handler
type PostsService interface {
	List(ctx context.Context, in posts.ListInput) (*posts.ListResult, error)
	Get(ctx context.Context, userID, postID uuid.UUID) (*models.Post, error)
	RecordCopy(ctx context.Context, userID, postID uuid.UUID, platform models.Platform) (*models.CopyEvent, error)
	ToggleFavorite(ctx context.Context, userID, postID uuid.UUID) (*posts.FavoriteResult, error)
	Delete(ctx context.Context, userID, postID uuid.UUID) error
}

// CopyRequest is the body of POST /api/posts/{id}/copy
type CopyRequest struct {
	Platform models.Platform `json:"platform" validate:"required,oneof=Twitter LinkedIn Instagram"`
}

// PostsHandler handles the /api/posts routes
type PostsHandler struct {
	service PostsService
	logger  *zap.Logger
}

// NewPostsHandler creates a new PostsHandler
func NewPostsHandler(service PostsService, logger *zap.Logger) *PostsHandler {
	return &PostsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/posts
func (h *PostsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	q := r.URL.Query()
	result, err := h.service.List(r.Context(), posts.ListInput{
		UserID:        userID,
		Page:          queryInt(q.Get("page")),
		Limit:         queryInt(q.Get("limit")),
		FavoritedOnly: q.Get("favorited") == "true",
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleGet handles GET /api/posts/{id}
func (h *PostsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := h.ids(w, r)
	if !ok {
		return
	}

	post, err := h.service.Get(r.Context(), userID, postID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, map[string]interface{}{"post": post})
}

// HandleCopy handles POST /api/posts/{id}/copy
func (h *PostsHandler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := h.ids(w, r)
	if !ok {
		return
	}

	var req CopyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	event, err := h.service.RecordCopy(r.Context(), userID, postID, req.Platform)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, map[string]interface{}{
		"message": "Copy recorded",
		"copy":    event,
	})
}

// HandleToggleFavorite handles POST /api/posts/{id}/favorite
func (h *PostsHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := h.ids(w, r)
	if !ok {
		return
	}

	result, err := h.service.ToggleFavorite(r.Context(), userID, postID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleDelete handles DELETE /api/posts/{id}
func (h *PostsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := h.ids(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, postID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteMessage(w, "Post deleted successfully")
}

// ids reads the session user and the {id} path parameter, writing the error response on failure
func (h *PostsHandler) ids(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "")
		return uuid.Nil, uuid.Nil, false
	}
	postID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		// Malformed ids cannot match any post
		_ = utils.WriteNotFound(w, "Post not found")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, postID, true
}

func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
