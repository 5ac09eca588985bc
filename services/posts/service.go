// Package posts orchestrates generation and the per-user post history.
package posts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/repositories"
	"github.com/rkbansal/postify/services"
	"github.com/rkbansal/postify/services/article"
	"github.com/rkbansal/postify/services/routing"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Generator produces social posts for an article
type Generator interface {
	GenerateWithFallback(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error)
}

// Service generates posts and manages history. History operations need a
// database; without one they return services.ErrHistoryUnavailable.
type Service struct {
	articles  article.Parser
	generator Generator
	repos     *repositories.Repositories
	txMgr     repositories.TransactionManager
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a posts service. repos and txMgr may be nil.
func NewService(
	articles article.Parser,
	generator Generator,
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	logger *zap.Logger,
) *Service {
	return &Service{
		articles:  articles,
		generator: generator,
		repos:     repos,
		txMgr:     txMgr,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// HistoryEnabled reports whether posts are persisted
func (s *Service) HistoryEnabled() bool {
	return s.repos != nil && s.repos.Posts != nil && s.repos.Users != nil && s.txMgr != nil
}

// Generate parses the article, runs the model fallback chain and saves the result
func (s *Service) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	if s.generator == nil {
		return nil, services.ErrProviderUnavailable
	}

	art, err := s.articles.Parse(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	req := models.GenerationRequest{
		Article:   *art,
		Tone:      in.Tone,
		Platforms: in.Platforms,
		Hashtags:  in.Hashtags,
		CTA:       in.CTA,
	}

	content, err := s.generator.GenerateWithFallback(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var allFailed *routing.AllModelsFailedError
		if errors.As(err, &allFailed) {
			s.logger.Error("generation failed",
				zap.String("url", art.URL),
				zap.Int("attempts", len(allFailed.Attempts)),
				zap.Error(allFailed.Last))
			if allFailed.AllTransient() {
				return nil, services.WrapExternal(services.ErrProviderUnavailable.Message, err)
			}
		}
		return nil, services.WrapExternal(services.ErrGenerationFailed.Message, err)
	}

	result := &GenerateResult{
		Title: art.Title,
		Source: SourceInfo{
			URL:    art.URL,
			Site:   art.SiteName,
			Author: art.Byline,
		},
		Summary: content.Summary,
		Posts:   content.Posts,
		Model:   content.Model,
	}

	if !s.HistoryEnabled() {
		return result, nil
	}

	post := models.NewPost(in.UserID, req, content)
	post.CreatedAt = s.now()
	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.repos.Posts.WithTx(tx).Create(ctx, post); err != nil {
			return err
		}
		return s.repos.Users.WithTx(tx).IncrementGenerations(ctx, in.UserID, post.CreatedAt)
	})
	if err != nil {
		s.logger.Error("failed to save post to history",
			zap.String("user_id", in.UserID.String()),
			zap.String("model", content.Model),
			zap.Error(err))
		return result, nil
	}

	result.ID = post.ID.String()
	result.SavedToHistory = true
	return result, nil
}

// List returns a page of the user's history, newest first
func (s *Service) List(ctx context.Context, in ListInput) (*ListResult, error) {
	if !s.HistoryEnabled() {
		return nil, services.ErrHistoryUnavailable
	}

	page, limit := normalizePage(in.Page, in.Limit)
	filter := repositories.PostFilter{
		UserID:        in.UserID,
		FavoritedOnly: in.FavoritedOnly,
		Limit:         limit,
		Offset:        (page - 1) * limit,
	}

	items, err := s.repos.Posts.List(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list posts", err)
	}
	total, err := s.repos.Posts.Count(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to count posts", err)
	}
	if items == nil {
		items = []*models.Post{}
	}

	return &ListResult{
		Posts: items,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// Get returns one post owned by userID
func (s *Service) Get(ctx context.Context, userID, postID uuid.UUID) (*models.Post, error) {
	if !s.HistoryEnabled() {
		return nil, services.ErrHistoryUnavailable
	}
	post, err := s.repos.Posts.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, mapRepoError("failed to get post", err)
	}
	return post, nil
}

// RecordCopy appends a copy event for platform
func (s *Service) RecordCopy(ctx context.Context, userID, postID uuid.UUID, platform models.Platform) (*models.CopyEvent, error) {
	if !s.HistoryEnabled() {
		return nil, services.ErrHistoryUnavailable
	}
	if !platform.Valid() {
		return nil, services.ErrInvalidPlatform
	}

	event := models.CopyEvent{Platform: platform, CopiedAt: s.now()}
	if err := s.repos.Posts.AppendCopy(ctx, postID, userID, event); err != nil {
		return nil, mapRepoError("failed to record copy", err)
	}
	return &event, nil
}

// ToggleFavorite flips the favorite flag and returns the new state
func (s *Service) ToggleFavorite(ctx context.Context, userID, postID uuid.UUID) (*FavoriteResult, error) {
	if !s.HistoryEnabled() {
		return nil, services.ErrHistoryUnavailable
	}
	interactions, err := s.repos.Posts.ToggleFavorite(ctx, postID, userID, s.now())
	if err != nil {
		return nil, mapRepoError("failed to toggle favorite", err)
	}
	return &FavoriteResult{
		Favorited:   interactions.Favorited,
		FavoritedAt: interactions.FavoritedAt,
	}, nil
}

// Delete removes a post owned by userID
func (s *Service) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	if !s.HistoryEnabled() {
		return services.ErrHistoryUnavailable
	}
	if err := s.repos.Posts.Delete(ctx, postID, userID); err != nil {
		return mapRepoError("failed to delete post", err)
	}
	s.logger.Info("post deleted", zap.String("post_id", postID.String()), zap.String("user_id", userID.String()))
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func mapRepoError(message string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrPostNotFound
	}
	return services.WrapInternal(message, err)
}
