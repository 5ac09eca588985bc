package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/services"
	"github.com/rkbansal/postify/services/posts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPostsService struct {
	mock.Mock
}

func (m *mockPostsService) List(ctx context.Context, in posts.ListInput) (*posts.ListResult, error) {
	args := m.Called(ctx, in)
	if v := args.Get(0); v != nil {
		return v.(*posts.ListResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPostsService) Get(ctx context.Context, userID, postID uuid.UUID) (*models.Post, error) {
	args := m.Called(ctx, userID, postID)
	if v := args.Get(0); v != nil {
		return v.(*models.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPostsService) RecordCopy(ctx context.Context, userID, postID uuid.UUID, platform models.Platform) (*models.CopyEvent, error) {
	args := m.Called(ctx, userID, postID, platform)
	if v := args.Get(0); v != nil {
		return v.(*models.CopyEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPostsService) ToggleFavorite(ctx context.Context, userID, postID uuid.UUID) (*posts.FavoriteResult, error) {
	args := m.Called(ctx, userID, postID)
	if v := args.Get(0); v != nil {
		return v.(*posts.FavoriteResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPostsService) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	return m.Called(ctx, userID, postID).Error(0)
}

// withPostID attaches the {id} route parameter the way chi does
func withPostID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestPostsHandler_List(t *testing.T) {
	userID := uuid.New()
	svc := new(mockPostsService)
	svc.On("List", mock.Anything, posts.ListInput{UserID: userID, Page: 2, Limit: 5, FavoritedOnly: true}).
		Return(&posts.ListResult{
			Posts:      []*models.Post{{ID: uuid.New(), UserID: userID, Model: "m"}},
			Pagination: posts.Pagination{Page: 2, Limit: 5, Total: 6, Pages: 2},
		}, nil).Once()

	h := NewPostsHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleList(w, authedRequest(http.MethodGet, "/api/posts?page=2&limit=5&favorited=true", "", userID))

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Posts      []models.Post    `json:"posts"`
		Pagination posts.Pagination `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response.Posts, 1)
	assert.Equal(t, posts.Pagination{Page: 2, Limit: 5, Total: 6, Pages: 2}, response.Pagination)
	svc.AssertExpectations(t)
}

func TestPostsHandler_ListIgnoresMalformedQuery(t *testing.T) {
	userID := uuid.New()
	svc := new(mockPostsService)
	svc.On("List", mock.Anything, posts.ListInput{UserID: userID}).
		Return(&posts.ListResult{Posts: []*models.Post{}}, nil).Once()

	h := NewPostsHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleList(w, authedRequest(http.MethodGet, "/api/posts?page=abc&limit=&favorited=yes", "", userID))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestPostsHandler_ListWithoutHistory(t *testing.T) {
	svc := new(mockPostsService)
	svc.On("List", mock.Anything, mock.Anything).Return(nil, services.ErrHistoryUnavailable).Once()

	h := NewPostsHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleList(w, authedRequest(http.MethodGet, "/api/posts", "", uuid.New()))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPostsHandler_Get(t *testing.T) {
	userID, postID := uuid.New(), uuid.New()

	t.Run("found", func(t *testing.T) {
		svc := new(mockPostsService)
		svc.On("Get", mock.Anything, userID, postID).
			Return(&models.Post{ID: postID, UserID: userID}, nil).Once()

		h := NewPostsHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.HandleGet(w, withPostID(authedRequest(http.MethodGet, "/", "", userID), postID.String()))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), postID.String())
	})

	t.Run("not owned", func(t *testing.T) {
		svc := new(mockPostsService)
		svc.On("Get", mock.Anything, userID, postID).Return(nil, services.ErrPostNotFound).Once()

		h := NewPostsHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.HandleGet(w, withPostID(authedRequest(http.MethodGet, "/", "", userID), postID.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		svc := new(mockPostsService)
		h := NewPostsHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.HandleGet(w, withPostID(authedRequest(http.MethodGet, "/", "", userID), "not-a-uuid"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no session", func(t *testing.T) {
		h := NewPostsHandler(new(mockPostsService), zap.NewNop())
		w := httptest.NewRecorder()
		h.HandleGet(w, withPostID(httptest.NewRequest(http.MethodGet, "/", nil), postID.String()))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPostsHandler_Copy(t *testing.T) {
	userID, postID := uuid.New(), uuid.New()
	copiedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("records the copy", func(t *testing.T) {
		svc := new(mockPostsService)
		svc.On("RecordCopy", mock.Anything, userID, postID, models.PlatformLinkedIn).
			Return(&models.CopyEvent{Platform: models.PlatformLinkedIn, CopiedAt: copiedAt}, nil).Once()

		h := NewPostsHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		req := withPostID(authedRequest(http.MethodPost, "/", `{"platform":"LinkedIn"}`, userID), postID.String())
		h.HandleCopy(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"platform":"LinkedIn"`)
		svc.AssertExpectations(t)
	})

	t.Run("rejects unknown platforms", func(t *testing.T) {
		svc := new(mockPostsService)
		h := NewPostsHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		req := withPostID(authedRequest(http.MethodPost, "/", `{"platform":"Mastodon"}`, userID), postID.String())
		h.HandleCopy(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "platform must be one of: Twitter, LinkedIn, Instagram")
		svc.AssertNotCalled(t, "RecordCopy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPostsHandler_ToggleFavorite(t *testing.T) {
	userID, postID := uuid.New(), uuid.New()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := new(mockPostsService)
	svc.On("ToggleFavorite", mock.Anything, userID, postID).
		Return(&posts.FavoriteResult{Favorited: true, FavoritedAt: &at}, nil).Once()

	h := NewPostsHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleToggleFavorite(w, withPostID(authedRequest(http.MethodPost, "/", "", userID), postID.String()))

	require.Equal(t, http.StatusOK, w.Code)
	var response posts.FavoriteResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.True(t, response.Favorited)
	require.NotNil(t, response.FavoritedAt)
	assert.True(t, at.Equal(*response.FavoritedAt))
}

func TestPostsHandler_Delete(t *testing.T) {
	userID, postID := uuid.New(), uuid.New()

	t.Run("deleted", func(t *testing.T) {
		svc := new(mockPostsService)
		svc.On("Delete", mock.Anything, userID, postID).Return(nil).Once()

		h := NewPostsHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.HandleDelete(w, withPostID(authedRequest(http.MethodDelete, "/", "", userID), postID.String()))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Post deleted successfully")
	})

	t.Run("absent", func(t *testing.T) {
		svc := new(mockPostsService)
		svc.On("Delete", mock.Anything, userID, postID).Return(services.ErrPostNotFound).Once()

		h := NewPostsHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.HandleDelete(w, withPostID(authedRequest(http.MethodDelete, "/", "", userID), postID.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
