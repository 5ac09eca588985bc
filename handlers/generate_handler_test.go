package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/middleware"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/services"
	"github.com/rkbansal/postify/services/posts"
	"github.com/rkbansal/postify/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, in posts.GenerateInput) (*posts.GenerateResult, error) {
	args := m.Called(ctx, in)
	if v := args.Get(0); v != nil {
		return v.(*posts.GenerateResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestGenerateHandler_RequiresUser(t *testing.T) {
	gen := new(mockGenerator)
	h := NewGenerateHandler(gen, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.HandleGenerate(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerateHandler_InvalidBody(t *testing.T) {
	h := NewGenerateHandler(new(mockGenerator), zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleGenerate(w, authedRequest(http.MethodPost, "/api/generate", `{"url":`, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestGenerateHandler_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing url", `{"tone":"Witty","platforms":["Twitter"]}`, "url"},
		{"non-http url", `{"url":"ftp://example.com/a","tone":"Witty","platforms":["Twitter"]}`, "url"},
		{"unknown tone", `{"url":"https://example.com/a","tone":"Sarcastic","platforms":["Twitter"]}`, "tone"},
		{"no platforms", `{"url":"https://example.com/a","tone":"Witty","platforms":[]}`, "platforms"},
		{"duplicate platforms", `{"url":"https://example.com/a","tone":"Witty","platforms":["Twitter","Twitter"]}`, "platforms"},
		{"unknown platform", `{"url":"https://example.com/a","tone":"Witty","platforms":["Twitter","Facebook"]}`, "platforms[1]"},
		{"too many hashtags", `{"url":"https://example.com/a","tone":"Witty","platforms":["Twitter"],"hashtags":["1","2","3","4","5","6","7","8","9","10","11"]}`, "hashtags"},
		{"long cta", `{"url":"https://example.com/a","tone":"Witty","platforms":["Twitter"],"cta":"` + strings.Repeat("x", 101) + `"}`, "cta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(mockGenerator)
			h := NewGenerateHandler(gen, zap.NewNop())

			w := httptest.NewRecorder()
			h.HandleGenerate(w, authedRequest(http.MethodPost, "/api/generate", tt.body, uuid.New()))

			require.Equal(t, http.StatusBadRequest, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, "Validation failed", response.Message)
			fields, ok := response.Details["fields"].(map[string]interface{})
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
			gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateHandler_Success(t *testing.T) {
	userID := uuid.New()
	postID := uuid.New()
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, posts.GenerateInput{
		UserID:    userID,
		URL:       "https://example.com/a",
		Tone:      models.TonePunchy,
		Platforms: []models.Platform{models.PlatformTwitter, models.PlatformLinkedIn},
		Hashtags:  []string{"golang"},
		CTA:       "Read more",
	}).Return(&posts.GenerateResult{
		ID:             postID.String(),
		Title:          "Go 1.24",
		Source:         posts.SourceInfo{URL: "https://example.com/a", Site: "Example"},
		Summary:        "Generic type aliases",
		Posts:          models.GeneratedPosts{Twitter: "tweet", LinkedIn: "post"},
		Model:          "google/gemma-7b-it:free",
		SavedToHistory: true,
	}, nil).Once()

	h := NewGenerateHandler(gen, zap.NewNop())
	body := `{"url":"https://example.com/a","tone":"Punchy","platforms":["Twitter","LinkedIn"],"hashtags":["golang"],"cta":"Read more"}`
	w := httptest.NewRecorder()
	h.HandleGenerate(w, authedRequest(http.MethodPost, "/api/generate", body, userID))

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, postID.String(), response["id"])
	assert.Equal(t, "Go 1.24", response["title"])
	assert.Equal(t, true, response["savedToHistory"])
	assert.Equal(t, "google/gemma-7b-it:free", response["model"])
	assert.Equal(t, "Example", response["source"].(map[string]interface{})["site"])
	gen.AssertExpectations(t)
}

func TestGenerateHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"article parse", services.ErrArticleParse, http.StatusBadRequest},
		{"all models failed", services.WrapExternal(services.ErrGenerationFailed.Message, errors.New("HTTP 503")), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(mockGenerator)
			gen.On("Generate", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			h := NewGenerateHandler(gen, zap.NewNop())

			body := `{"url":"https://example.com/a","tone":"Neutral","platforms":["Instagram"]}`
			w := httptest.NewRecorder()
			h.HandleGenerate(w, authedRequest(http.MethodPost, "/api/generate", body, uuid.New()))

			assert.Equal(t, tt.status, w.Code)
		})
	}
}
