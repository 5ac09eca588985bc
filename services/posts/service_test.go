package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/repositories"
	"github.com/rkbansal/postify/services"
	"github.com/rkbansal/postify/services/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

type mockParser struct{ mock.Mock }

func (m *mockParser) Parse(ctx context.Context, rawURL string) (*models.Article, error) {
	args := m.Called(ctx, rawURL)
	if v := args.Get(0); v != nil {
		return v.(*models.Article), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) GenerateWithFallback(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*models.GeneratedContent), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPostRepo struct{ mock.Mock }

func (m *mockPostRepo) Create(ctx context.Context, post *models.Post) error {
	return m.Called(ctx, post).Error(0)
}

func (m *mockPostRepo) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Post, error) {
	args := m.Called(ctx, id, userID)
	if v := args.Get(0); v != nil {
		return v.(*models.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPostRepo) List(ctx context.Context, filter repositories.PostFilter) ([]*models.Post, error) {
	args := m.Called(ctx, filter)
	if v := args.Get(0); v != nil {
		return v.([]*models.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPostRepo) Count(ctx context.Context, filter repositories.PostFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockPostRepo) AppendCopy(ctx context.Context, id, userID uuid.UUID, event models.CopyEvent) error {
	return m.Called(ctx, id, userID, event).Error(0)
}

func (m *mockPostRepo) ToggleFavorite(ctx context.Context, id, userID uuid.UUID, at time.Time) (*models.Interactions, error) {
	args := m.Called(ctx, id, userID, at)
	if v := args.Get(0); v != nil {
		return v.(*models.Interactions), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPostRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockPostRepo) WithTx(tx repositories.Transaction) repositories.PostRepository {
	m.Called(tx)
	return m
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	args := m.Called(ctx, googleID)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.UserPreferences) error {
	return m.Called(ctx, id, prefs).Error(0)
}

func (m *mockUserRepo) IncrementGenerations(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockUserRepo) WithTx(tx repositories.Transaction) repositories.UserRepository {
	m.Called(tx)
	return m
}

type mockTxManager struct{ mock.Mock }

func (m *mockTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return m.Called(ctx, fn).Error(0)
}

type mockTx struct{ mock.Mock }

func (m *mockTx) Commit() error { return m.Called().Error(0) }
func (m *mockTx) Rollback() error { return m.Called().Error(0) }
func (m *mockTx) Context() context.Context { return context.Background() }

type fixture struct {
	svc       *Service
	parser    *mockParser
	generator *mockGenerator
	posts     *mockPostRepo
	users     *mockUserRepo
	txMgr     *mockTxManager
	tx        *mockTx
	now       time.Time
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	f := &fixture{
		parser:    new(mockParser),
		generator: new(mockGenerator),
		posts:     new(mockPostRepo),
		users:     new(mockUserRepo),
		txMgr:     new(mockTxManager),
		tx:        new(mockTx),
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if withHistory {
		f.svc = NewService(f.parser, f.generator, &repositories.Repositories{Users: f.users, Posts: f.posts}, f.txMgr, zap.NewNop())
	} else {
		f.svc = NewService(f.parser, f.generator, nil, nil, zap.NewNop())
	}
	f.svc.now = func() time.Time { return f.now }
	return f
}

var (
	userID = uuid.MustParse("5f1c9d3e-6a0b-4c1e-9d1f-2b7a8e3c4d5f")
	postID = uuid.MustParse("9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d")
)

func sampleArticle() *models.Article {
	return &models.Article{
		URL:         "https://example.com/a",
		Title:       "Title",
		TextContent: "Body text",
		SiteName:    "Example",
		Byline:      "Ann",
	}
}

func sampleInput() GenerateInput {
	return GenerateInput{
		UserID:    userID,
		URL:       "https://example.com/a",
		Tone:      models.ToneWitty,
		Platforms: []models.Platform{models.PlatformTwitter},
		Hashtags:  []string{"go"},
	}
}

func sampleContent() *models.GeneratedContent {
	return &models.GeneratedContent{
		Summary: "Summary",
		Posts:   models.GeneratedPosts{Twitter: "tweet"},
		Model:   "google/gemma-7b-it:free",
	}
}

func TestGenerate_SavesToHistory(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.parser.On("Parse", ctx, "https://example.com/a").Return(sampleArticle(), nil)
	f.generator.On("GenerateWithFallback", ctx, mock.MatchedBy(func(r models.GenerationRequest) bool {
		return r.Tone == models.ToneWitty && r.Article.Title == "Title" && len(r.Hashtags) == 1
	})).Return(sampleContent(), nil)
	f.txMgr.On("Begin", ctx).Return(f.tx, nil)
	f.tx.On("Commit").Return(nil)
	f.posts.On("WithTx", f.tx).Return()
	f.users.On("WithTx", f.tx).Return()

	var saved *models.Post
	f.posts.On("Create", ctx, mock.AnythingOfType("*models.Post")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*models.Post) }).
		Return(nil)
	f.users.On("IncrementGenerations", ctx, userID, f.now).Return(nil)

	result, err := f.svc.Generate(ctx, sampleInput())
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.True(t, result.SavedToHistory)
	assert.Equal(t, saved.ID.String(), result.ID)
	assert.Equal(t, "Title", result.Title)
	assert.Equal(t, SourceInfo{URL: "https://example.com/a", Site: "Example", Author: "Ann"}, result.Source)
	assert.Equal(t, "google/gemma-7b-it:free", result.Model)
	assert.Equal(t, userID, saved.UserID)
	assert.Equal(t, "Summary", saved.Article.Summary)
	assert.Equal(t, f.now, saved.CreatedAt)

	f.tx.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestGenerate_PersistenceFailureStillSucceeds(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	f := newFixture(t, true)
	f.svc.logger = zap.New(core)
	ctx := context.Background()

	f.parser.On("Parse", ctx, mock.Anything).Return(sampleArticle(), nil)
	f.generator.On("GenerateWithFallback", ctx, mock.Anything).Return(sampleContent(), nil)
	f.txMgr.On("Begin", ctx).Return(f.tx, nil)
	f.tx.On("Rollback").Return(nil)
	f.posts.On("WithTx", f.tx).Return()
	f.posts.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

	result, err := f.svc.Generate(ctx, sampleInput())
	require.NoError(t, err)
	assert.False(t, result.SavedToHistory)
	assert.Empty(t, result.ID)
	assert.Equal(t, 1, logs.FilterMessage("failed to save post to history").Len())
	f.users.AssertNotCalled(t, "IncrementGenerations", mock.Anything, mock.Anything, mock.Anything)
	f.tx.AssertExpectations(t)
}

func TestGenerate_WithoutHistory(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.parser.On("Parse", ctx, mock.Anything).Return(sampleArticle(), nil)
	f.generator.On("GenerateWithFallback", ctx, mock.Anything).Return(sampleContent(), nil)

	result, err := f.svc.Generate(ctx, sampleInput())
	require.NoError(t, err)
	assert.False(t, result.SavedToHistory)
	assert.Equal(t, models.GeneratedPosts{Twitter: "tweet"}, result.Posts)
	f.txMgr.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestGenerate_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("article parse failure is returned as is", func(t *testing.T) {
		f := newFixture(t, true)
		f.parser.On("Parse", ctx, mock.Anything).Return(nil, services.ErrArticleParse)

		_, err := f.svc.Generate(ctx, sampleInput())
		assert.True(t, services.IsValidationError(err))
		f.generator.AssertNotCalled(t, "GenerateWithFallback", mock.Anything, mock.Anything)
	})

	t.Run("all models failed maps to external error", func(t *testing.T) {
		f := newFixture(t, true)
		f.parser.On("Parse", ctx, mock.Anything).Return(sampleArticle(), nil)
		last := errors.New("503")
		f.generator.On("GenerateWithFallback", ctx, mock.Anything).
			Return(nil, &routing.AllModelsFailedError{Attempts: []routing.Attempt{{Model: "m", Err: last}}, Last: last})

		_, err := f.svc.Generate(ctx, sampleInput())
		require.Error(t, err)
		assert.True(t, services.IsExternalError(err))
		assert.ErrorIs(t, err, last)
		f.txMgr.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("every model saturated maps to provider unavailable", func(t *testing.T) {
		f := newFixture(t, true)
		f.parser.On("Parse", ctx, mock.Anything).Return(sampleArticle(), nil)
		last := errors.New("429 - rate limit")
		f.generator.On("GenerateWithFallback", ctx, mock.Anything).
			Return(nil, &routing.AllModelsFailedError{Attempts: []routing.Attempt{
				{Model: "a:free", Err: last, Transient: true},
				{Model: "b", Err: last, Transient: true},
			}, Last: last})

		_, err := f.svc.Generate(ctx, sampleInput())
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrProviderUnavailable)
		var domainErr *services.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, services.ErrProviderUnavailable.Message, domainErr.Message)
	})

	t.Run("mixed failures keep the generation message", func(t *testing.T) {
		f := newFixture(t, true)
		f.parser.On("Parse", ctx, mock.Anything).Return(sampleArticle(), nil)
		last := errors.New("malformed output")
		f.generator.On("GenerateWithFallback", ctx, mock.Anything).
			Return(nil, &routing.AllModelsFailedError{Attempts: []routing.Attempt{
				{Model: "a:free", Err: errors.New("429"), Transient: true},
				{Model: "b", Err: last},
			}, Last: last})

		_, err := f.svc.Generate(ctx, sampleInput())
		var domainErr *services.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, services.ErrGenerationFailed.Message, domainErr.Message)
	})

	t.Run("missing generator reports provider unavailable", func(t *testing.T) {
		parser := new(mockParser)
		svc := NewService(parser, nil, nil, nil, zap.NewNop())

		_, err := svc.Generate(ctx, sampleInput())
		assert.Same(t, services.ErrProviderUnavailable, err)
		parser.AssertNotCalled(t, "Parse", mock.Anything, mock.Anything)
	})

	t.Run("cancelled request returns the context error", func(t *testing.T) {
		f := newFixture(t, true)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		f.parser.On("Parse", cctx, mock.Anything).Return(sampleArticle(), nil)
		f.generator.On("GenerateWithFallback", cctx, mock.Anything).Return(nil, errors.New("aborted"))

		_, err := f.svc.Generate(cctx, sampleInput())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		in         ListInput
		wantFilter repositories.PostFilter
		total      int
		wantPages  int
	}{
		{
			name:       "defaults",
			in:         ListInput{UserID: userID},
			wantFilter: repositories.PostFilter{UserID: userID, Limit: 10, Offset: 0},
			total:      21,
			wantPages:  3,
		},
		{
			name:       "limit capped and favorites only",
			in:         ListInput{UserID: userID, Page: 2, Limit: 500, FavoritedOnly: true},
			wantFilter: repositories.PostFilter{UserID: userID, FavoritedOnly: true, Limit: 50, Offset: 50},
			total:      50,
			wantPages:  1,
		},
		{
			name:       "empty history",
			in:         ListInput{UserID: userID, Page: -1, Limit: 5},
			wantFilter: repositories.PostFilter{UserID: userID, Limit: 5, Offset: 0},
			total:      0,
			wantPages:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.posts.On("List", ctx, tt.wantFilter).Return(nil, nil)
			f.posts.On("Count", ctx, tt.wantFilter).Return(tt.total, nil)

			got, err := f.svc.List(ctx, tt.in)
			require.NoError(t, err)
			assert.NotNil(t, got.Posts)
			assert.Equal(t, tt.wantFilter.Limit, got.Pagination.Limit)
			assert.Equal(t, tt.total, got.Pagination.Total)
			assert.Equal(t, tt.wantPages, got.Pagination.Pages)
			f.posts.AssertExpectations(t)
		})
	}
}

func TestHistoryOperations_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	notFound := errors.Join(repositories.ErrNotFound, errors.New("post " + postID.String()))

	f.posts.On("GetByID", ctx, postID, userID).Return(nil, notFound)
	f.posts.On("AppendCopy", ctx, postID, userID, mock.Anything).Return(notFound)
	f.posts.On("ToggleFavorite", ctx, postID, userID, f.now).Return(nil, notFound)
	f.posts.On("Delete", ctx, postID, userID).Return(notFound)

	_, err := f.svc.Get(ctx, userID, postID)
	assert.ErrorIs(t, err, services.ErrPostNotFound)
	_, err = f.svc.RecordCopy(ctx, userID, postID, models.PlatformLinkedIn)
	assert.ErrorIs(t, err, services.ErrPostNotFound)
	_, err = f.svc.ToggleFavorite(ctx, userID, postID)
	assert.ErrorIs(t, err, services.ErrPostNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, userID, postID), services.ErrPostNotFound)
}

func TestRecordCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	want := models.CopyEvent{Platform: models.PlatformInstagram, CopiedAt: f.now}
	f.posts.On("AppendCopy", ctx, postID, userID, want).Return(nil)

	ev, err := f.svc.RecordCopy(ctx, userID, postID, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, want, *ev)

	_, err = f.svc.RecordCopy(ctx, userID, postID, models.Platform("Myspace"))
	assert.ErrorIs(t, err, services.ErrInvalidPlatform)
	f.posts.AssertNumberOfCalls(t, "AppendCopy", 1)
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	at := f.now
	f.posts.On("ToggleFavorite", ctx, postID, userID, f.now).
		Return(&models.Interactions{Favorited: true, FavoritedAt: &at}, nil)

	got, err := f.svc.ToggleFavorite(ctx, userID, postID)
	require.NoError(t, err)
	assert.True(t, got.Favorited)
	assert.Equal(t, &at, got.FavoritedAt)
}

func TestHistoryUnavailableWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.List(ctx, ListInput{UserID: userID})
	assert.True(t, services.IsUnavailableError(err))
	_, err = f.svc.Get(ctx, userID, postID)
	assert.True(t, services.IsUnavailableError(err))
	_, err = f.svc.RecordCopy(ctx, userID, postID, models.PlatformTwitter)
	assert.True(t, services.IsUnavailableError(err))
	_, err = f.svc.ToggleFavorite(ctx, userID, postID)
	assert.True(t, services.IsUnavailableError(err))
	assert.True(t, services.IsUnavailableError(f.svc.Delete(ctx, userID, postID)))
}
