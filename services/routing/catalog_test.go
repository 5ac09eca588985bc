package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rkbansal/postify/services/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListModels(ctx context.Context) ([]providers.ModelDescriptor, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]providers.ModelDescriptor), args.Error(1)
	}
	return nil, args.Error(1)
}

func model(id string, free bool) providers.ModelDescriptor {
	price := providers.Price{Value: 0, Valid: true}
	if !free {
		price.Value = 0.000001
	}
	return providers.ModelDescriptor{ID: id, Pricing: providers.Pricing{Prompt: price, Completion: providers.Price{Valid: true}}}
}

func TestFilterFree(t *testing.T) {
	got := FilterFree([]providers.ModelDescriptor{model("a", true), model("b", false), model("c", true)})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestFreeModelCache_ServesCachedListUntilExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	catalog := new(mockCatalog)
	catalog.On("ListModels", ctx).
		Return([]providers.ModelDescriptor{model("a:free", true), model("paid", false)}, nil).
		Twice()

	cache := NewFreeModelCache(catalog, nil, clock, zap.NewNop())

	first := cache.GetFreeModels(ctx)
	require.Len(t, first, 1)
	assert.Equal(t, "a:free", first[0].ID)

	clock.Advance(FreeModelTTL - time.Second)
	assert.Equal(t, first, cache.GetFreeModels(ctx))
	catalog.AssertNumberOfCalls(t, "ListModels", 1)

	clock.Advance(time.Second)
	cache.GetFreeModels(ctx)
	catalog.AssertNumberOfCalls(t, "ListModels", 2)
}

func TestFreeModelCache_FetchFailureReturnsEmptyAndRetriesNextTime(t *testing.T) {
	ctx := context.Background()
	catalog := new(mockCatalog)
	catalog.On("ListModels", ctx).Return(nil, errors.New("gateway down")).Once()
	catalog.On("ListModels", ctx).Return([]providers.ModelDescriptor{model("a:free", true)}, nil).Once()

	cache := NewFreeModelCache(catalog, NewMemoryStore(), newFakeClock(), zap.NewNop())

	got := cache.GetFreeModels(ctx)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = cache.GetFreeModels(ctx)
	require.Len(t, got, 1)
	catalog.AssertExpectations(t)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	value := &CachedModels{Models: []providers.ModelDescriptor{model("a", true)}, ExpiresAt: time.Now()}
	require.NoError(t, s.Save(ctx, value))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, value, got)
}
