package routing

import (
	"context"
	"sync"
	"time"

	"github.com/rkbansal/postify/services/providers"
	"go.uber.org/zap"
)

// FreeModelTTL is how long a fetched free-model list is served from cache
const FreeModelTTL = time.Hour

// CachedModels is the cached free-model list and its expiry instant
type CachedModels struct {
	Models    []providers.ModelDescriptor `json:"models"`
	ExpiresAt time.Time                   `json:"expiresAt"`
}

// CatalogStore persists the cached free-model list
type CatalogStore interface {
	// Load returns the cached value; ok is false when nothing is stored
	Load(ctx context.Context) (value *CachedModels, ok bool, err error)

	// Save replaces the cached value
	Save(ctx context.Context, value *CachedModels) error
}

// MemoryStore keeps the cached list in process
type MemoryStore struct {
	mu    sync.RWMutex
	value *CachedModels
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements CatalogStore
func (s *MemoryStore) Load(_ context.Context) (*CachedModels, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value == nil {
		return nil, false, nil
	}
	return s.value, true, nil
}

// Save implements CatalogStore
func (s *MemoryStore) Save(_ context.Context, value *CachedModels) error {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	return nil
}

// FreeModelCache serves the free subset of the gateway catalog, refetching
// once the cached copy expires.
type FreeModelCache struct {
	catalog providers.Catalog
	store   CatalogStore
	clock   Clock
	logger  *zap.Logger
}

// NewFreeModelCache creates a cache over catalog. A nil store keeps the list in memory.
func NewFreeModelCache(catalog providers.Catalog, store CatalogStore, clock Clock, logger *zap.Logger) *FreeModelCache {
	if store == nil {
		store = NewMemoryStore()
	}
	if clock == nil {
		clock = SystemClock
	}
	return &FreeModelCache{
		catalog: catalog,
		store:   store,
		clock:   clock,
		logger:  logger,
	}
}

// GetFreeModels returns the cached free models, refreshing them when expired.
// It never fails: a catalog error yields an empty list and is not cached.
func (c *FreeModelCache) GetFreeModels(ctx context.Context) []providers.ModelDescriptor {
	now := c.clock.Now()

	cached, ok, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("free model cache read failed", zap.Error(err))
	}
	if ok && now.Before(cached.ExpiresAt) {
		return cached.Models
	}

	all, err := c.catalog.ListModels(ctx)
	if err != nil {
		c.logger.Warn("failed to fetch model catalog", zap.Error(err))
		return []providers.ModelDescriptor{}
	}

	free := FilterFree(all)
	value := &CachedModels{Models: free, ExpiresAt: now.Add(FreeModelTTL)}
	if err := c.store.Save(ctx, value); err != nil {
		c.logger.Warn("free model cache write failed", zap.Error(err))
	}

	c.logger.Info("free models refreshed",
		zap.Int("free", len(free)),
		zap.Int("total", len(all)),
	)
	return free
}

// FilterFree keeps the models whose prompt and completion prices are both zero,
// preserving catalog order
func FilterFree(models []providers.ModelDescriptor) []providers.ModelDescriptor {
	free := make([]providers.ModelDescriptor, 0, len(models))
	for _, m := range models {
		if m.IsFree() {
			free = append(free, m)
		}
	}
	return free
}
