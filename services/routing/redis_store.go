package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const freeModelsKey = "free-models"

// RedisStore shares the cached free-model list across instances. The key
// expires together with the cached value.
type RedisStore struct {
	client *redis.Client
	key    string
	clock  Clock
}

// NewRedisStore connects to url and verifies the connection
func NewRedisStore(ctx context.Context, url, keyPrefix string, clock Clock) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if clock == nil {
		clock = SystemClock
	}
	return &RedisStore{
		client: client,
		key:    keyPrefix + freeModelsKey,
		clock:  clock,
	}, nil
}

// Load implements CatalogStore
func (s *RedisStore) Load(ctx context.Context) (*CachedModels, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var value CachedModels
	if err := sonic.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("decode cached models: %w", err)
	}
	return &value, true, nil
}

// Save implements CatalogStore. Already-expired values are not written.
func (s *RedisStore) Save(ctx context.Context, value *CachedModels) error {
	ttl := value.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}

	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached models: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Close closes the connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
