package profiles

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExistenceCache remembers which profiles are known to exist so Ensure can
// skip the database on repeat requests.
type ExistenceCache interface {
	Known(ctx context.Context, userID uuid.UUID) (bool, error)
	Remember(ctx context.Context, userID uuid.UUID) error
}

type redisStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ProfileKey(userID string) string
}

// RedisCache shares the existence set across API instances.
type RedisCache struct {
	store redisStore
	ttl   time.Duration
}

// NewRedisCache builds a TTL-bounded cache on top of the shared redis client.
func NewRedisCache(store redisStore, ttl time.Duration) *RedisCache {
	return &RedisCache{store: store, ttl: ttl}
}

func (c *RedisCache) Known(ctx context.Context, userID uuid.UUID) (bool, error) {
	return c.store.Exists(ctx, c.store.ProfileKey(userID.String()))
}

func (c *RedisCache) Remember(ctx context.Context, userID uuid.UUID) error {
	return c.store.Set(ctx, c.store.ProfileKey(userID.String()), "1", c.ttl)
}

// MemoryCache is a process-local TTL cache for single-instance runs and tests.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]time.Time
}

// NewMemoryCache builds an in-process cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[uuid.UUID]time.Time)}
}

func (c *MemoryCache) Known(_ context.Context, userID uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expires, ok := c.entries[userID]
	if !ok {
		return false, nil
	}
	if !c.now().Before(expires) {
		delete(c.entries, userID)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Remember(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = c.now().Add(c.ttl)
	return nil
}
