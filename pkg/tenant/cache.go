package tenant

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds settled Ready records so the hot request path does not hit the
// durable registry on every lookup. Only Ready records are cached: they are
// immutable once settled, so staleness is not a correctness concern.
type Cache interface {
	Get(ctx context.Context, id ID) (Record, bool)
	Set(ctx context.Context, rec Record, ttl time.Duration)
	Delete(ctx context.Context, id ID)
	Close() error
}

// memoryCache is the default in-process cache with TTL expiration and a
// background janitor.
type memoryCache struct {
	mu     sync.RWMutex
	items  map[ID]cacheItem
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

type cacheItem struct {
	rec       Record
	expiresAt time.Time
}

// NewMemoryCache creates an in-process record cache with automatic cleanup.
func NewMemoryCache() Cache {
	c := &memoryCache{
		items: make(map[ID]cacheItem),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *memoryCache) Get(ctx context.Context, id ID) (Record, bool) {
	c.mu.RLock()
	item, ok := c.items[id]
	c.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		return Record{}, false
	}
	return item.rec, true
}

func (c *memoryCache) Set(ctx context.Context, rec Record, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[rec.ID] = cacheItem{rec: rec, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *memoryCache) Delete(ctx context.Context, id ID) {
	c.mu.Lock()
	delete(c.items, id)
	c.mu.Unlock()
}

func (c *memoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for id, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, id)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// redisCache shares settled records across application instances. Cache
// misses and transport errors degrade to registry lookups, never to request
// failures.
type redisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCache creates a record cache on an existing Redis client.
func NewRedisCache(client redis.UniversalClient) Cache {
	return &redisCache{client: client, keyPrefix: "tenant:record:"}
}

func (c *redisCache) key(id ID) string {
	return c.keyPrefix + id.String()
}

func (c *redisCache) Get(ctx context.Context, id ID) (Record, bool) {
	payload, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		// Corrupt entry; drop it so it cannot shadow the registry.
		c.client.Del(ctx, c.key(id))
		return Record{}, false
	}
	return rec, true
}

func (c *redisCache) Set(ctx context.Context, rec Record, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(rec.ID), payload, ttl)
}

func (c *redisCache) Delete(ctx context.Context, id ID) {
	c.client.Del(ctx, c.key(id))
}

func (c *redisCache) Close() error {
	return nil
}

// CachedStore layers a Cache over a Store. Reads of Ready records are served
// from cache; every mutation passes through to the underlying store and
// invalidates the cached entry first.
type CachedStore struct {
	store Store
	cache Cache
	ttl   time.Duration
}

// DefaultCacheTTL bounds how long a Ready record may be served from cache.
const DefaultCacheTTL = 10 * time.Minute

// NewCachedStore wraps a store with a Ready-record cache.
func NewCachedStore(store Store, cache Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{store: store, cache: cache, ttl: ttl}
}

func (s *CachedStore) Get(ctx context.Context, id ID) (Record, bool, error) {
	if rec, ok := s.cache.Get(ctx, id); ok {
		return rec, true, nil
	}

	rec, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		return rec, ok, err
	}
	if rec.State == StateReady {
		s.cache.Set(ctx, rec, s.ttl)
	}
	return rec, true, nil
}

func (s *CachedStore) Reserve(ctx context.Context, id ID) (Record, bool, error) {
	s.cache.Delete(ctx, id)
	return s.store.Reserve(ctx, id)
}

func (s *CachedStore) MarkReady(ctx context.Context, id ID, ref DatabaseRef) error {
	s.cache.Delete(ctx, id)
	return s.store.MarkReady(ctx, id, ref)
}

func (s *CachedStore) MarkFailed(ctx context.Context, id ID, cause error) error {
	s.cache.Delete(ctx, id)
	return s.store.MarkFailed(ctx, id, cause)
}

var _ Store = (*CachedStore)(nil)
