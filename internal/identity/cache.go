package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheDriver selects the token cache backend.
type CacheDriver string

const (
	CacheMemory CacheDriver = "memory"
	CacheRedis  CacheDriver = "redis"
)

// ErrInvalidCacheConfig is returned when a driver's requirements are not met.
var ErrInvalidCacheConfig = errors.New("identity: invalid cache configuration")

// Cache stores token-to-user resolutions for the exchange TTL.
type Cache interface {
	Get(ctx context.Context, token string) (string, bool)
	Set(ctx context.Context, token, userID string)
	Close() error
}

// CacheOption configures NewCache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// WithRedisClient supplies the client required by the redis driver.
func WithRedisClient(client *redis.Client) CacheOption {
	return func(c *cacheConfig) { c.redisClient = client }
}

// WithTTL overrides the default 5 minute entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) { c.ttl = ttl }
}

// NewCache creates a token cache for the given driver.
func NewCache(driver CacheDriver, opts ...CacheOption) (Cache, error) {
	cfg := &cacheConfig{ttl: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = 5 * time.Minute
	}

	switch driver {
	case CacheMemory:
		return &memoryCache{entries: make(map[string]cacheEntry), ttl: cfg.ttl}, nil
	case CacheRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidCacheConfig
		}
		return &redisCache{client: cfg.redisClient, ttl: cfg.ttl}, nil
	default:
		return nil, ErrInvalidCacheConfig
	}
}

type cacheEntry struct {
	userID    string
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func (c *memoryCache) Get(ctx context.Context, token string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[token]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.userID, true
}

func (c *memoryCache) Set(ctx context.Context, token, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = cacheEntry{userID: userID, expiresAt: time.Now().Add(c.ttl)}
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	return nil
}

const tokenKeyPrefix = "token:"

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisCache) Get(ctx context.Context, token string) (string, bool) {
	val, err := c.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, token, userID string) {
	_ = c.client.Set(ctx, tokenKeyPrefix+token, userID, c.ttl).Err()
}

func (c *redisCache) Close() error { return c.client.Close() }

// Cached decorates an Exchanger with a resolution cache so each token is
// resolved against the provider at most once per TTL.
type Cached struct {
	inner Exchanger
	cache Cache
}

// NewCached wraps an exchanger with the given cache.
func NewCached(inner Exchanger, cache Cache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) Exchange(ctx context.Context, token string) (string, error) {
	if userID, ok := c.cache.Get(ctx, token); ok {
		return userID, nil
	}
	userID, err := c.inner.Exchange(ctx, token)
	if err != nil {
		return "", err
	}
	c.cache.Set(ctx, token, userID)
	return userID, nil
}

var _ Exchanger = (*Cached)(nil)
