package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const tokenKey = "payment:gateway_token"

// RedisTokenCache shares the gateway access token across worker processes.
// Cache failures are logged and treated as misses.
type RedisTokenCache struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewRedisTokenCache(rdb *redis.Client, logger zerolog.Logger) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb, logger: logger.With().Str("component", "token_cache").Logger()}
}

func (c *RedisTokenCache) Get(ctx context.Context) (string, bool) {
	token, err := c.rdb.Get(ctx, tokenKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("token cache read failed")
		}
		return "", false
	}
	return token, token != ""
}

func (c *RedisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, tokenKey, token, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("token cache write failed")
	}
}

// MemoryTokenCache is the single-process fallback used when no Redis address
// is configured, and in tests.
type MemoryTokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache { return &MemoryTokenCache{} }

func (c *MemoryTokenCache) Get(_ context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || time.Now().After(c.expires) {
		return "", false
	}
	return c.token, true
}

func (c *MemoryTokenCache) Set(_ context.Context, token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expires = time.Now().Add(ttl)
}
