package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/formbridge/internal/pkg/logger"
)

const versionKey = "analytics:overview:version"

// Cache holds computed overviews. Implementations are advisory: a miss
// or a failure just means recomputing from the store.
type Cache interface {
	GetOverview(ctx context.Context, q Query) (*Overview, bool)
	SetOverview(ctx context.Context, q Query, ov *Overview)
	// Invalidate expires every cached overview at once. Writes are far
	// rarer than reads here, so coarse invalidation beats tracking keys.
	Invalidate(ctx context.Context)
}

// RedisCache caches overviews in Redis under a group version key;
// bumping the version orphans all previous entries, which expire by TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache creates a Redis-backed overview cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (c *RedisCache) key(ctx context.Context, q Query) string {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		c.log.Debug("reading cache version", "error", err.Error())
	}
	return fmt.Sprintf("analytics:overview:v%d:%s:%s:%d:%d",
		version, q.FormID, q.AudienceID, q.Since.Unix(), q.Until.Unix())
}

// GetOverview returns a cached overview for the query, if present.
func (c *RedisCache) GetOverview(ctx context.Context, q Query) (*Overview, bool) {
	data, err := c.client.Get(ctx, c.key(ctx, q)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("overview cache read failed", "error", err.Error())
		}
		return nil, false
	}
	var ov Overview
	if err := json.Unmarshal(data, &ov); err != nil {
		c.log.Warn("discarding corrupt cache entry", "error", err.Error())
		return nil, false
	}
	return &ov, true
}

// SetOverview stores an overview under the current group version.
func (c *RedisCache) SetOverview(ctx context.Context, q Query, ov *Overview) {
	data, err := json.Marshal(ov)
	if err != nil {
		c.log.Warn("encoding overview for cache", "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, c.key(ctx, q), data, c.ttl).Err(); err != nil {
		c.log.Debug("overview cache write failed", "error", err.Error())
	}
}

// Invalidate bumps the group version.
func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Warn("overview cache invalidation failed", "error", err.Error())
	}
}

// NoopCache disables caching when Redis is not configured.
type NoopCache struct{}

func (NoopCache) GetOverview(context.Context, Query) (*Overview, bool) { return nil, false }
func (NoopCache) SetOverview(context.Context, Query, *Overview)        {}
func (NoopCache) Invalidate(context.Context)                           {}
