package documents

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RenderCache keeps recently rendered iframe HTML in Redis, keyed by the
// cache validator so entries self-invalidate when the template changes.
// A nil cache disables caching.
type RenderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRenderCache builds the cache wrapper.
func NewRenderCache(client *redis.Client, ttl time.Duration) *RenderCache {
	if client == nil {
		return nil
	}
	return &RenderCache{client: client, ttl: ttl}
}

// Get returns cached HTML for the validator, if present.
func (c *RenderCache) Get(ctx context.Context, validator string) (string, bool) {
	if c == nil {
		return "", false
	}
	value, err := c.client.Get(ctx, cacheKey(validator)).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// Set stores rendered HTML under the validator.
func (c *RenderCache) Set(ctx context.Context, validator, html string) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(validator), html, c.ttl).Err()
}

func cacheKey(validator string) string {
	return "documents:iframe:" + validator
}
