// Package cache stores finished extraction results in Redis, keyed by
// content hash, so repeated uploads skip the provider tiers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

const keyPrefix = "policy-extractor:result:"

// store is the subset of redis.Cmdable used by RedisCache.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type RedisCache struct {
	client *redis.Client
	kv     store
	logger *slog.Logger
}

// New connects to url (redis://...) and verifies the connection.
func New(ctx context.Context, url string, logger *slog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	c := newRedisCache(client, logger)
	c.client = client
	return c, nil
}

func newRedisCache(kv store, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{kv: kv, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (entity.ExtractionResult, bool, error) {
	var res entity.ExtractionResult
	raw, err := c.kv.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return res, false, nil
	}
	if err != nil {
		return res, false, err
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		// a stale shape is a miss, not an outage
		c.logger.Warn("cache.decode_failed", "key", key, "error", err)
		return entity.ExtractionResult{}, false, nil
	}
	return res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, res entity.ExtractionResult, ttl time.Duration) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return c.kv.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

func (c *RedisCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
