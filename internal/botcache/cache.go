// Package botcache caches bot read models in Redis.
package botcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/pkg/redis"
)

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache stores BotConfig values keyed by bot id.
type Cache struct {
	client KV
	ttl    time.Duration
}

// NewCache constructs a bot cache. A nil client disables caching.
func NewCache(client KV, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached config, or nil on a miss.
func (c *Cache) Get(ctx context.Context, botID int64) (*domain.BotConfig, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(botID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached bot: %w", err)
	}

	var cfg domain.BotConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode cached bot: %w", err)
	}

	return &cfg, nil
}

// Set stores cfg for the configured TTL.
func (c *Cache) Set(ctx context.Context, cfg *domain.BotConfig) error {
	if c == nil || c.client == nil || cfg == nil || c.ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode bot for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(cfg.Bot.ID), payload, c.ttl); err != nil {
		return fmt.Errorf("set cached bot: %w", err)
	}

	return nil
}

// Invalidate drops the cached entry for botID.
func (c *Cache) Invalidate(ctx context.Context, botID int64) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Delete(ctx, cacheKey(botID)); err != nil {
		return fmt.Errorf("delete cached bot: %w", err)
	}

	return nil
}

func cacheKey(botID int64) string {
	return fmt.Sprintf("bot:%d:config", botID)
}
