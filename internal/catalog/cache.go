package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const typesCacheKey = "variant-inventory:variant-types"

// Cache holds the ordered type list between registrations.
type Cache interface {
	Load(ctx context.Context) ([]VariantType, bool, error)
	Store(ctx context.Context, types []VariantType) error
	Invalidate(ctx context.Context) error
}

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Load(ctx context.Context) ([]VariantType, bool, error) {
	raw, err := c.client.Get(ctx, typesCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", typesCacheKey, err)
	}

	var types []VariantType
	if err := json.Unmarshal(raw, &types); err != nil {
		return nil, false, fmt.Errorf("decode cached variant types: %w", err)
	}
	return types, true, nil
}

func (c *RedisCache) Store(ctx context.Context, types []VariantType) error {
	raw, err := json.Marshal(types)
	if err != nil {
		return fmt.Errorf("encode variant types: %w", err)
	}
	if err := c.client.Set(ctx, typesCacheKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", typesCacheKey, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, typesCacheKey).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", typesCacheKey, err)
	}
	return nil
}
