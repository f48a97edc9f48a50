package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the handful of commands the cache issues.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  time.Duration
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{data: map[string]string{}}
	cache := NewRedisCache(client, time.Minute)

	_, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	types := []VariantType{{ID: "t1", Name: "color", SortOrder: 1, CreatedAt: time.Unix(0, 0).UTC()}}
	require.NoError(t, cache.Store(ctx, types))
	assert.Equal(t, time.Minute, client.ttl)

	got, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types, got)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheCorruptEntry(t *testing.T) {
	client := &fakeRedis{data: map[string]string{typesCacheKey: "{not json"}}
	_, ok, err := NewRedisCache(client, time.Minute).Load(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
}
