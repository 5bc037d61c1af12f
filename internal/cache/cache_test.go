package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "token", []byte("abc"), time.Minute))

	got, err := c.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", []byte("1"), time.Second)
	c.Set(ctx, "b", []byte("2"), time.Hour)
	now = now.Add(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	_, err := c.Get(ctx, "b")
	assert.NoError(t, err)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "test")

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "token", []byte("abc"), time.Minute))
	assert.True(t, mr.Exists("test:cache:token"))

	got, err := c.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "token", []byte("x"), time.Minute))
	require.NoError(t, c.Delete(ctx, "token"))
	_, err = c.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
