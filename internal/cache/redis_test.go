package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set REDIS_TEST_URL (e.g. redis://localhost:6379/15) to run these against a real server.
func newTestRedis(t *testing.T) *RedisCache {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	c, err := NewRedisCache(RedisOptions{
		URL:        url,
		Prefix:     "sap-test-" + uuid.NewString()[:8] + ":",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.DeleteByPrefix(context.Background(), "")
		_ = c.Close()
	})
	return c
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheDeleteByPrefix(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"nominations:list:1", "nominations:list:2", "categories:active"} {
		require.NoError(t, c.Set(ctx, key, []byte("x"), 0))
	}

	require.NoError(t, c.DeleteByPrefix(ctx, "nominations:"))

	_, err := c.Get(ctx, "nominations:list:2")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "categories:active")
	assert.NoError(t, err)
}

func TestNewRedisCacheRequiresURL(t *testing.T) {
	_, err := NewRedisCache(RedisOptions{})
	assert.Error(t, err)
}
