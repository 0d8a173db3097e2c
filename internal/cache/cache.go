// internal/cache/cache.go

// Package cache provides the read-through cache used by the listing endpoints.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/config"
)

var (
	ErrCacheMiss   = errors.New("cache: key not found")
	ErrCacheClosed = errors.New("cache: closed")
)

// Cache is the capability injected into services. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// New returns a Redis cache when a URL is configured and an in-process cache otherwise.
func New(redisCfg config.RedisConfig, cacheCfg config.CacheConfig) (Cache, error) {
	if redisCfg.URL != "" {
		c, err := NewRedisCache(RedisOptions{
			URL:        redisCfg.URL,
			Prefix:     redisCfg.Prefix,
			DefaultTTL: cacheCfg.NominationTTL,
		})
		if err != nil {
			return nil, err
		}
		logrus.Info("Using Redis cache")
		return c, nil
	}

	logrus.Info("Using in-memory cache")
	return NewMemoryCache(cacheCfg.NominationTTL, cacheCfg.CleanupEvery), nil
}

// GetJSON decodes the cached value into dst. It reports false on a miss.
func GetJSON(ctx context.Context, c Cache, key string, dst interface{}) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		// A value we cannot decode is as good as absent.
		_ = c.Delete(ctx, key)
		return false, nil
	}

	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
