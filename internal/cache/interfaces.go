// Package cache holds short-lived values for the sync engine, currently the
// POS bearer credential.
package cache

import (
	"context"
	"time"
)

// Cache stores byte values under a key until their TTL runs out.
// MemoryCache is per process; RedisCache lets several syncd instances share
// one credential.
type Cache interface {
	// Get returns ErrCacheMiss for absent or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheError is the constant error type returned by Get.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss reports that a key is absent or expired.
const ErrCacheMiss CacheError = "cache: miss"
