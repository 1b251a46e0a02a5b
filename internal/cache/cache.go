// Package cache provides a TTL key-value cache backed by Redis.
//
// Cache failures are never fatal: callers treat any error other than ErrMiss
// as a miss too, logging it and falling through to the durable store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss indicates the key was not present in the cache.
var ErrMiss = errors.New("cache miss")

// Cache is the key-value contract consumed by the memory, protocol, and chat
// layers. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value, or ErrMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Key builds a colon-separated cache key from parts.
func Key(parts ...any) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(p)
	}
	return key
}
