package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Key prefixes of cached payloads. Enrollment payloads embed course & user fields.
const (
	CourseCachePrefix     = "course:"
	EnrollmentCachePrefix = "enrollment:"
)

// Cache stores serialized response payloads by key.
type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// CachedJSON reads key from the cache or falls back to load and caches its JSON encoding.
// A failing cache is logged and bypassed.
func CachedJSON[T any](ctx context.Context, cache Cache, logger Logger, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var val T
	if cache != nil {
		data, ok, err := cache.Get(ctx, key)
		if err != nil {
			logger.Warn(fmt.Sprintf("cache get %q: %v", key, err), err)
		} else if ok {
			if err = json.Unmarshal(data, &val); err == nil {
				return val, nil
			}
			logger.Warn(fmt.Sprintf("cache decode %q: %v", key, err), err)
		}
	}

	val, err := load()
	if err != nil {
		return val, err
	}

	if cache != nil {
		data, err := json.Marshal(val)
		if err == nil {
			err = cache.Set(ctx, key, data, ttl)
		}
		if err != nil {
			logger.Warn(fmt.Sprintf("cache set %q: %v", key, err), err)
		}
	}
	return val, nil
}

// InvalidateCache drops every key under the prefixes, logging failures.
func InvalidateCache(ctx context.Context, cache Cache, logger Logger, prefixes ...string) {
	if cache == nil {
		return
	}
	for _, prefix := range prefixes {
		if err := cache.DeletePrefix(ctx, prefix); err != nil {
			logger.Warn(fmt.Sprintf("cache invalidate %q: %v", prefix, err), err)
		}
	}
}
