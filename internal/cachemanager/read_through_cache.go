package cachemanager

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats counts read-through lookups.
type Stats struct {
	Hits   int64
	Misses int64
}

// ReadThroughCache computes values with fn on a miss and stores them.
// Errors from fn are returned and not cached.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool

	hits   atomic.Int64
	misses atomic.Int64
}

// NewReadThroughCache wraps cache. With shouldSkipCache every call goes to fn.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

// Get returns the cached value for key or computes it from input.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		r.misses.Add(1)
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		r.hits.Add(1)
		return value, nil
	}
	return r.fill(ctx, key, input, ttl)
}

// GetWithRefresh is Get, but a hit also restarts the entry's expiration.
func (r *ReadThroughCache[K, V, I]) GetWithRefresh(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		r.misses.Add(1)
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		r.hits.Add(1)
		return value, nil
	}
	return r.fill(ctx, key, input, ttl)
}

func (r *ReadThroughCache[K, V, I]) fill(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	r.misses.Add(1)
	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}
	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}

// Stats returns the hit and miss counts so far.
func (r *ReadThroughCache[K, V, I]) Stats() Stats {
	return Stats{Hits: r.hits.Load(), Misses: r.misses.Load()}
}
