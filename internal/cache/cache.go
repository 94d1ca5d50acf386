// Package cache provides a keyed cache with per-entry TTL on top of a
// pluggable byte store (in-memory or Redis).
//
// Keys are namespaced by purpose, e.g. "artist-details:...", "artist-search:...",
// "band:..." and "registered-bands:...". Values are JSON encoded so both
// stores behave the same way.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/metrics"
)

// Store is the backing key-value store. Implementations must be safe for
// concurrent use and expire entries after their TTL.
type Store interface {
	// Get returns (nil, false, nil) when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a cache-aside helper over a Store.
type Cache struct {
	store  Store
	group  singleflight.Group
	logger zerolog.Logger
}

// New creates a Cache over store.
func New(store Store) *Cache {
	return &Cache{
		store:  store,
		logger: logging.WithComponent("cache"),
	}
}

// Set stores value under key, overwriting any existing entry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, data, ttl)
}

// lookup decodes the entry for key into dst and reports whether it was found.
// Store and decode failures count as misses.
func (c *Cache) lookup(ctx context.Context, key string, dst any) bool {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		ok = false
	}
	if ok {
		if err := json.Unmarshal(data, dst); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
			ok = false
		}
	}
	c.trace(key, ok)
	return ok
}

func (c *Cache) trace(key string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheRequests.WithLabelValues(namespace(key), result).Inc()
	c.logger.Debug().Str("key", key).Str("result", result).Msg("cache lookup")
}

func (c *Cache) save(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// TryGet returns the cached value for key without populating on a miss.
func TryGet[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T
	if !c.lookup(ctx, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// GetOrCreate returns the cached value for key, or calls factory and caches
// its result for ttl. Concurrent misses may both run factory; the last write wins.
func GetOrCreate[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func() T) T {
	if v, ok := TryGet[T](ctx, c, key); ok {
		return v
	}
	v := factory()
	c.save(ctx, key, v, ttl)
	return v
}

// FactoryTimeout bounds a shared factory call in GetOrCreateContext.
const FactoryTimeout = 30 * time.Second

// GetOrCreateContext is the blocking variant of GetOrCreate for fallible,
// context-aware factories. Concurrent misses on the same key share a single
// factory call. Factory errors are returned and nothing is cached.
//
// The shared call keeps the first caller's values but not its cancellation,
// and is bounded by FactoryTimeout. A caller whose ctx ends stops waiting
// with ctx.Err(); the call keeps running for the others.
func GetOrCreateContext[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func(context.Context) (T, error)) (T, error) {
	if v, ok := TryGet[T](ctx, c, key); ok {
		return v, nil
	}

	var zero T
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FactoryTimeout)
		defer cancel()

		v, err := factory(fctx)
		if err != nil {
			return v, err
		}
		c.save(fctx, key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// namespace returns the key prefix before the first ':'.
func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "none"
}

// Key joins parts with ':' after lower-casing them, producing stable keys
// for case-insensitive inputs.
func Key(ns string, parts ...string) string {
	var b strings.Builder
	b.WriteString(ns)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strings.ToLower(strings.TrimSpace(p)))
	}
	return b.String()
}
