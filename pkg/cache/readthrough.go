package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cacher is what read-through caching and invalidation need from a store.
// A missing key is reported as redis.Nil.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultSetTimeout   = 5 * time.Second
	keySeparator        = ":"
)

// Key joins parts into a cache key, e.g. Key("report", "OPD", "2024-01-01").
func Key(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// Family is the prefix shared by every key that starts with parts.
func Family(parts ...string) string {
	return Key(parts...) + keySeparator
}

// addTTLJitter adds up to ±15s random jitter to TTL to avoid mass expiration.
func addTTLJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	jitter := time.Duration(rand.Intn(30)-15) * time.Second
	if ttl+jitter <= 0 {
		return ttl
	}
	return ttl + jitter
}

// load runs fn and stores the result. The write is detached from ctx so a
// caller that gives up does not throw the computed value away.
func load[T any](
	ctx context.Context,
	c Cacher,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T

	value, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSetTimeout)
	defer cancel()

	ttl = addTTLJitter(ttl)
	if err := c.Set(setCtx, key, value, ttl); err != nil {
		logger.Warn("failed to store cache entry", zap.String("key", key), zap.Error(err))
	} else {
		logger.Debug("cache entry stored", zap.String("key", key), zap.Duration("ttl", ttl))
	}
	return value, nil
}

// refreshAhead reloads key in the background after a hit. Concurrent hits on
// the same key share one reload.
func refreshAhead[T any](
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) {
	go func() {
		time.Sleep(time.Duration(rand.Intn(1000)) * time.Millisecond)

		_, _, _ = sf.Do(key+keySeparator+"refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := load(ctx, c, key, ttl, logger, fn)
			if err != nil {
				logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
			}
			return value, err
		})
	}()
}

// FindAndCache implements read-through caching with singleflight and refresh-ahead logic.
// Any cache read error other than a hit is treated as a miss.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}

	var cached T
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil:
		logger.Debug("cache hit", zap.String("key", key))
		refreshAhead(c, sf, key, ttl, logger, fn)
		return cached, nil

	case errors.Is(err, redis.Nil):
		logger.Debug("cache miss", zap.String("key", key))

	default:
		logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := sf.Do(key, func() (any, error) {
		return load(ctx, c, key, ttl, logger, fn)
	})
	if err != nil {
		logger.Error("fetch failed", zap.String("key", key), zap.Error(err))
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}

	if shared {
		logger.Debug("singleflight shared result", zap.String("key", key))
	}

	return value, nil
}

// Invalidate drops every entry under prefix, typically a Family, after the
// data behind it changed. The delete outlives a cancelled ctx.
func Invalidate(ctx context.Context, c Cacher, prefix string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSetTimeout)
	defer cancel()

	n, err := c.DeletePrefix(delCtx, prefix)
	if err != nil {
		logger.Warn("cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		return fmt.Errorf("invalidate %q: %w", prefix, err)
	}
	logger.Debug("cache invalidated", zap.String("prefix", prefix), zap.Int("deleted", n))
	return nil
}
