package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// FallbackCache implements a cache with Redis primary and memory fallback
type FallbackCache struct {
	mu       sync.RWMutex
	primary  Cache
	fallback Cache
	logger   *slog.Logger

	// connect dials the primary again; nil when there is nothing to dial.
	connect func() (Cache, error)
}

// FallbackConfig holds fallback cache configuration
type FallbackConfig struct {
	// Redis configuration
	Redis *RedisConfig

	// Memory cache configuration
	Memory *Config

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultFallbackConfig returns a default fallback configuration
func DefaultFallbackConfig() *FallbackConfig {
	return &FallbackConfig{
		Redis:  DefaultRedisConfig(),
		Memory: DefaultConfig(),
	}
}

// NewFallbackCache connects to Redis when it can and always keeps a memory
// cache underneath. Redis being down at startup is not an error.
func NewFallbackCache(config *FallbackConfig) *FallbackCache {
	if config == nil {
		config = DefaultFallbackConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Redis != nil && config.Redis.Logger == nil {
		config.Redis.Logger = logger
	}

	var primary Cache
	redisCache, err := NewRedisCache(config.Redis)
	if err != nil {
		logger.Warn("redis cache unavailable, using memory cache only", "error", err)
	} else {
		primary = redisCache
		logger.Info("fallback cache initialized with redis primary")
	}

	fc := newFallback(primary, NewMemoryCache(config.Memory), logger)
	if config.Redis != nil {
		fc.connect = func() (Cache, error) { return NewRedisCache(config.Redis) }
	}
	return fc
}

func newFallback(primary, fallback Cache, logger *slog.Logger) *FallbackCache {
	return &FallbackCache{primary: primary, fallback: fallback, logger: logger}
}

func (fc *FallbackCache) current() Cache {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.primary
}

// UsingPrimary reports whether Redis is serving reads.
func (fc *FallbackCache) UsingPrimary() bool {
	return fc.current() != nil
}

var errNoPrimary = errors.New("no primary cache configured")

// Reconnect dials Redis again when startup left the cache on memory only.
// Values written while Redis was away stay in memory and are not copied.
func (fc *FallbackCache) Reconnect(ctx context.Context) error {
	if fc.UsingPrimary() {
		return nil
	}
	if fc.connect == nil {
		return errNoPrimary
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	primary, err := fc.connect()
	if err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.primary != nil {
		// lost a race with another reconnect
		return primary.Close()
	}
	fc.primary = primary
	fc.logger.Info("redis cache reconnected")
	return nil
}

// Get retrieves a value from cache (primary first, then fallback)
func (fc *FallbackCache) Get(ctx context.Context, key string) ([]byte, error) {
	if primary := fc.current(); primary != nil {
		value, err := primary.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if IsNotFound(err) {
			return nil, err
		}
		fc.logger.Warn("primary cache get failed, trying fallback", "error", err, "key", key)
	}

	return fc.fallback.Get(ctx, key)
}

// Set stores a value in both caches
func (fc *FallbackCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if primary := fc.current(); primary != nil {
		if err := primary.Set(ctx, key, value, ttl); err != nil {
			fc.logger.Warn("primary cache set failed", "error", err, "key", key)
		}
	}

	if err := fc.fallback.Set(ctx, key, value, ttl); err != nil {
		fc.logger.Error("fallback cache set failed", "error", err, "key", key)
		return err
	}

	return nil
}

// Delete removes a value from both caches
func (fc *FallbackCache) Delete(ctx context.Context, key string) error {
	if primary := fc.current(); primary != nil {
		if err := primary.Delete(ctx, key); err != nil {
			fc.logger.Warn("primary cache delete failed", "error", err, "key", key)
		}
	}

	return fc.fallback.Delete(ctx, key)
}

// Exists checks if a key exists in either cache
func (fc *FallbackCache) Exists(ctx context.Context, key string) (bool, error) {
	if primary := fc.current(); primary != nil {
		exists, err := primary.Exists(ctx, key)
		if err == nil {
			return exists, nil
		}
		fc.logger.Warn("primary cache exists check failed, trying fallback", "error", err, "key", key)
	}

	return fc.fallback.Exists(ctx, key)
}

// Keys returns all keys matching the pattern
func (fc *FallbackCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if primary := fc.current(); primary != nil {
		keys, err := primary.Keys(ctx, pattern)
		if err == nil {
			return keys, nil
		}
		fc.logger.Warn("primary cache keys failed, trying fallback", "error", err)
	}

	return fc.fallback.Keys(ctx, pattern)
}

// Increment increments a numeric value
func (fc *FallbackCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if primary := fc.current(); primary != nil {
		value, err := primary.Increment(ctx, key, delta)
		if err == nil {
			return value, nil
		}
		fc.logger.Warn("primary cache increment failed, trying fallback", "error", err, "key", key)
	}

	return fc.fallback.Increment(ctx, key, delta)
}

// Expire sets a new TTL for an existing key
func (fc *FallbackCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if primary := fc.current(); primary != nil {
		err := primary.Expire(ctx, key, ttl)
		if err == nil {
			return nil
		}
		if !IsNotFound(err) {
			fc.logger.Warn("primary cache expire failed, trying fallback", "error", err, "key", key)
		}
	}

	return fc.fallback.Expire(ctx, key, ttl)
}

// Ping checks if the primary cache is accessible
func (fc *FallbackCache) Ping(ctx context.Context) error {
	if primary := fc.current(); primary != nil {
		return primary.Ping(ctx)
	}
	return fc.fallback.Ping(ctx)
}

// Close closes both cache connections
func (fc *FallbackCache) Close() error {
	if primary := fc.current(); primary != nil {
		if err := primary.Close(); err != nil {
			fc.logger.Warn("primary cache close failed", "error", err)
		}
	}
	return fc.fallback.Close()
}
