package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is the key/value store behind sessions, navigation state and the
// login rate limiter.
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with optional TTL (0 = default TTL)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all keys matching the pattern (use "*" for all keys)
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Increment adds delta to a numeric value, creating it at delta if absent
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Expire sets a new TTL for an existing key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks if the cache is accessible
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// Config holds common cache configuration
type Config struct {
	// Default TTL for cache entries (0 = no expiration)
	DefaultTTL time.Duration

	// Key prefix for all cache keys
	Prefix string

	// Enable/disable cache (useful for testing)
	Enabled bool
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: 30 * time.Minute,
		Prefix:     "dashboard:",
		Enabled:    true,
	}
}

// CacheError represents a cache operation error
type CacheError struct {
	Op  string // Operation that failed
	Key string // Cache key involved
	Err error  // Underlying error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return "cache " + e.Op + " " + e.Key + " failed: " + e.Err.Error()
	}
	return "cache " + e.Op + " failed: " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Common cache errors
var (
	ErrCacheNotFound    = &CacheError{Op: "get", Err: errKeyNotFound}
	ErrCacheUnavailable = &CacheError{Op: "connection", Err: errUnavailable}
	ErrCacheDisabled    = &CacheError{Op: "operation", Err: errDisabled}
)

var (
	errKeyNotFound = customError("key not found")
	errUnavailable = customError("cache unavailable")
	errDisabled    = customError("cache disabled")
)

type customError string

func (e customError) Error() string {
	return string(e)
}

// IsNotFound reports whether err is a cache miss, however it was wrapped.
func IsNotFound(err error) bool {
	return errors.Is(err, errKeyNotFound)
}
