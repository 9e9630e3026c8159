package cache

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// MemoryCache implements an in-memory cache with TTL support
type MemoryCache struct {
	config    *Config
	items     map[string]*memoryCacheItem
	mu        sync.RWMutex
	stopCh    chan struct{}
	closeOnce sync.Once
}

type memoryCacheItem struct {
	value      []byte
	expiration time.Time
	hasExpiry  bool
}

func (i *memoryCacheItem) expired(now time.Time) bool {
	return i.hasExpiry && now.After(i.expiration)
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config *Config) *MemoryCache {
	if config == nil {
		config = DefaultConfig()
	}

	mc := &MemoryCache{
		config: config,
		items:  make(map[string]*memoryCacheItem),
		stopCh: make(chan struct{}),
	}

	go mc.cleanupExpired()

	return mc
}

// Get retrieves a value from the cache
func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !mc.config.Enabled {
		return nil, ErrCacheDisabled
	}

	key = mc.prefixKey(key)

	mc.mu.RLock()
	item, exists := mc.items[key]
	mc.mu.RUnlock()

	if !exists {
		return nil, ErrCacheNotFound
	}

	if item.expired(time.Now()) {
		mc.mu.Lock()
		delete(mc.items, key)
		mc.mu.Unlock()
		return nil, ErrCacheNotFound
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a value in the cache with optional TTL
func (mc *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !mc.config.Enabled {
		return ErrCacheDisabled
	}

	key = mc.prefixKey(key)

	if ttl == 0 {
		ttl = mc.config.DefaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	item := &memoryCacheItem{
		value:     stored,
		hasExpiry: ttl > 0,
	}
	if item.hasExpiry {
		item.expiration = time.Now().Add(ttl)
	}

	mc.mu.Lock()
	mc.items[key] = item
	mc.mu.Unlock()

	return nil
}

// Delete removes a value from the cache
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	if !mc.config.Enabled {
		return ErrCacheDisabled
	}

	key = mc.prefixKey(key)

	mc.mu.Lock()
	delete(mc.items, key)
	mc.mu.Unlock()

	return nil
}

// Exists checks if a key exists in the cache
func (mc *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	if !mc.config.Enabled {
		return false, ErrCacheDisabled
	}

	key = mc.prefixKey(key)

	mc.mu.RLock()
	item, exists := mc.items[key]
	mc.mu.RUnlock()

	if !exists || item.expired(time.Now()) {
		return false, nil
	}
	return true, nil
}

// Keys returns all keys matching the pattern
func (mc *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if !mc.config.Enabled {
		return nil, ErrCacheDisabled
	}

	pattern = mc.prefixKey(pattern)
	now := time.Now()

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	keys := make([]string, 0)
	for key, item := range mc.items {
		if item.expired(now) {
			continue
		}
		if matched, _ := filepath.Match(pattern, key); matched {
			keys = append(keys, mc.unprefixKey(key))
		}
	}

	return keys, nil
}

// Increment increments a numeric value. A new counter keeps no expiry until
// Expire is called, matching Redis INCRBY.
func (mc *MemoryCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if !mc.config.Enabled {
		return 0, ErrCacheDisabled
	}

	key = mc.prefixKey(key)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists || item.expired(time.Now()) {
		mc.items[key] = &memoryCacheItem{value: []byte(strconv.FormatInt(delta, 10))}
		return delta, nil
	}

	current, err := strconv.ParseInt(string(item.value), 10, 64)
	if err != nil {
		return 0, &CacheError{Op: "increment", Key: key, Err: err}
	}

	next := current + delta
	item.value = []byte(strconv.FormatInt(next, 10))

	return next, nil
}

// Expire sets a new TTL for an existing key
func (mc *MemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if !mc.config.Enabled {
		return ErrCacheDisabled
	}

	key = mc.prefixKey(key)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists {
		return ErrCacheNotFound
	}

	if ttl > 0 {
		item.hasExpiry = true
		item.expiration = time.Now().Add(ttl)
	} else {
		item.hasExpiry = false
	}

	return nil
}

// Ping checks if the cache is accessible
func (mc *MemoryCache) Ping(ctx context.Context) error {
	if !mc.config.Enabled {
		return ErrCacheDisabled
	}
	return nil
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stopCh) })
	return nil
}

// cleanupExpired periodically removes expired items
func (mc *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.removeExpiredItems()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MemoryCache) removeExpiredItems() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	for key, item := range mc.items {
		if item.expired(now) {
			delete(mc.items, key)
		}
	}
}

func (mc *MemoryCache) prefixKey(key string) string {
	return mc.config.Prefix + key
}

func (mc *MemoryCache) unprefixKey(key string) string {
	if len(key) >= len(mc.config.Prefix) {
		return key[len(mc.config.Prefix):]
	}
	return key
}
