package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetJSON decodes the value at key into v. A miss is reported as
// ErrCacheNotFound; a value that does not decode as a CacheError with Op
// "decode".
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &CacheError{Op: "decode", Key: key, Err: err}
	}
	return nil
}

// SetJSON stores v at key as JSON.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &CacheError{Op: "encode", Key: key, Err: err}
	}
	return c.Set(ctx, key, data, ttl)
}

// TakeJSON is GetJSON followed by a delete of the key, for one-shot values.
func TakeJSON(ctx context.Context, c Cache, key string, v any) error {
	if err := GetJSON(ctx, c, key, v); err != nil {
		return err
	}
	if err := c.Delete(ctx, key); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// CountInWindow adds one hit to the counter at key and returns the total.
// The first hit starts a window of the given length; the counter disappears
// when it ends.
func CountInWindow(ctx context.Context, c Cache, key string, window time.Duration) (int64, error) {
	n, err := c.Increment(ctx, key, 1)
	if err != nil {
		return 0, err
	}
	if n == 1 && window > 0 {
		if err := c.Expire(ctx, key, window); err != nil {
			return n, err
		}
	}
	return n, nil
}
