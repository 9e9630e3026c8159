package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenCache fails every operation as if Redis went away.
type brokenCache struct{}

var errBroken = errors.New("connection refused")

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, &CacheError{Op: "get", Err: errBroken}
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return &CacheError{Op: "set", Err: errBroken}
}
func (brokenCache) Delete(context.Context, string) error { return &CacheError{Op: "del", Err: errBroken} }
func (brokenCache) Exists(context.Context, string) (bool, error) {
	return false, &CacheError{Op: "exists", Err: errBroken}
}
func (brokenCache) Keys(context.Context, string) ([]string, error) {
	return nil, &CacheError{Op: "keys", Err: errBroken}
}
func (brokenCache) Increment(context.Context, string, int64) (int64, error) {
	return 0, &CacheError{Op: "incr", Err: errBroken}
}
func (brokenCache) Expire(context.Context, string, time.Duration) error {
	return &CacheError{Op: "expire", Err: errBroken}
}
func (brokenCache) Ping(context.Context) error { return &CacheError{Op: "ping", Err: errBroken} }
func (brokenCache) Close() error               { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackCache_ServesFromMemoryWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(nil)
	fc := newFallback(brokenCache{}, mem, discardLogger())
	defer fc.Close()

	require.NoError(t, fc.Set(ctx, "k", []byte("v"), 0))

	got, err := fc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	n, err := fc.Increment(ctx, "c", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := fc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, fc.Delete(ctx, "k"))
	_, err = fc.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestFallbackCache_PrimaryMissIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryCache(&Config{Prefix: "p:", Enabled: true})
	mem := NewMemoryCache(nil)
	fc := newFallback(primary, mem, discardLogger())
	defer fc.Close()

	require.NoError(t, mem.Set(ctx, "only-in-memory", []byte("x"), 0))

	_, err := fc.Get(ctx, "only-in-memory")
	assert.True(t, IsNotFound(err))
	assert.True(t, fc.UsingPrimary())
}

func TestFallbackCache_WithoutPrimary(t *testing.T) {
	ctx := context.Background()
	fc := newFallback(nil, NewMemoryCache(nil), discardLogger())
	defer fc.Close()

	assert.False(t, fc.UsingPrimary())
	require.NoError(t, fc.Ping(ctx))
}

func TestFallbackCache_Reconnect(t *testing.T) {
	ctx := context.Background()
	fc := newFallback(nil, NewMemoryCache(nil), discardLogger())
	defer fc.Close()

	assert.ErrorIs(t, fc.Reconnect(ctx), errNoPrimary)

	dials := 0
	fc.connect = func() (Cache, error) {
		dials++
		if dials == 1 {
			return nil, errBroken
		}
		return NewMemoryCache(&Config{Prefix: "p:", Enabled: true}), nil
	}

	assert.ErrorIs(t, fc.Reconnect(ctx), errBroken)
	assert.False(t, fc.UsingPrimary())

	require.NoError(t, fc.Reconnect(ctx))
	assert.True(t, fc.UsingPrimary())

	require.NoError(t, fc.Reconnect(ctx))
	assert.Equal(t, 2, dials)
}
