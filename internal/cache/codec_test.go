package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type navSnapshot struct {
	Current string   `json:"current"`
	Open    []string `json:"open"`
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	in := navSnapshot{Current: "4-1", Open: []string{"4"}}
	require.NoError(t, SetJSON(ctx, c, "nav", in, time.Minute))

	var out navSnapshot
	require.NoError(t, GetJSON(ctx, c, "nav", &out))
	assert.Equal(t, in, out)

	require.NoError(t, c.Set(ctx, "garbage", []byte("{"), 0))
	var cerr *CacheError
	require.ErrorAs(t, GetJSON(ctx, c, "garbage", &out), &cerr)
	assert.Equal(t, "decode", cerr.Op)

	assert.True(t, IsNotFound(GetJSON(ctx, c, "missing", &out)))
}

func TestTakeJSON(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	require.NoError(t, SetJSON(ctx, c, "flash", map[string]string{"kind": "success"}, 0))
	var got map[string]string
	require.NoError(t, TakeJSON(ctx, c, "flash", &got))
	assert.Equal(t, "success", got["kind"])
	assert.True(t, IsNotFound(TakeJSON(ctx, c, "flash", &got)))
}

func TestCountInWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	for want := int64(1); want <= 3; want++ {
		n, err := CountInWindow(ctx, c, "login:1.2.3.4", 20*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.Eventually(t, func() bool {
		ok, err := c.Exists(ctx, "login:1.2.3.4")
		return err == nil && !ok
	}, time.Second, 5*time.Millisecond)

	n, err := CountInWindow(ctx, c, "login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
