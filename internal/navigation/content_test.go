package navigation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textComponent string

func (c textComponent) Render(w io.Writer, _ any) error {
	_, err := io.WriteString(w, string(c))
	return err
}

func staticLoader(text string, calls *atomic.Int32) Loader {
	return func(context.Context) (Component, error) {
		if calls != nil {
			calls.Add(1)
		}
		return textComponent(text), nil
	}
}

// gatedLoader blocks until release is closed.
func gatedLoader(text string, release <-chan struct{}, calls *atomic.Int32) Loader {
	return func(ctx context.Context) (Component, error) {
		calls.Add(1)
		select {
		case <-release:
			return textComponent(text), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	selected []string
	notFound []string
	loads    []string
}

func (o *recordingObserver) PageSelected(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = append(o.selected, key)
}

func (o *recordingObserver) PageNotFound(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notFound = append(o.notFound, key)
}

func (o *recordingObserver) ContentLoaded(key string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.loads = append(o.loads, key+":"+outcome)
}

func render(t *testing.T, c Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf, nil))
	return buf.String()
}

func TestContentResolver_HomeAndNotFound(t *testing.T) {
	obs := &recordingObserver{}
	r := NewContentResolver("1", ComponentMap{"2": staticLoader("users", nil)}, discardLogger(), WithObserver(obs))
	defer r.Close()

	c := r.Resolve(context.Background(), "1", time.Second)
	assert.Equal(t, ContentHome, c.Kind)

	c = r.Resolve(context.Background(), "does-not-exist", time.Second)
	assert.Equal(t, ContentNotFound, c.Kind)
	assert.Equal(t, "does-not-exist", c.Key)
	assert.Equal(t, []string{"does-not-exist"}, obs.notFound)
}

func TestContentResolver_LoadsAndMemoises(t *testing.T) {
	var calls atomic.Int32
	r := NewContentResolver("1", ComponentMap{"2": staticLoader("users", &calls)}, discardLogger())
	defer r.Close()

	c := r.Resolve(context.Background(), "2", time.Second)
	require.Equal(t, ContentReady, c.Kind)
	assert.Equal(t, "users", render(t, c.Component))

	c = r.Resolve(context.Background(), "2", time.Second)
	require.Equal(t, ContentReady, c.Kind)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, r.Loaded("2"))

	r.Forget("2")
	assert.False(t, r.Loaded("2"))
	r.Resolve(context.Background(), "2", time.Second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestContentResolver_LoadingPlaceholderThenReady(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewContentResolver("1", ComponentMap{"3": gatedLoader("products", release, &calls)}, discardLogger())
	defer r.Close()

	c := r.Resolve(context.Background(), "3", 10*time.Millisecond)
	assert.Equal(t, ContentLoading, c.Kind)

	close(release)
	r.Wait()

	c = r.Resolve(context.Background(), "3", 0)
	require.Equal(t, ContentReady, c.Kind)
	assert.Equal(t, "products", render(t, c.Component))
	assert.Equal(t, int32(1), calls.Load())
}

func TestContentResolver_ConcurrentRequestsShareOneLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewContentResolver("1", ComponentMap{"2": gatedLoader("users", release, &calls)}, discardLogger())
	defer r.Close()

	var wg sync.WaitGroup
	results := make([]Content, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "2", time.Second)
		}(i)
	}

	// Let every caller join the in-flight load before it finishes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, c := range results {
		assert.Equal(t, ContentReady, c.Kind)
	}
}

func TestContentResolver_FailureIsNotMemoised(t *testing.T) {
	var calls atomic.Int32
	obs := &recordingObserver{}
	loader := func(context.Context) (Component, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("template missing")
		}
		return textComponent("profile"), nil
	}
	r := NewContentResolver("1", ComponentMap{"4-1": loader}, discardLogger(), WithObserver(obs))
	defer r.Close()

	c := r.Resolve(context.Background(), "4-1", time.Second)
	require.Equal(t, ContentFailed, c.Kind)
	assert.ErrorContains(t, c.Err, "template missing")
	assert.False(t, r.Loaded("4-1"))

	c = r.Resolve(context.Background(), "4-1", time.Second)
	require.Equal(t, ContentReady, c.Kind)
	assert.Equal(t, "profile", render(t, c.Component))
	assert.Equal(t, []string{"4-1:error", "4-1:ok"}, obs.loads)
}

func TestContentResolver_NilComponentIsAFailure(t *testing.T) {
	loader := func(context.Context) (Component, error) { return nil, nil }
	r := NewContentResolver("1", ComponentMap{"x": loader}, discardLogger())
	defer r.Close()

	c := r.Resolve(context.Background(), "x", time.Second)
	assert.Equal(t, ContentFailed, c.Kind)
}

func TestContentResolver_SupersededLoadCompletesInBackground(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewContentResolver("1", ComponentMap{
		"2": gatedLoader("users", release, &calls),
		"3": staticLoader("products", nil),
	}, discardLogger())
	defer r.Close()

	state := NewState("1")
	state.Select("2")
	c := r.Resolve(context.Background(), state.CurrentPageKey, 5*time.Millisecond)
	assert.Equal(t, ContentLoading, c.Kind)

	// The user moves on before "2" finishes.
	state.Select("3")
	c = r.Resolve(context.Background(), state.CurrentPageKey, time.Second)
	require.Equal(t, ContentReady, c.Kind)
	assert.Equal(t, "products", render(t, c.Component))

	close(release)
	r.Wait()

	// The late result is kept for next time but was never shown for "3".
	assert.True(t, r.Loaded("2"))
	assert.Equal(t, "3", state.CurrentPageKey)
}

func TestContentResolver_RequestContextCancelled(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewContentResolver("1", ComponentMap{"2": gatedLoader("users", release, &calls)}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := r.Resolve(ctx, "2", time.Second)
	assert.Equal(t, ContentLoading, c.Kind)

	// Close cancels the detached load, which then returns ctx.Err().
	require.NoError(t, r.Close())
	assert.False(t, r.Loaded("2"))
}

func TestContentKind_String(t *testing.T) {
	for kind, want := range map[ContentKind]string{
		ContentHome:     "home",
		ContentNotFound: "not_found",
		ContentLoading:  "loading",
		ContentReady:    "ready",
		ContentFailed:   "failed",
		ContentKind(42): fmt.Sprintf("ContentKind(%d)", 42),
	} {
		assert.Equal(t, want, kind.String())
	}
}

func TestContentResolver_Preload(t *testing.T) {
	var calls atomic.Int32
	failing := func(context.Context) (Component, error) { return nil, errors.New("boom") }
	r := NewContentResolver("1", ComponentMap{
		"2": staticLoader("users", &calls),
		"9": failing,
	}, discardLogger())
	defer r.Close()

	require.NoError(t, r.Preload(context.Background(), "2"))
	require.NoError(t, r.Preload(context.Background(), "2"))
	assert.True(t, r.Loaded("2"))
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorContains(t, r.Preload(context.Background(), "9"), "boom")
	assert.False(t, r.Loaded("9"))
	assert.ErrorContains(t, r.Preload(context.Background(), "nope"), "no component")
}

func TestContentResolver_PreloadHonoursContext(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewContentResolver("1", ComponentMap{"2": gatedLoader("users", release, &calls)}, discardLogger())
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Preload(ctx, "2"), context.Canceled)
	close(release)
	r.Wait()
	assert.True(t, r.Loaded("2"))
}
