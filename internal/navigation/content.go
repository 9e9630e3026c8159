package navigation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Component is a renderable page body.
type Component interface {
	Render(w io.Writer, data any) error
}

// Loader produces a page component on demand.
type Loader func(ctx context.Context) (Component, error)

// ComponentMap maps page keys to their deferred loaders.
type ComponentMap map[string]Loader

// ContentKind tells the layout what to draw in the content area.
type ContentKind int

const (
	ContentHome ContentKind = iota
	ContentNotFound
	ContentLoading
	ContentReady
	ContentFailed
)

func (k ContentKind) String() string {
	switch k {
	case ContentHome:
		return "home"
	case ContentNotFound:
		return "not_found"
	case ContentLoading:
		return "loading"
	case ContentReady:
		return "ready"
	case ContentFailed:
		return "failed"
	default:
		return fmt.Sprintf("ContentKind(%d)", int(k))
	}
}

// Content is the resolved content area for one page key.
type Content struct {
	Kind      ContentKind
	Key       string
	Component Component
	Err       error
}

// ContentResolver picks the content for the current page key and runs the
// deferred component loads. Concurrent requests for the same key share one
// load. Successful loads are memoised; failures are not, so the next
// selection of the key tries again.
type ContentResolver struct {
	homeKey    string
	components ComponentMap
	logger     *slog.Logger
	observer   Observer

	group  singleflight.Group
	mu     sync.RWMutex
	loaded map[string]Component

	// loads run on baseCtx rather than the request context so that a load
	// outlives the request that started it.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ContentOption configures a ContentResolver.
type ContentOption func(*ContentResolver)

// WithObserver reports load outcomes to o.
func WithObserver(o Observer) ContentOption {
	return func(r *ContentResolver) {
		if o != nil {
			r.observer = o
		}
	}
}

func NewContentResolver(homeKey string, components ComponentMap, logger *slog.Logger, opts ...ContentOption) *ContentResolver {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &ContentResolver{
		homeKey:    homeKey,
		components: components,
		logger:     logger,
		observer:   nopObserver{},
		loaded:     make(map[string]Component),
		baseCtx:    ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Has reports whether key has a component registered.
func (r *ContentResolver) Has(key string) bool {
	_, ok := r.components[key]
	return ok
}

// Keys returns the registered component keys.
func (r *ContentResolver) Keys() []string {
	keys := make([]string, 0, len(r.components))
	for k := range r.components {
		keys = append(keys, k)
	}
	return keys
}

// Resolve returns the content for key. If the component has not finished
// loading within wait, ContentLoading is returned and the load carries on in
// the background. Resolve never fails: unknown keys yield ContentNotFound.
func (r *ContentResolver) Resolve(ctx context.Context, key string, wait time.Duration) Content {
	if key == r.homeKey {
		return Content{Kind: ContentHome, Key: key}
	}

	loader, ok := r.components[key]
	if !ok {
		r.observer.PageNotFound(key)
		return Content{Kind: ContentNotFound, Key: key}
	}

	r.mu.RLock()
	comp, ok := r.loaded[key]
	r.mu.RUnlock()
	if ok {
		return Content{Kind: ContentReady, Key: key, Component: comp}
	}

	ch := r.load(key, loader)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return Content{Kind: ContentFailed, Key: key, Err: res.Err}
		}
		return Content{Kind: ContentReady, Key: key, Component: res.Val.(Component)}
	case <-timer.C:
		return Content{Kind: ContentLoading, Key: key}
	case <-ctx.Done():
		return Content{Kind: ContentLoading, Key: key}
	}
}

func (r *ContentResolver) load(key string, loader Loader) <-chan singleflight.Result {
	r.wg.Add(1)
	shared := r.group.DoChan(key, func() (any, error) {
		start := time.Now()
		comp, err := loader(r.baseCtx)
		if err == nil && comp == nil {
			err = fmt.Errorf("loader returned no component")
		}
		elapsed := time.Since(start)
		r.observer.ContentLoaded(key, err, elapsed)
		if err != nil {
			r.logger.Error("page component load failed", "key", key, "error", err, "duration", elapsed)
			return nil, fmt.Errorf("load component %q: %w", key, err)
		}

		r.mu.Lock()
		r.loaded[key] = comp
		r.mu.Unlock()
		r.logger.Debug("page component loaded", "key", key, "duration", elapsed)
		return comp, nil
	})

	out := make(chan singleflight.Result, 1)
	go func() {
		defer r.wg.Done()
		out <- <-shared
	}()
	return out
}

// Preload loads key's component ahead of its first selection and waits for
// the result. Already memoised keys return at once.
func (r *ContentResolver) Preload(ctx context.Context, key string) error {
	loader, ok := r.components[key]
	if !ok {
		return fmt.Errorf("no component registered for %q", key)
	}
	if r.Loaded(key) {
		return nil
	}
	select {
	case res := <-r.load(key, loader):
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether key's component is already memoised.
func (r *ContentResolver) Loaded(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[key]
	return ok
}

// Forget drops a memoised component so the next resolve loads it again.
func (r *ContentResolver) Forget(key string) {
	r.mu.Lock()
	delete(r.loaded, key)
	r.mu.Unlock()
}

// Wait blocks until every load started so far has finished.
func (r *ContentResolver) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight loads and waits for them to return.
func (r *ContentResolver) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}
