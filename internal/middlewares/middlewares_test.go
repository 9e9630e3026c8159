package middlewares

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"admin_dashboard/internal/cache"
	"admin_dashboard/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	c := cache.NewMemoryCache(nil)
	t.Cleanup(func() { c.Close() })

	var limited string
	rl := NewRateLimiter(&RateLimitConfig{
		Cache:          c,
		Logger:         discardLogger(),
		Limit:          2,
		Window:         time.Minute,
		OnLimitReached: func(_ *http.Request, key string) { limited = key },
	})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/login")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, post("/login").Code)

	rec = post("/login")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "10.0.0.1", limited)

	rec = post("/api/login")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rl.Reset(req)
	assert.Equal(t, http.StatusNoContent, post("/login").Code)
}

func TestRateLimiter_SeparateKeysAndSkipper(t *testing.T) {
	c := cache.NewMemoryCache(nil)
	t.Cleanup(func() { c.Close() })
	rl := NewRateLimiter(&RateLimitConfig{
		Cache:   c,
		Logger:  discardLogger(),
		Limit:   1,
		Skipper: func(r *http.Request) bool { return r.Method == http.MethodGet },
	})
	ctx := context.Background()

	ok, _ := rl.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = rl.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = rl.Allow(ctx, "b")
	assert.True(t, ok)

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestParsePagination(t *testing.T) {
	cfg := &PaginationConfig{DefaultPageSize: 10, MaxPageSize: 50}
	tests := []struct {
		name      string
		query     string
		preferred int
		want      PaginationParams
	}{
		{name: "defaults", query: "", want: PaginationParams{Page: 1, Limit: 10}},
		{name: "user preference", query: "page=3", preferred: 20, want: PaginationParams{Page: 3, Limit: 20, Offset: 40}},
		{name: "explicit limit wins", query: "limit=5&page=2", preferred: 20, want: PaginationParams{Page: 2, Limit: 5, Offset: 5}},
		{name: "pageSize alias", query: "pageSize=15", want: PaginationParams{Page: 1, Limit: 15}},
		{name: "capped", query: "limit=1000", want: PaginationParams{Page: 1, Limit: 50}},
		{name: "garbage ignored", query: "page=-1&limit=abc", want: PaginationParams{Page: 1, Limit: 10}},
		{name: "search trimmed", query: "search=+widget+", want: PaginationParams{Page: 1, Limit: 10, Search: "widget"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/products?"+tt.query, nil)
			got := ParsePagination(req, cfg, tt.preferred)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestPaginationMeta(t *testing.T) {
	p := &PaginationParams{Page: 2, Limit: 10, Offset: 10}
	p.SetTotal(25)

	meta := p.BuildMeta()
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)
	require.NotNil(t, meta.NextPage)
	assert.Equal(t, 3, *meta.NextPage)
	assert.Equal(t, []int{1, 2, 3}, p.PageNumbers())

	opts := p.ListOptions()
	assert.Equal(t, 10, opts.Offset)
	assert.Equal(t, 10, opts.Limit)

	single := &PaginationParams{Page: 1, Limit: 10}
	single.SetTotal(3)
	assert.Nil(t, single.PageNumbers())
	assert.Nil(t, single.BuildMeta().PrevPage)
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	Recovery(&RecoveryConfig{Logger: discardLogger()})(panicky).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req = req.WithContext(observability.WithRequestID(req.Context(), "req-1"))
	Recovery(&RecoveryConfig{Logger: discardLogger()})(panicky).ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "req-1", body["request_id"])

	rec = httptest.NewRecorder()
	Recovery(&RecoveryConfig{Logger: discardLogger(), Development: true})(panicky).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Contains(t, rec.Body.String(), "Panic: boom")
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	h := Recovery(&RecoveryConfig{Logger: discardLogger()})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sess := &UserSession{SessionID: "s", UserID: "u-42"}

	h := Logger(&LoggerConfig{Logger: logger, SkipPaths: []string{"/health/live"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WithSession(r.Context(), sess)
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("nope"))
		}))

	req := httptest.NewRequest(http.MethodGet, "/missing?x=1", nil)
	req = req.WithContext(observability.WithRequestID(req.Context(), "rid"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/missing", entry["path"])
	assert.EqualValues(t, 404, entry["status"])
	assert.EqualValues(t, 4, entry["response_size"])
	assert.Equal(t, "rid", entry["request_id"])
	assert.Equal(t, "x=1", entry["query"])
	assert.Equal(t, "u-42", entry["user_id"])

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Zero(t, buf.Len())
}

func TestSecurityHeaders(t *testing.T) {
	h := Security(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://api.dicebear.com")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000", rec.Header().Get("Strict-Transport-Security"))
}
