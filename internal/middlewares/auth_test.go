package middlewares

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"admin_dashboard/internal/cache"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type authFixture struct {
	cfg   *SessionConfig
	cache *cache.MemoryCache
	store *store.MemoryStore
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	c := cache.NewMemoryCache(nil)
	t.Cleanup(func() { c.Close() })
	s := store.NewSeededMemoryStore("unused")
	cfg := &SessionConfig{
		Cache:                  c,
		RolePermissionProvider: security.NewRBAC(s, discardLogger()),
		SecretKey:              []byte("test-secret"),
		Logger:                 discardLogger(),
	}
	cfg.applyDefaults()
	return &authFixture{cfg: cfg, cache: c, store: s}
}

// login creates a session for username and returns its cookie.
func (f *authFixture) login(t *testing.T, username string) (*http.Cookie, string) {
	t.Helper()
	u, err := f.store.GetUserByLogin(context.Background(), username)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	signed, id, err := CreateSession(context.Background(), f.cfg, u.ID, u.Email, u.Username, u.Name, req)
	require.NoError(t, err)
	return &http.Cookie{Name: f.cfg.CookieName, Value: signed}, id
}

func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := GetSessionFromContext(r)
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(s.Username))
	})
}

func TestSessionAuth_ValidSession(t *testing.T) {
	f := newAuthFixture(t)
	cookie, id := f.login(t, "admin")

	var gotID string
	h := SessionAuth(f.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetSessionIDFromContext(r)
		s, ok := GetSessionFromContext(r)
		require.True(t, ok)
		assert.True(t, s.HasRole("admin"))
		assert.True(t, s.HasPermission(store.PermPermissionManage))
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, gotID)
}

func TestSessionAuth_RejectsMissingOrTamperedCookie(t *testing.T) {
	f := newAuthFixture(t)
	cookie, _ := f.login(t, "admin")
	h := SessionAuth(f.cfg)(echoSession())

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		wantCode int
		wantLoc  string
	}{
		{name: "ui without cookie", path: "/users?page=2", wantCode: http.StatusSeeOther, wantLoc: "/login?callbackUrl=%2Fusers%3Fpage%3D2"},
		{name: "ui tampered", path: "/users", cookie: &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}, wantCode: http.StatusSeeOther, wantLoc: "/login?callbackUrl=%2Fusers"},
		{name: "api without cookie", path: "/api/users", wantCode: http.StatusUnauthorized},
		{name: "api unsigned", path: "/api/users", cookie: &http.Cookie{Name: cookie.Name, Value: "plain"}, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
			if tt.wantCode == http.StatusUnauthorized {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "Unauthorized", body["error"])
			}
		})
	}
}

func TestSessionAuth_SkippedPathsAttachSession(t *testing.T) {
	f := newAuthFixture(t)
	f.cfg.SkipPaths = []string{"/login"}
	f.cfg.SkipPrefixes = []string{"/static/"}
	cookie, _ := f.login(t, "user1")
	h := SessionAuth(f.cfg)(echoSession())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "user1", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	f := newAuthFixture(t)
	adminCookie, _ := f.login(t, "admin")
	userCookie, _ := f.login(t, "user1")

	h := SessionAuth(f.cfg)(RequirePermission(f.cfg, store.PermUserCreate, store.PermPermissionManage)(echoSession()))

	for _, path := range []string{"/users/new", "/api/users"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(userCookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/users/new", nil)
	req.AddCookie(adminCookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())
}

func TestRequirePermission_WithoutSession(t *testing.T) {
	f := newAuthFixture(t)
	rec := httptest.NewRecorder()
	RequirePermission(f.cfg, store.PermUserView)(echoSession()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokeSession(t *testing.T) {
	f := newAuthFixture(t)
	cookie, id := f.login(t, "admin")
	require.NoError(t, RevokeSession(context.Background(), f.cfg, id))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	SessionAuth(f.cfg)(echoSession()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokeUserSessions_KeepsCurrent(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	first, keepID := f.login(t, "admin")
	second, _ := f.login(t, "admin")
	other, _ := f.login(t, "user1")

	admin, err := f.store.GetUserByLogin(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, RevokeUserSessions(ctx, f.cfg, admin.ID, keepID))

	h := SessionAuth(f.cfg)(echoSession())
	status := func(c *http.Cookie) int {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, status(first))
	assert.Equal(t, http.StatusUnauthorized, status(second))
	assert.Equal(t, http.StatusOK, status(other))
}

func TestPermissionSnapshotInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	cookie, _ := f.login(t, "user1")
	h := SessionAuth(f.cfg)(RequirePermission(f.cfg, store.PermProductCreate)(echoSession()))

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusForbidden, do())

	role, err := f.store.GetRoleByName(ctx, "user")
	require.NoError(t, err)
	role.Permissions = append(role.Permissions, store.PermProductCreate)
	require.NoError(t, f.store.UpdateRole(ctx, role))

	assert.Equal(t, http.StatusForbidden, do(), "stale snapshot is served until invalidated")
	require.NoError(t, InvalidateAllPermissions(ctx, f.cfg))
	assert.Equal(t, http.StatusOK, do())

	user, err := f.store.GetUserByLogin(ctx, "user1")
	require.NoError(t, err)
	user.Role = "viewer"
	require.NoError(t, f.store.UpdateUser(ctx, user))
	require.NoError(t, InvalidatePermissions(ctx, f.cfg, user.ID))
	assert.Equal(t, http.StatusForbidden, do(), "inactive role grants nothing")
}

func TestValidateSignedToken(t *testing.T) {
	key := []byte("k")
	token, signed, err := createSignedSessionToken(key)
	require.NoError(t, err)

	got, err := validateSignedToken(signed, key)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	_, err = validateSignedToken(signed, []byte("other"))
	assert.Error(t, err)
	_, err = validateSignedToken(token, key)
	assert.Error(t, err)
	_, err = validateSignedToken(signed+".extra", key)
	assert.Error(t, err)
}

func TestSessionCookies(t *testing.T) {
	f := newAuthFixture(t)
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, f.cfg, "abc.def")
	DeleteSessionCookie(rec, f.cfg)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "abc.def", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(f.cfg.SessionDuration.Seconds()), cookies[0].MaxAge)
	assert.Equal(t, -1, cookies[1].MaxAge)
}

func TestIsAPIRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   bool
	}{
		{name: "api prefix", method: http.MethodGet, path: "/api/menu", want: true},
		{name: "browser page", method: http.MethodGet, path: "/users", header: map[string]string{"Accept": "text/html,application/json"}},
		{name: "json accept", method: http.MethodGet, path: "/users", header: map[string]string{"Accept": "application/json"}, want: true},
		{name: "json body", method: http.MethodPost, path: "/users", header: map[string]string{"Content-Type": "application/json"}, want: true},
		{name: "xhr", method: http.MethodGet, path: "/users", header: map[string]string{"X-Requested-With": "XMLHttpRequest"}, want: true},
		{name: "form post", method: http.MethodPost, path: "/users", header: map[string]string{"Content-Type": "application/x-www-form-urlencoded"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, IsAPIRequest(req))
		})
	}
}
