// Package handlertest builds a fully wired handlers.Handler over the
// in-memory store and cache for handler tests.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"admin_dashboard/internal/cache"
	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/navigation"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"
	"admin_dashboard/web"

	"github.com/stretchr/testify/require"
)

// Password is the password of every seeded account.
const Password = "password"

type Fixture struct {
	H     *handlers.Handler
	Store *store.MemoryStore
	Cache *cache.MemoryCache
	RBAC  *security.RBAC
}

// Config returns the application settings tests run with.
func Config() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Name: "Admin Dashboard", Version: "test", Environment: "test"},
		Auth:       config.AuthConfig{SessionSecret: "test-secret", SessionDuration: time.Hour, CookieName: "dashboard_session"},
		Rendering:  config.RenderingConfig{DefaultTheme: store.ThemeLight},
		Navigation: config.NavigationConfig{LoadWait: time.Second},
		Pagination: config.PaginationConfig{DefaultPageSize: 10, MaxPageSize: 100},
	}
}

// New wires a handler over the seeded demo data. components, when set,
// builds the navigation component map from the renderer.
func New(t testing.TB, components func(*views.Renderer) navigation.ComponentMap) *Fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config()

	hasher := security.NewPasswordHasher()
	require.NoError(t, hasher.SetParams(1024, 1, 1))
	hash, err := hasher.Hash(Password)
	require.NoError(t, err)

	s := store.NewSeededMemoryStore(hash)
	c := cache.NewMemoryCache(nil)
	t.Cleanup(func() { c.Close() })

	h := handlers.NewHandler(s, c, logger, cfg)
	h.Hasher = hasher
	rbac := security.NewRBAC(s, logger)
	h.Sessions = middlewares.NewSessionConfig(cfg, c, rbac, logger)

	h.CSRF, err = security.NewCSRFProtection(&security.CSRFConfig{
		Cache:     c,
		Logger:    logger,
		SessionID: middlewares.GetSessionIDFromContext,
	})
	require.NoError(t, err)

	h.Views, err = views.NewRenderer(web.Templates(""), logger)
	require.NoError(t, err)

	var comps navigation.ComponentMap
	if components != nil {
		comps = components(h.Views)
	}
	decl, err := navigation.LoadDeclaration("")
	require.NoError(t, err)
	h.Nav, err = navigation.New(decl, navigation.DefaultIcons(), comps, logger, navigation.Options{LoadWait: cfg.Navigation.LoadWait})
	require.NoError(t, err)
	t.Cleanup(func() { h.Nav.Close() })
	h.NavState = navigation.NewStateStore(c, h.Nav.HomeKey(), cfg.Auth.SessionDuration)

	return &Fixture{H: h, Store: s, Cache: c, RBAC: rbac}
}

// Login opens a real session for username and returns it as SessionAuth
// would attach it.
func (f *Fixture) Login(t testing.TB, username string) *middlewares.UserSession {
	t.Helper()
	ctx := context.Background()
	u, err := f.Store.GetUserByLogin(ctx, username)
	require.NoError(t, err)

	_, id, err := middlewares.CreateSession(ctx, f.H.Sessions, u.ID, u.Email, u.Username, u.Name, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	roles, perms, err := f.RBAC.GetUserRolesAndPermissions(ctx, u.ID)
	require.NoError(t, err)

	return &middlewares.UserSession{
		SessionID:   id,
		UserID:      u.ID,
		Email:       u.Email,
		Username:    u.Username,
		Name:        u.Name,
		Roles:       roles,
		Permissions: perms,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// UserID returns the id of a seeded account.
func (f *Fixture) UserID(t testing.TB, username string) string {
	t.Helper()
	u, err := f.Store.GetUserByLogin(context.Background(), username)
	require.NoError(t, err)
	return u.ID
}

func withSession(r *http.Request, s *middlewares.UserSession) *http.Request {
	if s == nil {
		return r
	}
	return r.WithContext(middlewares.WithSession(r.Context(), s))
}

// Request builds a bodyless request carrying session s.
func Request(method, target string, s *middlewares.UserSession) *http.Request {
	return withSession(httptest.NewRequest(method, target, nil), s)
}

// Form builds a urlencoded form post carrying session s.
func Form(method, target string, form url.Values, s *middlewares.UserSession) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withSession(r, s)
}

// JSON builds a JSON request carrying session s.
func JSON(t testing.TB, method, target string, body any, s *middlewares.UserSession) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	return withSession(r, s)
}

// Serve runs h against r and returns the recorded response.
func Serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

// Decode unmarshals a JSON response body.
func Decode[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// Flash takes the queued flash message of session s.
func (f *Fixture) Flash(s *middlewares.UserSession) *views.Flash {
	return f.H.TakeFlash(context.Background(), s.SessionID)
}
