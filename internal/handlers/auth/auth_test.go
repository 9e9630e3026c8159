package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"admin_dashboard/internal/handlers/handlertest"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newAuth(t *testing.T) (*AuthHandler, *handlertest.Fixture) {
	t.Helper()
	f := handlertest.New(t, nil)
	return NewAuthHandler(f.H, nil), f
}

func sessionCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestLogin_Form(t *testing.T) {
	a, f := newAuth(t)
	ctx := context.Background()

	form := url.Values{"username": {"admin"}, "password": {handlertest.Password}, "callbackUrl": {"/?page=2"}}
	rec := handlertest.Serve(a.Login, handlertest.Form(http.MethodPost, "/login", form, nil))

	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/?page=2", rec.Header().Get("Location"))
	c := sessionCookie(t, rec.Result(), "dashboard_session")
	assert.True(t, c.HttpOnly)
	assert.NotEmpty(t, c.Value)

	nav, err := f.Cache.Keys(ctx, "navstate:*")
	require.NoError(t, err)
	assert.Len(t, nav, 1, "a fresh navigation state is stored")
	ui, err := f.Cache.Keys(ctx, "ui:*")
	require.NoError(t, err)
	assert.Len(t, ui, 1)
}

func TestLogin_JSON(t *testing.T) {
	a, _ := newAuth(t)

	rec := handlertest.Serve(a.Login, handlertest.JSON(t, http.MethodPost, "/api/v1/login",
		map[string]string{"username": "user1@example.com", "password": handlertest.Password, "callbackUrl": "https://evil.example"}, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := handlertest.Decode[map[string]any](t, rec)
	assert.Equal(t, "/", body["redirect"], "off-site callbacks are dropped")
	user := body["user"].(map[string]any)
	assert.Equal(t, "user1", user["username"])
	assert.NotContains(t, rec.Body.String(), "argon2id")
}

func TestLogin_Rejected(t *testing.T) {
	a, _ := newAuth(t)

	tests := []struct {
		name     string
		username string
		password string
		code     int
		message  string
	}{
		{"wrong password", "admin", "nope", http.StatusUnauthorized, invalidCredentials},
		{"unknown user", "ghost", handlertest.Password, http.StatusUnauthorized, invalidCredentials},
		{"missing password", "admin", "", http.StatusBadRequest, "Username and password are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/form", func(t *testing.T) {
			form := url.Values{"username": {tt.username}, "password": {tt.password}}
			rec := handlertest.Serve(a.Login, handlertest.Form(http.MethodPost, "/login", form, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Contains(t, rec.Body.String(), `value="`+tt.username+`"`, "username is kept")
			assert.Empty(t, rec.Result().Cookies())
		})
		t.Run(tt.name+"/json", func(t *testing.T) {
			rec := handlertest.Serve(a.Login, handlertest.JSON(t, http.MethodPost, "/api/v1/login",
				map[string]string{"username": tt.username, "password": tt.password}, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, handlertest.Decode[map[string]any](t, rec)["message"])
		})
	}
}

func TestLogin_ResetsRateLimit(t *testing.T) {
	f := handlertest.New(t, nil)
	limiter := middlewares.NewRateLimiter(&middlewares.RateLimitConfig{Cache: f.Cache, Limit: 5})
	a := NewAuthHandler(f.H, limiter)

	r := handlertest.Form(http.MethodPost, "/login", url.Values{"username": {"admin"}, "password": {handlertest.Password}}, nil)
	ok, _ := limiter.Allow(context.Background(), "192.0.2.1")
	require.True(t, ok)

	handlertest.Serve(a.Login, r)
	_, remaining := limiter.Allow(context.Background(), "192.0.2.1")
	assert.Equal(t, 4, remaining, "the counter restarted")
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	a, f := newAuth(t)
	ctx := context.Background()
	id := f.UserID(t, "user2")

	legacy, err := bcrypt.GenerateFromPassword([]byte(handlertest.Password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.Store.SetPassword(ctx, id, string(legacy)))

	form := url.Values{"username": {"user2"}, "password": {handlertest.Password}}
	rec := handlertest.Serve(a.Login, handlertest.Form(http.MethodPost, "/login", form, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	u, err := f.Store.GetUser(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))
}

func TestLoginPage(t *testing.T) {
	a, f := newAuth(t)

	rec := handlertest.Serve(a.LoginPage, handlertest.Request(http.MethodGet, "/login?callbackUrl=%2Fsettings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="callbackUrl" value="/settings"`)

	s := f.Login(t, "admin")
	rec = handlertest.Serve(a.LoginPage, handlertest.Request(http.MethodGet, "/login?callbackUrl=%2Fsettings", s))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/settings", rec.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	a, f := newAuth(t)
	ctx := context.Background()
	s := f.Login(t, "admin")
	require.NoError(t, f.H.NavState.Save(ctx, s.SessionID, f.H.Nav.NewState()))

	rec := handlertest.Serve(a.Logout, handlertest.Form(http.MethodPost, "/logout", url.Values{}, s))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, -1, sessionCookie(t, rec.Result(), "dashboard_session").MaxAge)

	for _, key := range []string{"session:" + s.SessionID, "navstate:" + s.SessionID} {
		ok, err := f.Cache.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	rec = handlertest.Serve(a.Logout, handlertest.Request(http.MethodPost, "/api/v1/logout", f.Login(t, "user1")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logged out successfully")
}

func TestMe(t *testing.T) {
	a, f := newAuth(t)
	s := f.Login(t, "user1")

	rec := handlertest.Serve(a.Me, handlertest.Request(http.MethodGet, "/api/v1/me", s))
	require.Equal(t, http.StatusOK, rec.Code)
	body := handlertest.Decode[map[string]any](t, rec)
	assert.Equal(t, "user1", body["user"].(map[string]any)["username"])
	assert.Equal(t, []any{"user"}, body["roles"])
	assert.ElementsMatch(t, []any{store.PermUserView, store.PermProductView, store.PermProfileSetting}, body["permissions"])
}
