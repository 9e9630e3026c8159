package users

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"admin_dashboard/internal/handlers/handlertest"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newUsers(t *testing.T) (*UserHandler, *handlertest.Fixture, *middlewares.UserSession) {
	t.Helper()
	f := handlertest.New(t, nil)
	return NewUserHandler(f.H), f, f.Login(t, "admin")
}

func withID(r *http.Request, id string) *http.Request {
	r.SetPathValue("id", id)
	return r
}

func exists(t *testing.T, f *handlertest.Fixture, key string) bool {
	t.Helper()
	ok, err := f.Cache.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestListUsers(t *testing.T) {
	u, _, s := newUsers(t)

	rec := handlertest.Serve(u.ListUsers, handlertest.Request(http.MethodGet, "/api/v1/users?search=user&limit=1&page=2", s))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := handlertest.Decode[struct {
		Data       []store.User               `json:"data"`
		Pagination middlewares.PaginationMeta `json:"pagination"`
	}](t, rec)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "user2", resp.Data[0].Username)
	assert.Equal(t, 2, resp.Pagination.TotalRecords)
	assert.Equal(t, 2, resp.Pagination.CurrentPage)
	assert.False(t, resp.Pagination.HasNext)
}

func TestGetUser(t *testing.T) {
	u, f, s := newUsers(t)

	rec := handlertest.Serve(u.GetUser, withID(handlertest.Request(http.MethodGet, "/api/v1/users/x", s), f.UserID(t, "user1")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user1", handlertest.Decode[store.User](t, rec).Username)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = handlertest.Serve(u.GetUser, withID(handlertest.Request(http.MethodGet, "/api/v1/users/x", s), "missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUser(t *testing.T) {
	u, f, s := newUsers(t)
	ctx := context.Background()

	form := url.Values{
		"username": {"jdoe"}, "email": {"jdoe@example.com"}, "name": {"Jane Doe"},
		"role": {"editor"}, "department": {"Sales"}, "password": {"s3cret-pass"},
	}
	rec := handlertest.Serve(u.CreateUser, handlertest.Form(http.MethodPost, "/users", form, s))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "User created successfully", f.Flash(s).Message)

	created, err := f.Store.GetUserByLogin(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "Sales", created.Department)
	ok, err := f.H.Hasher.Verify("s3cret-pass", created.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	body := map[string]any{"username": "jdoe2", "email": "jdoe2@example.com", "name": "J2", "role": "user", "password": "s3cret-pass"}
	rec = handlertest.Serve(u.CreateUser, handlertest.JSON(t, http.MethodPost, "/api/v1/users", body, s))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateUser_Invalid(t *testing.T) {
	u, f, s := newUsers(t)

	tests := []struct {
		name   string
		body   map[string]any
		code   int
		fields []string
	}{
		{"missing fields", map[string]any{"username": "ab", "password": "s3cret-pass"}, http.StatusUnprocessableEntity, []string{"username", "email", "name", "role"}},
		{"unknown role", map[string]any{"username": "abc", "email": "a@b.co", "name": "A", "role": "root", "password": "s3cret-pass"}, http.StatusUnprocessableEntity, []string{"role"}},
		{"no password", map[string]any{"username": "abc", "email": "a@b.co", "name": "A", "role": "user"}, http.StatusUnprocessableEntity, []string{"password"}},
		{"weak password", map[string]any{"username": "abc", "email": "a@b.co", "name": "A", "role": "user", "password": "abc"}, http.StatusUnprocessableEntity, []string{"password"}},
		{"duplicate", map[string]any{"username": "admin", "email": "x@b.co", "name": "A", "role": "user", "password": "s3cret-pass"}, http.StatusConflict, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := handlertest.Serve(u.CreateUser, handlertest.JSON(t, http.MethodPost, "/api/v1/users", tt.body, s))
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.fields == nil {
				return
			}
			errs := handlertest.Decode[map[string]any](t, rec)["errors"].(map[string]any)
			for _, field := range tt.fields {
				assert.Contains(t, errs, field)
			}
		})
	}

	_, total, err := f.Store.ListUsers(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestUpdateUser_RoleChangeDropsPermissionSnapshot(t *testing.T) {
	u, f, s := newUsers(t)
	ctx := context.Background()
	id := f.UserID(t, "user1")
	require.NoError(t, f.Cache.Set(ctx, "user:perms:"+id, []byte(`{}`), time.Minute))

	rec := handlertest.Serve(u.UpdateUser, withID(handlertest.JSON(t, http.MethodPut, "/api/v1/users/x", map[string]any{"role": "editor", "phone": "555"}, s), id))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := f.Store.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "editor", got.Role)
	assert.Equal(t, "555", got.Phone)
	assert.Equal(t, "User One", got.Name, "unset fields are kept")
	assert.False(t, exists(t, f, "user:perms:"+id))
}

func TestUpdateUser_PasswordRevokesSessions(t *testing.T) {
	u, f, admin := newUsers(t)
	other := f.Login(t, "user1")

	form := url.Values{"password": {"n3w-password"}}
	rec := handlertest.Serve(u.UpdateUser, withID(handlertest.Form(http.MethodPost, "/users/x", form, admin), other.UserID))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, exists(t, f, "session:"+other.SessionID))
	assert.True(t, exists(t, f, "session:"+admin.SessionID))

	// changing your own password keeps the current session
	second := f.Login(t, "admin")
	rec = handlertest.Serve(u.UpdateUser, withID(handlertest.Form(http.MethodPost, "/users/x", form, admin), admin.UserID))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, exists(t, f, "session:"+admin.SessionID))
	assert.False(t, exists(t, f, "session:"+second.SessionID))
}

func TestDeleteUser(t *testing.T) {
	u, f, s := newUsers(t)
	victim := f.Login(t, "user2")

	rec := handlertest.Serve(u.DeleteUser, withID(handlertest.Request(http.MethodDelete, "/api/v1/users/x", s), victim.UserID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, exists(t, f, "session:"+victim.SessionID))
	_, err := f.Store.GetUser(context.Background(), victim.UserID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec = handlertest.Serve(u.DeleteUser, withID(handlertest.Request(http.MethodDelete, "/api/v1/users/x", s), s.UserID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = handlertest.Serve(u.DeleteUser, withID(handlertest.Request(http.MethodDelete, "/api/v1/users/x", s), victim.UserID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportUsers(t *testing.T) {
	u, _, s := newUsers(t)

	rec := handlertest.Serve(u.ExportUsers, handlertest.Request(http.MethodGet, "/users/export?search=admin", s))
	require.Equal(t, http.StatusOK, rec.Code)

	book, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Username", "Name", "Email", "Role", "Phone", "Department", "Created At"}, rows[0])
	assert.Equal(t, []string{"admin", "System Administrator", "admin@example.com", "admin"}, rows[1][:4])
}
