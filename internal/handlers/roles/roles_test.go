package roles

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
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRoles(t *testing.T) (*RoleHandler, *handlertest.Fixture, *middlewares.UserSession) {
	t.Helper()
	f := handlertest.New(t, nil)
	return NewRoleHandler(f.H), f, f.Login(t, "admin")
}

func roleID(t *testing.T, f *handlertest.Fixture, name string) string {
	t.Helper()
	r, err := f.Store.GetRoleByName(context.Background(), name)
	require.NoError(t, err)
	return r.ID
}

func TestPermissions(t *testing.T) {
	rh, _, s := newRoles(t)

	rec := handlertest.Serve(rh.Permissions, handlertest.Request(http.MethodGet, "/api/v1/permissions", s))
	require.Equal(t, http.StatusOK, rec.Code)
	body := handlertest.Decode[struct {
		Permissions []string                `json:"permissions"`
		Groups      []store.PermissionGroup `json:"groups"`
	}](t, rec)
	assert.Equal(t, store.AllPermissions, body.Permissions)
	assert.Len(t, body.Groups, 3)
}

func TestListAndGetRoles(t *testing.T) {
	rh, f, s := newRoles(t)

	rec := handlertest.Serve(rh.ListRoles, handlertest.Request(http.MethodGet, "/api/v1/roles?search=edit", s))
	require.Equal(t, http.StatusOK, rec.Code)
	list := handlertest.Decode[struct {
		Data []store.Role `json:"data"`
	}](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "editor", list.Data[0].Name)

	r := handlertest.Request(http.MethodGet, "/api/v1/roles/x", s)
	r.SetPathValue("id", roleID(t, f, "viewer"))
	rec = handlertest.Serve(rh.GetRole, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.StatusInactive, handlertest.Decode[store.Role](t, rec).Status)
}

func TestCreateRole(t *testing.T) {
	rh, f, s := newRoles(t)

	form := url.Values{
		"name":        {"auditor"},
		"description": {"Reads everything"},
		"permissions": {store.PermUserView, store.PermProductView, store.PermUserView},
	}
	rec := handlertest.Serve(rh.CreateRole, handlertest.Form(http.MethodPost, "/roles", form, s))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	role, err := f.Store.GetRoleByName(context.Background(), "auditor")
	require.NoError(t, err)
	assert.Equal(t, []string{store.PermUserView, store.PermProductView}, role.Permissions, "duplicates are dropped")
	assert.Equal(t, store.StatusActive, role.Status)

	rec = handlertest.Serve(rh.CreateRole, handlertest.JSON(t, http.MethodPost, "/api/v1/roles",
		map[string]any{"name": "bad", "permissions": []string{"launch_missiles"}}, s))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = handlertest.Serve(rh.CreateRole, handlertest.JSON(t, http.MethodPost, "/api/v1/roles", map[string]any{"name": "Admin"}, s))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateRole_InvalidatesEverySnapshot(t *testing.T) {
	rh, f, s := newRoles(t)
	ctx := context.Background()
	for _, u := range []string{"admin", "user1"} {
		require.NoError(t, f.Cache.Set(ctx, "user:perms:"+f.UserID(t, u), []byte(`{}`), time.Minute))
	}

	// an empty checkbox group clears the permissions
	r := handlertest.Form(http.MethodPost, "/roles/x", url.Values{"name": {"user"}, "status": {"active"}}, s)
	r.SetPathValue("id", roleID(t, f, "user"))
	rec := handlertest.Serve(rh.UpdateRole, r)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	role, err := f.Store.GetRoleByName(ctx, "user")
	require.NoError(t, err)
	assert.Empty(t, role.Permissions)

	keys, err := f.Cache.Keys(ctx, "user:perms:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestUpdateRole_RenameCascades(t *testing.T) {
	rh, f, s := newRoles(t)

	r := handlertest.JSON(t, http.MethodPut, "/api/v1/roles/x", map[string]any{"name": "member"}, s)
	r.SetPathValue("id", roleID(t, f, "user"))
	rec := handlertest.Serve(rh.UpdateRole, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	u, err := f.Store.GetUser(context.Background(), f.UserID(t, "user1"))
	require.NoError(t, err)
	assert.Equal(t, "member", u.Role)
}

func TestDeleteRole(t *testing.T) {
	rh, f, s := newRoles(t)

	del := func(name string) int {
		r := handlertest.Request(http.MethodDelete, "/api/v1/roles/x", s)
		r.SetPathValue("id", roleID(t, f, name))
		return handlertest.Serve(rh.DeleteRole, r).Code
	}
	assert.Equal(t, http.StatusConflict, del("user"), "held by user1 and user2")
	assert.Equal(t, http.StatusOK, del("viewer"))

	_, err := f.Store.GetRoleByName(context.Background(), "viewer")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
