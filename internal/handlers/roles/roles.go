// Package roles serves the permissions page: roles and the permissions they
// grant.
package roles

import (
	"net/http"
	"net/url"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/store"
)

type RoleHandler struct {
	h *handlers.Handler
}

func NewRoleHandler(h *handlers.Handler) *RoleHandler {
	return &RoleHandler{h: h}
}

// RoleRequest carries the editable role fields. Nil fields are kept.
type RoleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Permissions *[]string `json:"permissions"`
}

func (req *RoleRequest) BindForm(form url.Values) error {
	req.Name = handlers.FormString(form, "name")
	req.Description = handlers.FormString(form, "description")
	req.Status = handlers.FormString(form, "status")
	// an unticked checkbox group posts nothing, which means none
	perms := form["permissions"]
	if perms == nil {
		perms = []string{}
	}
	req.Permissions = &perms
	return nil
}

func (req *RoleRequest) apply(role *store.Role) {
	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Status != nil {
		role.Status = *req.Status
	}
	if req.Permissions != nil {
		role.Permissions = *req.Permissions
	}
}

// Permissions lists every permission grouped the way the editor shows them.
func (rh *RoleHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	config.RespondJSON(w, http.StatusOK, map[string]any{
		"permissions": store.AllPermissions,
		"groups":      store.PermissionTree,
	})
}

func (rh *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	p := rh.h.Paginate(r)
	roles, total, err := rh.h.Store.ListRoles(r.Context(), p.ListOptions())
	if err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}
	p.SetTotal(total)
	middlewares.RespondPaginated(w, roles, p)
}

func (rh *RoleHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := rh.h.Store.GetRole(r.Context(), r.PathValue("id"))
	if err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}
	config.RespondJSON(w, http.StatusOK, role)
}

func (rh *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}

	role := &store.Role{}
	req.apply(role)
	if err := role.Validate(); err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}
	if err := rh.h.Store.CreateRole(r.Context(), role); err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}

	rh.h.Logger.Info("role created", "role", role.Name, "permissions", len(role.Permissions))
	rh.h.Done(w, r, http.StatusCreated, "Role created successfully", map[string]any{"role": role})
}

// UpdateRole edits a role. Every cached permission snapshot is dropped so
// the change applies to signed-in users on their next request.
func (rh *RoleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RoleRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}

	role, err := rh.h.Store.GetRole(ctx, r.PathValue("id"))
	if err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}
	req.apply(role)
	if err := role.Validate(); err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}
	if err := rh.h.Store.UpdateRole(ctx, role); err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}
	if err := middlewares.InvalidateAllPermissions(ctx, rh.h.Sessions); err != nil {
		rh.h.Logger.Warn("failed to invalidate permission snapshots", "error", err)
	}

	rh.h.Logger.Info("role updated", "role_id", role.ID, "role", role.Name, "status", role.Status)
	rh.h.Done(w, r, http.StatusOK, "Role updated successfully", map[string]any{"role": role})
}

// DeleteRole removes a role no user holds.
func (rh *RoleHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rh.h.Store.DeleteRole(r.Context(), id); err != nil {
		rh.h.Fail(w, r, "role", err)
		return
	}
	if err := middlewares.InvalidateAllPermissions(r.Context(), rh.h.Sessions); err != nil {
		rh.h.Logger.Warn("failed to invalidate permission snapshots", "error", err)
	}

	rh.h.Logger.Info("role deleted", "role_id", id)
	rh.h.Done(w, r, http.StatusOK, "Role deleted successfully", nil)
}
