package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"admin_dashboard/internal/store"
)

// RoleSource is the part of the store RBAC reads from.
type RoleSource interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetRoleByName(ctx context.Context, name string) (*store.Role, error)
}

// RBAC resolves a user's role into the permissions it grants. Roles live in
// the store so edits on the permissions page apply on the next lookup.
type RBAC struct {
	source RoleSource
	logger *slog.Logger
}

// NewRBAC creates a resolver over source.
func NewRBAC(source RoleSource, logger *slog.Logger) *RBAC {
	if logger == nil {
		logger = slog.Default()
	}
	return &RBAC{source: source, logger: logger}
}

// RolePermissions returns the permissions of roleName. Inactive and unknown
// roles grant nothing.
func (r *RBAC) RolePermissions(ctx context.Context, roleName string) ([]string, error) {
	role, err := r.source.GetRoleByName(ctx, roleName)
	if errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("user holds unknown role", "role", roleName)
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load role %q: %w", roleName, err)
	}
	if !role.Active() {
		return []string{}, nil
	}
	return slices.Clone(role.Permissions), nil
}

// GetUserRolesAndPermissions fetches the roles and permissions of userID.
func (r *RBAC) GetUserRolesAndPermissions(ctx context.Context, userID string) ([]string, []string, error) {
	user, err := r.source.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	perms, err := r.RolePermissions(ctx, user.Role)
	if err != nil {
		return nil, nil, err
	}
	return []string{user.Role}, perms, nil
}

// HasPermission reports whether perms contains permissionName.
func HasPermission(perms []string, permissionName string) bool {
	return slices.Contains(perms, permissionName)
}

// HasAnyPermission reports whether perms contains at least one of wanted.
func HasAnyPermission(perms []string, wanted ...string) bool {
	return slices.ContainsFunc(wanted, func(p string) bool { return slices.Contains(perms, p) })
}
