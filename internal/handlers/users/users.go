// Package users serves user management: listing, CRUD and export.
package users

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/store"
)

type UserHandler struct {
	h *handlers.Handler
}

func NewUserHandler(h *handlers.Handler) *UserHandler {
	return &UserHandler{h: h}
}

// UserRequest carries the fields a caller may set. Nil fields keep their
// current value on update.
type UserRequest struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	Name       *string `json:"name"`
	Role       *string `json:"role"`
	Phone      *string `json:"phone"`
	Department *string `json:"department"`
	Password   *string `json:"password"`
}

func (req *UserRequest) BindForm(form url.Values) error {
	req.Username = handlers.FormString(form, "username")
	req.Email = handlers.FormString(form, "email")
	req.Name = handlers.FormString(form, "name")
	req.Role = handlers.FormString(form, "role")
	req.Phone = handlers.FormString(form, "phone")
	req.Department = handlers.FormString(form, "department")
	if form.Get("password") != "" {
		pw := form.Get("password")
		req.Password = &pw
	}
	return nil
}

func (req *UserRequest) apply(u *store.User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Username, req.Username)
	set(&u.Email, req.Email)
	set(&u.Name, req.Name)
	set(&u.Role, req.Role)
	set(&u.Phone, req.Phone)
	set(&u.Department, req.Department)
}

// validate runs the model checks and confirms the role exists.
func (u *UserHandler) validate(ctx context.Context, user *store.User) error {
	fe := store.FieldErrors{}
	var verr store.FieldErrors
	if err := user.Validate(); errors.As(err, &verr) {
		fe = verr
	}
	if user.Role != "" {
		if _, err := u.h.Store.GetRoleByName(ctx, user.Role); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			fe["role"] = "does not exist"
		}
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// ListUsers returns a page of users matching ?search=.
func (u *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := u.h.Paginate(r)
	users, total, err := u.h.Store.ListUsers(r.Context(), p.ListOptions())
	if err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}
	p.SetTotal(total)
	middlewares.RespondPaginated(w, users, p)
}

// GetUser returns one user.
func (u *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := u.h.Store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}
	config.RespondJSON(w, http.StatusOK, user)
}

// CreateUser adds an account. A password is required.
func (u *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UserRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}

	user := &store.User{}
	req.apply(user)
	if err := u.validate(ctx, user); err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}
	if req.Password == nil || *req.Password == "" {
		u.h.Fail(w, r, "user", store.FieldErrors{"password": "is required"})
		return
	}
	hash, err := u.h.HashNewPassword("password", *req.Password)
	if err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}
	user.PasswordHash = hash

	if err := u.h.Store.CreateUser(ctx, user); err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}

	u.h.Logger.Info("user created", "user_id", user.ID, "username", user.Username, "by", handlers.Session(r).UserID)
	u.h.Done(w, r, http.StatusCreated, "User created successfully", map[string]any{"user": user})
}

// UpdateUser changes profile fields, role and optionally the password.
func (u *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UserRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}

	user, err := u.h.Store.GetUser(ctx, r.PathValue("id"))
	if err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}
	prevRole := user.Role
	req.apply(user)
	if err := u.validate(ctx, user); err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}

	passwordChanged := req.Password != nil && *req.Password != ""
	if passwordChanged {
		hash, err := u.h.HashNewPassword("password", *req.Password)
		if err != nil {
			u.h.Fail(w, r, "user", err)
			return
		}
		user.PasswordHash = hash
	}

	if err := u.h.Store.UpdateUser(ctx, user); err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}

	if user.Role != prevRole {
		if err := middlewares.InvalidatePermissions(ctx, u.h.Sessions, user.ID); err != nil {
			u.h.Logger.Warn("failed to invalidate permissions", "user_id", user.ID, "error", err)
		}
	}
	if passwordChanged {
		keep := ""
		if user.ID == handlers.Session(r).UserID {
			keep = handlers.Session(r).SessionID
		}
		if err := middlewares.RevokeUserSessions(ctx, u.h.Sessions, user.ID, keep); err != nil {
			u.h.Logger.Warn("failed to revoke sessions", "user_id", user.ID, "error", err)
		}
	}

	u.h.Logger.Info("user updated", "user_id", user.ID, "role_changed", user.Role != prevRole, "password_changed", passwordChanged)
	u.h.Done(w, r, http.StatusOK, "User updated successfully", map[string]any{"user": user})
}

// DeleteUser removes an account and signs it out everywhere. Users cannot
// delete themselves.
func (u *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if id == handlers.Session(r).UserID {
		u.h.Fail(w, r, "user", handlers.BadRequest("You cannot delete your own account", nil))
		return
	}
	if err := u.h.Store.DeleteUser(ctx, id); err != nil {
		u.h.Fail(w, r, "user", err)
		return
	}
	if err := middlewares.RevokeUserSessions(ctx, u.h.Sessions, id, ""); err != nil {
		u.h.Logger.Warn("failed to revoke sessions of deleted user", "user_id", id, "error", err)
	}
	if err := middlewares.InvalidatePermissions(ctx, u.h.Sessions, id); err != nil {
		u.h.Logger.Warn("failed to invalidate permissions", "user_id", id, "error", err)
	}

	u.h.Logger.Info("user deleted", "user_id", id, "by", handlers.Session(r).UserID)
	u.h.Done(w, r, http.StatusOK, "User deleted successfully", nil)
}

// ExportUsers streams every user matching ?search= as a spreadsheet.
func (u *UserHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	users, _, err := u.h.Store.ListUsers(r.Context(), store.ListOptions{Search: r.URL.Query().Get("search")})
	if err != nil {
		u.h.Logger.Error("failed to fetch users for export", "error", err)
		http.Error(w, "Failed to fetch users", http.StatusInternalServerError)
		return
	}

	headers := []string{"Username", "Name", "Email", "Role", "Phone", "Department", "Created At"}
	rows := make([][]any, 0, len(users))
	for _, user := range users {
		rows = append(rows, []any{
			user.Username, user.Name, user.Email, user.Role, user.Phone, user.Department,
			user.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	u.h.WriteSpreadsheet(w, "users", "Users", headers, rows)
}
