// Package account serves the signed-in user's own profile, password and
// system settings.
package account

import (
	"net/http"
	"net/url"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/store"
)

type AccountHandler struct {
	h *handlers.Handler
}

func NewAccountHandler(h *handlers.Handler) *AccountHandler {
	return &AccountHandler{h: h}
}

// ProfileRequest carries the self-editable profile fields. Username and role
// are managed by administrators.
type ProfileRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Department *string `json:"department"`
	Avatar     *string `json:"avatar"`
}

func (req *ProfileRequest) BindForm(form url.Values) error {
	req.Name = handlers.FormString(form, "name")
	req.Email = handlers.FormString(form, "email")
	req.Phone = handlers.FormString(form, "phone")
	req.Department = handlers.FormString(form, "department")
	req.Avatar = handlers.FormString(form, "avatar")
	return nil
}

// ViewProfile returns the caller's own record.
func (a *AccountHandler) ViewProfile(w http.ResponseWriter, r *http.Request) {
	user, err := a.h.Store.GetUser(r.Context(), handlers.Session(r).UserID)
	if err != nil {
		a.h.Fail(w, r, "user", err)
		return
	}
	config.RespondJSON(w, http.StatusOK, user)
}

// UpdateProfile edits the caller's own record.
func (a *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ProfileRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		a.h.Fail(w, r, "profile", err)
		return
	}

	user, err := a.h.Store.GetUser(ctx, handlers.Session(r).UserID)
	if err != nil {
		a.h.Fail(w, r, "profile", err)
		return
	}
	for dst, src := range map[*string]*string{
		&user.Name:       req.Name,
		&user.Email:      req.Email,
		&user.Phone:      req.Phone,
		&user.Department: req.Department,
		&user.Avatar:     req.Avatar,
	} {
		if src != nil {
			*dst = *src
		}
	}
	if err := user.Validate(); err != nil {
		a.h.Fail(w, r, "profile", err)
		return
	}
	if err := a.h.Store.UpdateUser(ctx, user); err != nil {
		a.h.Fail(w, r, "profile", err)
		return
	}

	a.h.Logger.Info("profile updated", "user_id", user.ID)
	a.h.Done(w, r, http.StatusOK, "Profile updated successfully", map[string]any{"user": user})
}

// PasswordRequest changes the caller's password.
type PasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (req *PasswordRequest) BindForm(form url.Values) error {
	req.CurrentPassword = form.Get("current_password")
	req.NewPassword = form.Get("new_password")
	req.ConfirmPassword = form.Get("confirm_password")
	return nil
}

// ChangePassword verifies the current password, stores the new one and signs
// the user out of every other session.
func (a *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := handlers.Session(r)

	var req PasswordRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		a.h.Fail(w, r, "password", err)
		return
	}
	fe := store.FieldErrors{}
	if req.CurrentPassword == "" {
		fe["current_password"] = "is required"
	}
	if req.NewPassword == "" {
		fe["new_password"] = "is required"
	}
	// JSON callers may omit the confirmation
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		fe["confirm_password"] = "does not match"
	}
	if len(fe) > 0 {
		a.h.Fail(w, r, "password", fe)
		return
	}

	user, err := a.h.Store.GetUser(ctx, session.UserID)
	if err != nil {
		a.h.Fail(w, r, "user", err)
		return
	}
	ok, err := a.h.Hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		a.h.Fail(w, r, "password", err)
		return
	}
	if !ok {
		a.h.Logger.Warn("password change with wrong current password", "user_id", user.ID)
		a.h.Fail(w, r, "password", store.FieldErrors{"current_password": "is incorrect"})
		return
	}

	hash, err := a.h.HashNewPassword("new_password", req.NewPassword)
	if err != nil {
		a.h.Fail(w, r, "password", err)
		return
	}
	if err := a.h.Store.SetPassword(ctx, user.ID, hash); err != nil {
		a.h.Fail(w, r, "password", err)
		return
	}
	if err := middlewares.RevokeUserSessions(ctx, a.h.Sessions, user.ID, session.SessionID); err != nil {
		a.h.Logger.Warn("failed to revoke other sessions", "user_id", user.ID, "error", err)
	}

	a.h.Logger.Info("password changed", "user_id", user.ID)
	a.h.Done(w, r, http.StatusOK, "Password changed successfully", nil)
}

// SettingsRequest starts from the saved settings. JSON bodies overwrite only
// the fields they name; the settings form posts every field.
type SettingsRequest struct {
	store.SystemSettings
}

func (req *SettingsRequest) BindForm(form url.Values) error {
	s := &req.SystemSettings
	if v := handlers.FormString(form, "themeMode"); v != nil {
		s.ThemeMode = *v
	}
	for key, dst := range map[string]*int{
		"pageSize":                &s.PageSize,
		"timeout":                 &s.Timeout,
		"notificationDisplayTime": &s.NotificationDisplayTime,
	} {
		v, err := handlers.FormInt(form, key)
		if err != nil {
			return err
		}
		if v != nil {
			*dst = *v
		}
	}
	s.EnableAutoSave = handlers.FormBool(form, "enableAutoSave")
	s.NotificationSound = handlers.FormBool(form, "notificationSound")
	s.SidebarCollapse = handlers.FormBool(form, "sidebarCollapse")
	s.AnimateComponents = handlers.FormBool(form, "animateComponents")
	return nil
}

// GetSettings returns the caller's settings.
func (a *AccountHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	config.RespondJSON(w, http.StatusOK, a.h.Settings(r.Context(), handlers.Session(r).UserID))
}

// SaveSettings stores the caller's settings and applies the theme and
// sidebar choice to the current session.
func (a *AccountHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := handlers.Session(r)

	current, err := a.h.Store.GetSettings(ctx, session.UserID)
	if err != nil {
		a.h.Fail(w, r, "settings", err)
		return
	}
	req := SettingsRequest{SystemSettings: current}
	if err := handlers.Bind(w, r, &req); err != nil {
		a.h.Fail(w, r, "settings", err)
		return
	}
	if err := req.Validate(a.h.Pagination.MaxPageSize); err != nil {
		a.h.Fail(w, r, "settings", err)
		return
	}
	if err := a.h.Store.SaveSettings(ctx, session.UserID, req.SystemSettings); err != nil {
		a.h.Fail(w, r, "settings", err)
		return
	}
	if err := a.h.SaveUI(ctx, session.SessionID, handlers.UIFromSettings(req.SystemSettings)); err != nil {
		a.h.Logger.Warn("failed to apply settings to session", "error", err)
	}

	a.h.Logger.Info("settings saved", "user_id", session.UserID)
	a.h.Done(w, r, http.StatusOK, "Settings saved successfully", map[string]any{"settings": req.SystemSettings})
}
