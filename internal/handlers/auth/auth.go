// Package auth serves the login page, session creation and logout.
package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"
)

const invalidCredentials = "Invalid username or password"

type AuthHandler struct {
	h       *handlers.Handler
	limiter *middlewares.RateLimiter
}

// NewAuthHandler creates the handler. limiter, when set, is the one guarding
// POST /login; a successful login clears the caller's counter.
func NewAuthHandler(h *handlers.Handler, limiter *middlewares.RateLimiter) *AuthHandler {
	return &AuthHandler{h: h, limiter: limiter}
}

// LoginRequest is the login payload, as JSON or as the login form.
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	CallbackURL string `json:"callbackUrl"`
}

func (req *LoginRequest) BindForm(form url.Values) error {
	req.Username = strings.TrimSpace(form.Get("username"))
	req.Password = form.Get("password")
	req.CallbackURL = form.Get("callbackUrl")
	return nil
}

// LoginPage renders the login form. A caller who is already signed in goes
// straight to the callback.
func (a *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	callback := security.SafeRedirect(r.URL.Query().Get("callbackUrl"), "/")
	if _, ok := middlewares.GetSessionFromContext(r); ok {
		http.Redirect(w, r, callback, http.StatusSeeOther)
		return
	}
	a.renderLogin(w, http.StatusOK, views.LoginPage{CallbackURL: callback})
}

// Login verifies the credentials and opens a session.
func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		a.fail(w, r, req, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Username == "" || req.Password == "" {
		a.fail(w, r, req, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := a.h.Store.GetUserByLogin(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.h.Logger.Warn("login attempt with unknown user", "login", req.Username, "ip", security.ClientIP(r))
			a.fail(w, r, req, http.StatusUnauthorized, invalidCredentials)
			return
		}
		a.h.Logger.Error("failed to look up user for login", "error", err)
		a.fail(w, r, req, http.StatusInternalServerError, "Internal server error, please try again later")
		return
	}

	ok, err := a.h.Hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		a.h.Logger.Error("password verification error", "user_id", user.ID, "error", err)
		a.fail(w, r, req, http.StatusInternalServerError, "Internal server error, please try again later")
		return
	}
	if !ok {
		a.h.Logger.Warn("invalid password attempt", "user_id", user.ID, "ip", security.ClientIP(r))
		a.fail(w, r, req, http.StatusUnauthorized, invalidCredentials)
		return
	}

	if a.limiter != nil {
		a.limiter.Reset(r)
	}
	a.upgradeHash(r, user, req.Password)

	signed, sessionID, err := middlewares.CreateSession(ctx, a.h.Sessions, user.ID, user.Email, user.Username, user.Name, r)
	if err != nil {
		a.fail(w, r, req, http.StatusInternalServerError, "Failed to create user session")
		return
	}
	middlewares.SetSessionCookie(w, a.h.Sessions, signed)

	// a new session starts on the home page with the user's saved look
	if err := a.h.SaveUI(ctx, sessionID, handlers.UIFromSettings(a.h.Settings(ctx, user.ID))); err != nil {
		a.h.Logger.Warn("failed to store ui state", "error", err)
	}
	if err := a.h.NavState.Save(ctx, sessionID, a.h.Nav.NewState()); err != nil {
		a.h.Logger.Warn("failed to store navigation state", "error", err)
	}

	callback := security.SafeRedirect(req.CallbackURL, "/")
	a.h.Logger.Info("user logged in", "user_id", user.ID, "username", user.Username)

	if middlewares.IsAPIRequest(r) {
		config.RespondJSON(w, http.StatusOK, map[string]any{
			"message":  "Login successful",
			"redirect": callback,
			"user":     user,
		})
		return
	}
	http.Redirect(w, r, callback, http.StatusSeeOther)
}

// upgradeHash rehashes a password stored with outdated parameters or a
// legacy algorithm. Failure only costs the upgrade.
func (a *AuthHandler) upgradeHash(r *http.Request, user *store.User, password string) {
	if !a.h.Hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := a.h.Hasher.Hash(password)
	if err != nil {
		a.h.Logger.Warn("failed to rehash password", "user_id", user.ID, "error", err)
		return
	}
	if err := a.h.Store.SetPassword(r.Context(), user.ID, hash); err != nil {
		a.h.Logger.Warn("failed to store rehashed password", "user_id", user.ID, "error", err)
		return
	}
	a.h.Logger.Info("password hash upgraded", "user_id", user.ID)
}

// Logout ends the session and everything stored alongside it.
func (a *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sessionID := middlewares.GetSessionIDFromContext(r); sessionID != "" {
		if err := middlewares.RevokeSession(ctx, a.h.Sessions, sessionID); err != nil {
			a.h.Logger.Warn("failed to revoke session", "error", err)
		}
		a.h.ForgetSession(ctx, sessionID)
	}
	middlewares.DeleteSessionCookie(w, a.h.Sessions)

	if middlewares.IsAPIRequest(r) {
		config.RespondSuccess(w, http.StatusOK, "Logged out successfully", nil)
		return
	}
	http.Redirect(w, r, a.h.Nav.Pages().LoginPath, http.StatusSeeOther)
}

// Me returns the signed-in user with their roles and permissions.
func (a *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := handlers.Session(r)
	user, err := a.h.Store.GetUser(r.Context(), session.UserID)
	if err != nil {
		a.h.Fail(w, r, "user", err)
		return
	}
	config.RespondJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"roles":       session.Roles,
		"permissions": session.Permissions,
		"expiresAt":   session.ExpiresAt,
		"csrfToken":   security.GetCSRFToken(r),
	})
}

func (a *AuthHandler) fail(w http.ResponseWriter, r *http.Request, req LoginRequest, status int, msg string) {
	if middlewares.IsAPIRequest(r) {
		config.RespondJSON(w, status, config.ErrorResponse{Error: http.StatusText(status), Message: msg})
		return
	}
	a.renderLogin(w, status, views.LoginPage{
		Username:    req.Username,
		CallbackURL: security.SafeRedirect(req.CallbackURL, "/"),
		Error:       msg,
	})
}

func (a *AuthHandler) renderLogin(w http.ResponseWriter, status int, page views.LoginPage) {
	page.AppName = a.h.Config.App.Name
	page.Theme = a.h.Config.Rendering.DefaultTheme
	a.h.Views.Render(w, status, "login", page)
}
