// Package handlers holds what every dashboard handler shares: its
// dependencies, response helpers that answer JSON to API callers and
// flash-and-redirect to form posts, and per-session UI preferences.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"admin_dashboard/internal/cache"
	"admin_dashboard/internal/config"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/navigation"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"
)

type Handler struct {
	Store      store.Store
	Cache      cache.Cache
	Logger     *slog.Logger
	Config     *config.Config
	Sessions   *middlewares.SessionConfig
	CSRF       *security.CSRFProtection
	Hasher     *security.PasswordHasher
	Views      *views.Renderer
	Nav        *navigation.Navigator
	NavState   *navigation.StateStore
	Pagination *middlewares.PaginationConfig
}

func NewHandler(s store.Store, c cache.Cache, l *slog.Logger, cfg *config.Config) *Handler {
	return &Handler{
		Store:  s,
		Cache:  c,
		Logger: l,
		Config: cfg,
		Pagination: &middlewares.PaginationConfig{
			DefaultPageSize: cfg.Pagination.DefaultPageSize,
			MaxPageSize:     cfg.Pagination.MaxPageSize,
		},
	}
}

// Session returns the caller's session. Routes behind SessionAuth always
// have one.
func Session(r *http.Request) *middlewares.UserSession {
	s, _ := middlewares.GetSessionFromContext(r)
	return s
}

// Settings returns the user's saved preferences, or the defaults when they
// cannot be read.
func (h *Handler) Settings(ctx context.Context, userID string) store.SystemSettings {
	s, err := h.Store.GetSettings(ctx, userID)
	if err != nil {
		h.Logger.Warn("failed to load user settings", "user_id", userID, "error", err)
		return store.DefaultSettings()
	}
	return s
}

// Paginate reads paging parameters, preferring the caller's page size
// setting over the configured default.
func (h *Handler) Paginate(r *http.Request) *middlewares.PaginationParams {
	preferred := 0
	if s := Session(r); s != nil {
		preferred = h.Settings(r.Context(), s.UserID).PageSize
	}
	return middlewares.ParsePagination(r, h.Pagination, preferred)
}

// HashNewPassword checks a password chosen by a user and hashes it. A weak
// password comes back as a field error on field.
func (h *Handler) HashNewPassword(field, password string) (string, error) {
	if err := security.CheckPasswordStrength(password); err != nil {
		return "", store.FieldErrors{field: err.Error()}
	}
	return h.Hasher.Hash(password)
}
