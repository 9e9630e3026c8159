package handlers

import (
	"context"
	"time"

	"admin_dashboard/internal/cache"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"
)

const (
	flashKeyPrefix = "flash:"
	uiKeyPrefix    = "ui:"
	flashTTL       = 5 * time.Minute
)

// SetFlash queues a notification for the session's next page render.
func (h *Handler) SetFlash(ctx context.Context, sessionID string, f views.Flash) {
	if sessionID == "" {
		return
	}
	if err := cache.SetJSON(ctx, h.Cache, flashKeyPrefix+sessionID, f, flashTTL); err != nil {
		h.Logger.Warn("failed to store flash message", "error", err)
	}
}

// TakeFlash returns and clears the queued notification, if any.
func (h *Handler) TakeFlash(ctx context.Context, sessionID string) *views.Flash {
	if sessionID == "" {
		return nil
	}
	var f views.Flash
	if err := cache.TakeJSON(ctx, h.Cache, flashKeyPrefix+sessionID, &f); err != nil {
		if !cache.IsNotFound(err) {
			h.Logger.Warn("failed to read flash message", "error", err)
		}
		return nil
	}
	return &f
}

// UIState is the session's look: theme and sidebar.
type UIState struct {
	Theme            string `json:"theme"`
	SidebarCollapsed bool   `json:"sidebar_collapsed"`
}

// ToggleTheme flips between light and dark.
func (u *UIState) ToggleTheme() {
	if u.Theme == store.ThemeDark {
		u.Theme = store.ThemeLight
		return
	}
	u.Theme = store.ThemeDark
}

// UIFromSettings seeds the session look from the user's saved settings.
func UIFromSettings(s store.SystemSettings) UIState {
	return UIState{Theme: s.ThemeMode, SidebarCollapsed: s.SidebarCollapse}
}

// LoadUI returns the session's UI state. A session without one starts from
// the user's settings.
func (h *Handler) LoadUI(ctx context.Context, sessionID, userID string) UIState {
	var u UIState
	err := cache.GetJSON(ctx, h.Cache, uiKeyPrefix+sessionID, &u)
	if err == nil && u.Theme != "" {
		return u
	}
	if err != nil && !cache.IsNotFound(err) {
		h.Logger.Warn("failed to read ui state", "error", err)
	}

	u = UIFromSettings(h.Settings(ctx, userID))
	if u.Theme == "" {
		u.Theme = h.Config.Rendering.DefaultTheme
	}
	return u
}

// SaveUI stores the session's UI state for the life of the session.
func (h *Handler) SaveUI(ctx context.Context, sessionID string, u UIState) error {
	return cache.SetJSON(ctx, h.Cache, uiKeyPrefix+sessionID, u, h.sessionTTL())
}

// ForgetSession drops everything kept per session besides the session
// itself.
func (h *Handler) ForgetSession(ctx context.Context, sessionID string) {
	for _, key := range []string{uiKeyPrefix + sessionID, flashKeyPrefix + sessionID} {
		if err := h.Cache.Delete(ctx, key); err != nil && !cache.IsNotFound(err) {
			h.Logger.Debug("failed to delete session key", "key", key, "error", err)
		}
	}
	if h.NavState != nil {
		if err := h.NavState.Delete(ctx, sessionID); err != nil && !cache.IsNotFound(err) {
			h.Logger.Debug("failed to delete navigation state", "error", err)
		}
	}
	if h.CSRF != nil {
		if err := h.CSRF.Revoke(ctx, sessionID); err != nil && !cache.IsNotFound(err) {
			h.Logger.Debug("failed to revoke csrf token", "error", err)
		}
	}
}

func (h *Handler) sessionTTL() time.Duration {
	if h.Sessions != nil && h.Sessions.SessionDuration > 0 {
		return h.Sessions.SessionDuration
	}
	return h.Config.Auth.SessionDuration
}
