// Package layout renders the dashboard shell and handles navigation: menu
// and breadcrumb selection, submenu expansion, theme and sidebar toggles.
package layout

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/navigation"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"
)

type LayoutHandler struct {
	h     *handlers.Handler
	pages map[string]pageSpec
}

func NewLayoutHandler(h *handlers.Handler) *LayoutHandler {
	l := &LayoutHandler{h: h}
	l.pages = l.pageSpecs()
	return l
}

// Dashboard renders the layout around the session's current page.
func (l *LayoutHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := handlers.Session(r)
	state := l.loadState(r)
	ui := l.h.LoadUI(ctx, session.SessionID, session.UserID)
	flash := l.h.TakeFlash(ctx, session.SessionID)

	pc := views.PageContext{CSRFToken: security.GetCSRFToken(r), Permissions: session.Permissions}
	if flash != nil {
		pc.Errors = flash.Fields
	}

	content := l.h.Nav.Content(ctx, state)
	body := l.renderContent(r, content, pc)

	// the stored record reflects profile edits made during this session
	badge := views.UserBadge{ID: session.UserID, Name: session.Name, Role: firstRole(session.Roles)}
	if user, err := l.h.Store.GetUser(ctx, session.UserID); err == nil {
		badge.Name, badge.Avatar = user.Name, user.Avatar
	}

	view := l.h.Nav.View(state)
	l.h.Views.Render(w, http.StatusOK, "layout", views.Layout{
		AppName:          l.h.Config.App.Name,
		Version:          l.h.Config.App.Version,
		Title:            view.Title,
		Theme:            ui.Theme,
		SidebarCollapsed: ui.SidebarCollapsed,
		User:             badge,
		Nav:              view,
		Content:          body,
		ContentKind:      content.Kind.String(),
		AutoRefresh:      content.Kind == navigation.ContentLoading,
		Flash:            flash,
		CSRFToken:        pc.CSRFToken,
	})
}

func firstRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	return roles[0]
}

// renderContent turns the resolved content into HTML. Failures degrade to a
// placeholder so the navigation chrome always renders.
func (l *LayoutHandler) renderContent(r *http.Request, content navigation.Content, pc views.PageContext) template.HTML {
	session := handlers.Session(r)

	switch content.Kind {
	case navigation.ContentHome:
		home, err := l.homeData(r.Context(), session.Name)
		if err != nil {
			l.h.Logger.Warn("failed to count dashboard records", "error", err)
		}
		return l.fragment("home", home)
	case navigation.ContentNotFound:
		return l.fragment("not-found", nil)
	case navigation.ContentLoading:
		return l.fragment("loading", nil)
	case navigation.ContentFailed:
		return l.fragment("load-failed", nil)
	}

	spec := l.pages[pageTemplates[content.Key]]
	if spec.Permission != "" && !session.HasPermission(spec.Permission) {
		l.h.Logger.Warn("page access denied", "user_id", session.UserID, "key", content.Key, "permission", spec.Permission)
		return l.fragment("forbidden", nil)
	}

	var data any = pc
	if spec.Data != nil {
		d, err := spec.Data(r, pc)
		if err != nil {
			l.h.Logger.Error("failed to load page data", "key", content.Key, "error", err)
			return l.fragment("load-failed", nil)
		}
		data = d
	}

	var buf bytes.Buffer
	if err := content.Component.Render(&buf, data); err != nil {
		l.h.Logger.Error("page render failed", "key", content.Key, "error", err)
		return l.fragment("load-failed", nil)
	}
	return template.HTML(buf.String())
}

func (l *LayoutHandler) fragment(name string, data any) template.HTML {
	html, err := l.h.Views.Fragment(name, data)
	if err != nil {
		l.h.Logger.Error("fragment render failed", "fragment", name, "error", err)
		return ""
	}
	return html
}

func (l *LayoutHandler) loadState(r *http.Request) *navigation.State {
	state, err := l.h.NavState.Load(r.Context(), middlewares.GetSessionIDFromContext(r))
	if err != nil {
		l.h.Logger.Warn("navigation state unavailable, starting fresh", "error", err)
	}
	return state
}

func (l *LayoutHandler) saveState(r *http.Request, state *navigation.State) error {
	return l.h.NavState.Save(r.Context(), middlewares.GetSessionIDFromContext(r), state)
}

// NavigationResponse is the JSON form of the navigation chrome.
type NavigationResponse struct {
	navigation.View
	ContentKind      string `json:"content_kind"`
	Theme            string `json:"theme"`
	SidebarCollapsed bool   `json:"sidebar_collapsed"`
}

func (l *LayoutHandler) navigationResponse(r *http.Request, state *navigation.State) NavigationResponse {
	session := handlers.Session(r)
	ui := l.h.LoadUI(r.Context(), session.SessionID, session.UserID)
	return NavigationResponse{
		View:             l.h.Nav.View(state),
		ContentKind:      l.h.Nav.Content(r.Context(), state).Kind.String(),
		Theme:            ui.Theme,
		SidebarCollapsed: ui.SidebarCollapsed,
	}
}

// Navigation returns the menu, breadcrumb and selection as JSON.
func (l *LayoutHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	config.RespondJSON(w, http.StatusOK, l.navigationResponse(r, l.loadState(r)))
}

// SelectRequest activates a page, from a menu item or a breadcrumb crumb.
type SelectRequest struct {
	Key string `json:"key"`
}

func (req *SelectRequest) BindForm(form url.Values) error {
	req.Key = form.Get("key")
	return nil
}

// Select makes the posted key the current page. Unknown keys are accepted
// and render the not-found placeholder.
func (l *LayoutHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		l.h.Fail(w, r, "page", err)
		return
	}
	if req.Key == "" {
		l.h.Fail(w, r, "page", handlers.BadRequest("Page key is required", nil))
		return
	}

	state := l.loadState(r)
	l.h.Nav.Select(state, req.Key)
	l.commit(w, r, state)
}

// OpenRequest changes the expanded submenus. OpenKeys, when present,
// replaces the whole set; otherwise Key is toggled.
type OpenRequest struct {
	Key      string    `json:"key"`
	OpenKeys *[]string `json:"openKeys"`
}

func (req *OpenRequest) BindForm(form url.Values) error {
	req.Key = form.Get("key")
	if form.Has("open_keys") {
		keys := form["open_keys"]
		req.OpenKeys = &keys
	}
	return nil
}

// Open expands or collapses submenus. It never changes the current page.
func (l *LayoutHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		l.h.Fail(w, r, "submenu", err)
		return
	}

	state := l.loadState(r)
	switch {
	case req.OpenKeys != nil:
		state.SetOpenKeys(*req.OpenKeys)
	case req.Key != "":
		state.ToggleOpen(req.Key)
	default:
		l.h.Fail(w, r, "submenu", handlers.BadRequest("Submenu key is required", nil))
		return
	}
	l.commit(w, r, state)
}

// commit saves the state and answers with the new chrome (API) or a redirect
// back to the layout.
func (l *LayoutHandler) commit(w http.ResponseWriter, r *http.Request, state *navigation.State) {
	if err := l.saveState(r, state); err != nil {
		l.h.Fail(w, r, "navigation state", err)
		return
	}
	if middlewares.IsAPIRequest(r) {
		config.RespondJSON(w, http.StatusOK, l.navigationResponse(r, state))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ThemeRequest sets the theme; empty toggles it.
type ThemeRequest struct {
	Theme string `json:"theme"`
}

func (req *ThemeRequest) BindForm(form url.Values) error {
	req.Theme = form.Get("theme")
	return nil
}

// Theme switches the session between light and dark.
func (l *LayoutHandler) Theme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		l.h.Fail(w, r, "theme", err)
		return
	}

	session := handlers.Session(r)
	ui := l.h.LoadUI(r.Context(), session.SessionID, session.UserID)
	switch req.Theme {
	case "":
		ui.ToggleTheme()
	case store.ThemeLight, store.ThemeDark:
		ui.Theme = req.Theme
	default:
		l.h.Fail(w, r, "theme", handlers.BadRequest("Theme must be light or dark", nil))
		return
	}
	l.commitUI(w, r, ui)
}

// SidebarRequest sets the sidebar state; absent toggles it.
type SidebarRequest struct {
	Collapsed *bool `json:"collapsed"`
}

func (req *SidebarRequest) BindForm(form url.Values) error {
	if form.Has("collapsed") {
		v := handlers.FormBool(form, "collapsed")
		req.Collapsed = &v
	}
	return nil
}

// Sidebar collapses or expands the sidebar.
func (l *LayoutHandler) Sidebar(w http.ResponseWriter, r *http.Request) {
	var req SidebarRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		l.h.Fail(w, r, "sidebar", err)
		return
	}

	session := handlers.Session(r)
	ui := l.h.LoadUI(r.Context(), session.SessionID, session.UserID)
	if req.Collapsed != nil {
		ui.SidebarCollapsed = *req.Collapsed
	} else {
		ui.SidebarCollapsed = !ui.SidebarCollapsed
	}
	l.commitUI(w, r, ui)
}

func (l *LayoutHandler) commitUI(w http.ResponseWriter, r *http.Request, ui handlers.UIState) {
	if err := l.h.SaveUI(r.Context(), middlewares.GetSessionIDFromContext(r), ui); err != nil {
		l.h.Fail(w, r, "ui state", err)
		return
	}
	if middlewares.IsAPIRequest(r) {
		config.RespondJSON(w, http.StatusOK, ui)
		return
	}
	http.Redirect(w, r, handlers.ReturnTo(r), http.StatusSeeOther)
}
