// Package views holds the view models handed to the dashboard templates and
// the renderer that executes them.
package views

import (
	"html/template"
	"slices"

	"admin_dashboard/internal/navigation"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot notification shown above the content area.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Fields are the per-field problems of a rejected form.
	Fields map[string]string `json:"fields,omitempty"`
}

// UserBadge is the signed-in user shown in the header.
type UserBadge struct {
	ID     string
	Name   string
	Avatar string
	Role   string
}

// Layout is the data for the "layout" template: navigation chrome around a
// pre-rendered content area.
type Layout struct {
	AppName          string
	Version          string
	Title            string
	Theme            string
	SidebarCollapsed bool
	User             UserBadge
	Nav              navigation.View
	Content          template.HTML
	ContentKind      string
	// AutoRefresh reloads the page while a deferred component is loading.
	AutoRefresh bool
	Flash       *Flash
	CSRFToken   string
}

// IsOpen reports whether the submenu for key is expanded.
func (l Layout) IsOpen(key string) bool {
	return slices.Contains(l.Nav.OpenKeys, key)
}

// IsSelected reports whether key is the active page.
func (l Layout) IsSelected(key string) bool {
	return l.Nav.CurrentPageKey == key
}

// LoginPage is the data for the "login" template.
type LoginPage struct {
	AppName     string
	Theme       string
	Username    string
	CallbackURL string
	Error       string
}

// Home feeds the dashboard landing cards.
type Home struct {
	Name     string
	Users    int
	Products int
	Roles    int
}

// PageContext is embedded in the data of every page component.
type PageContext struct {
	CSRFToken   string
	Permissions []string
	// Errors carries field problems from a rejected form post.
	Errors map[string]string
}

// Can reports whether the viewer holds perm.
func (p PageContext) Can(perm string) bool {
	return slices.Contains(p.Permissions, perm)
}

// Pager drives the "pager" partial.
type Pager struct {
	Page    int
	Pages   int
	Total   int
	Search  string
	Numbers []int
}
