package layout

import (
	"context"
	"errors"
	"net/http"

	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/navigation"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"

	"golang.org/x/sync/errgroup"
)

// pageTemplates maps each navigable key to the template under
// web/templates/pages that renders it. The settings and orders parents show
// their first child's page.
var pageTemplates = map[string]string{
	"2":   "users",
	"3":   "products",
	"4":   "profile",
	"4-1": "profile",
	"4-2": "system",
	"4-3": "permissions",
	"5":   "orders",
	"5-1": "orders",
}

// Components is the navigation component map. Each page template is parsed
// the first time its key is selected.
func Components(r *views.Renderer) navigation.ComponentMap {
	m := make(navigation.ComponentMap, len(pageTemplates))
	for key, name := range pageTemplates {
		m[key] = r.Loader(name)
	}
	return m
}

// pageData builds the data a page template renders.
type pageData func(r *http.Request, pc views.PageContext) (any, error)

type pageSpec struct {
	// Permission gates the page; empty means any signed-in user.
	Permission string
	Data       pageData
}

func (l *LayoutHandler) pageSpecs() map[string]pageSpec {
	return map[string]pageSpec{
		"users":       {Permission: store.PermUserView, Data: l.usersData},
		"products":    {Permission: store.PermProductView, Data: l.productsData},
		"profile":     {Data: l.profileData},
		"system":      {Permission: store.PermSystemSetting, Data: l.systemData},
		"permissions": {Permission: store.PermPermissionManage, Data: l.permissionsData},
		"orders":      {},
	}
}

type UsersPage struct {
	views.PageContext
	Users   []store.User
	Roles   []store.Role
	Pager   *views.Pager
	Search  string
	Editing *store.User
}

type ProductsPage struct {
	views.PageContext
	Products []store.Product
	Pager    *views.Pager
	Search   string
	Editing  *store.Product
}

type PermissionsPage struct {
	views.PageContext
	Roles   []store.Role
	Tree    []store.PermissionGroup
	Pager   *views.Pager
	Search  string
	Editing *store.Role
}

type ProfilePage struct {
	views.PageContext
	User *store.User
}

type SystemPage struct {
	views.PageContext
	Settings    store.SystemSettings
	MaxPageSize int
}

func pager(p *middlewares.PaginationParams) *views.Pager {
	return &views.Pager{
		Page:    p.Page,
		Pages:   p.Pages,
		Total:   p.Total,
		Search:  p.Search,
		Numbers: p.PageNumbers(),
	}
}

// editing loads the record named by ?edit=, treating a stale id as none.
func editing[T any](r *http.Request, get func(context.Context, string) (*T, error)) (*T, error) {
	id := r.URL.Query().Get("edit")
	if id == "" {
		return nil, nil
	}
	v, err := get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (l *LayoutHandler) usersData(r *http.Request, pc views.PageContext) (any, error) {
	ctx := r.Context()
	p := l.h.Paginate(r)
	users, total, err := l.h.Store.ListUsers(ctx, p.ListOptions())
	if err != nil {
		return nil, err
	}
	p.SetTotal(total)
	roles, _, err := l.h.Store.ListRoles(ctx, store.ListOptions{})
	if err != nil {
		return nil, err
	}
	edit, err := editing(r, l.h.Store.GetUser)
	if err != nil {
		return nil, err
	}
	return UsersPage{PageContext: pc, Users: users, Roles: roles, Pager: pager(p), Search: p.Search, Editing: edit}, nil
}

func (l *LayoutHandler) productsData(r *http.Request, pc views.PageContext) (any, error) {
	p := l.h.Paginate(r)
	products, total, err := l.h.Store.ListProducts(r.Context(), p.ListOptions())
	if err != nil {
		return nil, err
	}
	p.SetTotal(total)
	edit, err := editing(r, l.h.Store.GetProduct)
	if err != nil {
		return nil, err
	}
	return ProductsPage{PageContext: pc, Products: products, Pager: pager(p), Search: p.Search, Editing: edit}, nil
}

func (l *LayoutHandler) permissionsData(r *http.Request, pc views.PageContext) (any, error) {
	p := l.h.Paginate(r)
	roles, total, err := l.h.Store.ListRoles(r.Context(), p.ListOptions())
	if err != nil {
		return nil, err
	}
	p.SetTotal(total)
	edit, err := editing(r, l.h.Store.GetRole)
	if err != nil {
		return nil, err
	}
	return PermissionsPage{PageContext: pc, Roles: roles, Tree: store.PermissionTree, Pager: pager(p), Search: p.Search, Editing: edit}, nil
}

func (l *LayoutHandler) profileData(r *http.Request, pc views.PageContext) (any, error) {
	user, err := l.h.Store.GetUser(r.Context(), handlers.Session(r).UserID)
	if err != nil {
		return nil, err
	}
	return ProfilePage{PageContext: pc, User: user}, nil
}

func (l *LayoutHandler) systemData(r *http.Request, pc views.PageContext) (any, error) {
	settings, err := l.h.Store.GetSettings(r.Context(), handlers.Session(r).UserID)
	if err != nil {
		return nil, err
	}
	return SystemPage{PageContext: pc, Settings: settings, MaxPageSize: l.h.Pagination.MaxPageSize}, nil
}

// homeData counts the dashboard's records for the landing cards.
func (l *LayoutHandler) homeData(ctx context.Context, name string) (views.Home, error) {
	home := views.Home{Name: name}
	one := store.ListOptions{Limit: 1}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		_, home.Users, err = l.h.Store.ListUsers(ctx, one)
		return err
	})
	g.Go(func() (err error) {
		_, home.Products, err = l.h.Store.ListProducts(ctx, one)
		return err
	})
	g.Go(func() (err error) {
		_, home.Roles, err = l.h.Store.ListRoles(ctx, one)
		return err
	})
	return home, g.Wait()
}
