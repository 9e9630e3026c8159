package router

import (
	"io/fs"
	"net/http"

	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/handlers/account"
	"admin_dashboard/internal/handlers/auth"
	"admin_dashboard/internal/handlers/layout"
	"admin_dashboard/internal/handlers/products"
	"admin_dashboard/internal/handlers/roles"
	"admin_dashboard/internal/handlers/users"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/observability"
	"admin_dashboard/internal/store"
)

// Deps is everything the route table needs besides the handlers' own
// dependencies.
type Deps struct {
	Handler *handlers.Handler
	Limiter *middlewares.RateLimiter

	// Metrics is optional; nil disables request metrics and /metrics.
	Metrics *observability.Metrics
	Health  *observability.HealthConfig

	// Static is served under /static/ when set
	Static fs.FS
}

// New builds the dashboard router: the global middleware chain, every UI
// and API route, and the operational endpoints.
func New(d *Deps) *RouterImpl {
	h := d.Handler
	cfg := h.Config

	mode := "prod"
	if cfg.IsDevelopment() {
		mode = "dev"
	}

	loginPath := h.Nav.Pages().LoginPath
	h.Sessions.LoginPath = loginPath
	h.Sessions.SkipPaths = append(h.Sessions.SkipPaths, loginPath, "/api/v1/login")

	loggerCfg := middlewares.DefaultLoggerConfig()
	loggerCfg.Logger = h.Logger

	global := []MiddlewaresType{
		observability.RequestID(nil),
		middlewares.Recovery(&middlewares.RecoveryConfig{Logger: h.Logger, Development: cfg.IsDevelopment()}),
		middlewares.Logger(loggerCfg),
		middlewares.Security(nil),
	}
	if d.Metrics != nil {
		global = append(global, d.Metrics.Middleware)
	}
	global = append(global, middlewares.SessionAuth(h.Sessions))

	routerCfg := DefaultRouterConfig()
	routerCfg.Mode = mode
	routerCfg.Static = d.Static
	r := NewRouter(routerCfg, h.Logger, global...)

	if d.Health != nil {
		r.Handle("GET /health/live", observability.LivenessHandler())
		r.Handle("GET /health/ready", observability.ReadinessHandler(d.Health))
	}
	if d.Metrics != nil {
		r.Handle("GET /metrics", d.Metrics.Handler())
	}

	SetupRoutes(r, d, loginPath)
	return r
}

// SetupRoutes registers the UI pages, their form posts and the JSON API.
// Everything except login runs behind CSRF protection; SessionAuth in the
// global chain has already rejected anonymous callers.
func SetupRoutes(r *RouterImpl, d *Deps, loginPath string) {
	h := d.Handler
	csrf := MiddlewaresType(h.CSRF.Middleware)
	can := func(perms ...string) []MiddlewaresType {
		return []MiddlewaresType{middlewares.RequirePermission(h.Sessions, perms...)}
	}

	authH := auth.NewAuthHandler(h, d.Limiter)
	layoutH := layout.NewLayoutHandler(h)
	userH := users.NewUserHandler(h)
	roleH := roles.NewRoleHandler(h)
	productH := products.NewProductHandler(h)
	accountH := account.NewAccountHandler(h)

	limited := []MiddlewaresType{}
	if d.Limiter != nil {
		limited = append(limited, d.Limiter.Middleware)
	}

	// Login
	r.Register(&Route{Category: "auth", Method: http.MethodGet, Path: loginPath, HandlerFunc: authH.LoginPage, RouterType: RouterTypePage})
	r.Register(&Route{Category: "auth", Method: http.MethodPost, Path: loginPath, HandlerFunc: authH.Login, RouterType: RouterTypePage, Middlewares: limited})
	r.Register(&Route{Category: "auth", Method: http.MethodPost, Path: "/login", HandlerFunc: authH.Login, Middlewares: limited})

	// UI
	r.RegisterGroup(&RouteGroup{
		Category:    "layout",
		RouterType:  RouterTypePage,
		Middlewares: []MiddlewaresType{csrf},
		Routes: []*Route{
			{Method: http.MethodGet, Path: "/", HandlerFunc: layoutH.Dashboard},
			{Method: http.MethodPost, Path: "/logout", HandlerFunc: authH.Logout},
			{Method: http.MethodPost, Path: "/nav/select", HandlerFunc: layoutH.Select},
			{Method: http.MethodPost, Path: "/nav/open", HandlerFunc: layoutH.Open},
			{Method: http.MethodPost, Path: "/ui/theme", HandlerFunc: layoutH.Theme},
			{Method: http.MethodPost, Path: "/ui/sidebar", HandlerFunc: layoutH.Sidebar},
		},
	})

	// HTML form posts for the pages rendered inside the layout
	r.RegisterGroup(&RouteGroup{
		Category:    "forms",
		RouterType:  RouterTypePage,
		Middlewares: []MiddlewaresType{csrf},
		Routes: []*Route{
			{Method: http.MethodPost, Path: "/users", HandlerFunc: userH.CreateUser, Middlewares: can(store.PermUserCreate)},
			{Method: http.MethodPost, Path: "/users/{id}", HandlerFunc: userH.UpdateUser, Middlewares: can(store.PermUserEdit)},
			{Method: http.MethodPost, Path: "/users/{id}/delete", HandlerFunc: userH.DeleteUser, Middlewares: can(store.PermUserDelete)},
			{Method: http.MethodGet, Path: "/users/export", HandlerFunc: userH.ExportUsers, Middlewares: can(store.PermUserView)},

			{Method: http.MethodPost, Path: "/roles", HandlerFunc: roleH.CreateRole, Middlewares: can(store.PermPermissionManage)},
			{Method: http.MethodPost, Path: "/roles/{id}", HandlerFunc: roleH.UpdateRole, Middlewares: can(store.PermPermissionManage)},
			{Method: http.MethodPost, Path: "/roles/{id}/delete", HandlerFunc: roleH.DeleteRole, Middlewares: can(store.PermPermissionManage)},

			{Method: http.MethodPost, Path: "/products", HandlerFunc: productH.CreateProduct, Middlewares: can(store.PermProductCreate)},
			{Method: http.MethodPost, Path: "/products/{id}", HandlerFunc: productH.UpdateProduct, Middlewares: can(store.PermProductEdit)},
			{Method: http.MethodPost, Path: "/products/{id}/delete", HandlerFunc: productH.DeleteProduct, Middlewares: can(store.PermProductDelete)},
			{Method: http.MethodGet, Path: "/products/export", HandlerFunc: productH.ExportProducts, Middlewares: can(store.PermProductView)},

			{Method: http.MethodPost, Path: "/profile", HandlerFunc: accountH.UpdateProfile, Middlewares: can(store.PermProfileSetting)},
			{Method: http.MethodPost, Path: "/profile/password", HandlerFunc: accountH.ChangePassword, Middlewares: can(store.PermProfileSetting)},
			{Method: http.MethodPost, Path: "/settings/system", HandlerFunc: accountH.SaveSettings, Middlewares: can(store.PermSystemSetting)},
		},
	})

	// JSON API
	api := []*Route{
		{Category: "auth", Method: http.MethodPost, Path: "/logout", HandlerFunc: authH.Logout},
		{Category: "auth", Method: http.MethodGet, Path: "/me", HandlerFunc: authH.Me},

		{Category: "navigation", Method: http.MethodGet, Path: "/navigation", HandlerFunc: layoutH.Navigation},
		{Category: "navigation", Method: http.MethodPost, Path: "/navigation/select", HandlerFunc: layoutH.Select},
		{Category: "navigation", Method: http.MethodPost, Path: "/navigation/open", HandlerFunc: layoutH.Open},
		{Category: "navigation", Method: http.MethodPost, Path: "/ui/theme", HandlerFunc: layoutH.Theme},
		{Category: "navigation", Method: http.MethodPost, Path: "/ui/sidebar", HandlerFunc: layoutH.Sidebar},

		{Category: "users", Method: http.MethodGet, Path: "/users", HandlerFunc: userH.ListUsers, Middlewares: can(store.PermUserView)},
		{Category: "users", Method: http.MethodPost, Path: "/users", HandlerFunc: userH.CreateUser, Middlewares: can(store.PermUserCreate)},
		{Category: "users", Method: http.MethodGet, Path: "/users/export", HandlerFunc: userH.ExportUsers, Middlewares: can(store.PermUserView)},
		{Category: "users", Method: http.MethodGet, Path: "/users/{id}", HandlerFunc: userH.GetUser, Middlewares: can(store.PermUserView)},
		{Category: "users", Method: http.MethodPut, Path: "/users/{id}", HandlerFunc: userH.UpdateUser, Middlewares: can(store.PermUserEdit)},
		{Category: "users", Method: http.MethodDelete, Path: "/users/{id}", HandlerFunc: userH.DeleteUser, Middlewares: can(store.PermUserDelete)},

		{Category: "roles", Method: http.MethodGet, Path: "/permissions", HandlerFunc: roleH.Permissions, Middlewares: can(store.PermPermissionManage)},
		{Category: "roles", Method: http.MethodGet, Path: "/roles", HandlerFunc: roleH.ListRoles, Middlewares: can(store.PermPermissionManage)},
		{Category: "roles", Method: http.MethodPost, Path: "/roles", HandlerFunc: roleH.CreateRole, Middlewares: can(store.PermPermissionManage)},
		{Category: "roles", Method: http.MethodGet, Path: "/roles/{id}", HandlerFunc: roleH.GetRole, Middlewares: can(store.PermPermissionManage)},
		{Category: "roles", Method: http.MethodPut, Path: "/roles/{id}", HandlerFunc: roleH.UpdateRole, Middlewares: can(store.PermPermissionManage)},
		{Category: "roles", Method: http.MethodDelete, Path: "/roles/{id}", HandlerFunc: roleH.DeleteRole, Middlewares: can(store.PermPermissionManage)},

		{Category: "products", Method: http.MethodGet, Path: "/products", HandlerFunc: productH.ListProducts, Middlewares: can(store.PermProductView)},
		{Category: "products", Method: http.MethodPost, Path: "/products", HandlerFunc: productH.CreateProduct, Middlewares: can(store.PermProductCreate)},
		{Category: "products", Method: http.MethodGet, Path: "/products/export", HandlerFunc: productH.ExportProducts, Middlewares: can(store.PermProductView)},
		{Category: "products", Method: http.MethodGet, Path: "/products/{id}", HandlerFunc: productH.GetProduct, Middlewares: can(store.PermProductView)},
		{Category: "products", Method: http.MethodPut, Path: "/products/{id}", HandlerFunc: productH.UpdateProduct, Middlewares: can(store.PermProductEdit)},
		{Category: "products", Method: http.MethodDelete, Path: "/products/{id}", HandlerFunc: productH.DeleteProduct, Middlewares: can(store.PermProductDelete)},

		{Category: "account", Method: http.MethodGet, Path: "/profile", HandlerFunc: accountH.ViewProfile, Middlewares: can(store.PermProfileSetting)},
		{Category: "account", Method: http.MethodPut, Path: "/profile", HandlerFunc: accountH.UpdateProfile, Middlewares: can(store.PermProfileSetting)},
		{Category: "account", Method: http.MethodPost, Path: "/profile", HandlerFunc: accountH.UpdateProfile, Middlewares: can(store.PermProfileSetting)},
		{Category: "account", Method: http.MethodPost, Path: "/profile/password", HandlerFunc: accountH.ChangePassword, Middlewares: can(store.PermProfileSetting)},
		{Category: "account", Method: http.MethodGet, Path: "/settings/system", HandlerFunc: accountH.GetSettings, Middlewares: can(store.PermSystemSetting)},
		{Category: "account", Method: http.MethodPut, Path: "/settings/system", HandlerFunc: accountH.SaveSettings, Middlewares: can(store.PermSystemSetting)},
		{Category: "account", Method: http.MethodPost, Path: "/settings/system", HandlerFunc: accountH.SaveSettings, Middlewares: can(store.PermSystemSetting)},
	}
	r.RegisterGroup(&RouteGroup{RouterType: RouterTypeAPI, Middlewares: []MiddlewaresType{csrf}, Routes: api})
}
