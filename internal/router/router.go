package router

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxRequestBodySize caps form and JSON bodies.
const DefaultMaxRequestBodySize = 1 << 20 // 1 MB

// RouterType defines the type of router for logical separation
type RouterType string

const (
	RouterTypeAPI  RouterType = "api"  // JSON endpoints under BasePath/Version
	RouterTypePage RouterType = "page" // HTML pages and form posts, mounted as written
)

// MiddlewaresType defines the middleware function signature
type MiddlewaresType func(http.Handler) http.Handler

// Route represents a single HTTP route
type Route struct {
	Category    string
	Method      string
	Path        string
	HandlerFunc http.HandlerFunc
	Middlewares []MiddlewaresType
	RouterType  RouterType
}

// RouteGroup represents a group of routes with shared configuration
type RouteGroup struct {
	Prefix      string
	Middlewares []MiddlewaresType
	Routes      []*Route
	Category    string
	RouterType  RouterType
}

// CompiledRoute is a registered route as the mux sees it.
type CompiledRoute struct {
	Method       string       `json:"method"`
	Path         string       `json:"path"`
	FullPattern  string       `json:"pattern"`
	OriginalPath string       `json:"original_path"`
	Category     string       `json:"category"`
	RouterType   RouterType   `json:"type"`
	RegisteredAt time.Time    `json:"registered_at"`
	Handler      http.Handler `json:"-"`
}

// RouterConfig holds all configuration for the router
type RouterConfig struct {
	Version  string
	BasePath string
	Mode     string // "dev" or "prod"

	// MaxRequestBodySize bounds every request body. Default: 1 MB
	MaxRequestBodySize int64

	// Static is served under StaticPrefix when set
	Static       fs.FS
	StaticPrefix string
}

// DefaultRouterConfig returns the layout the dashboard is served with.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Version:            "v1",
		BasePath:           "/api",
		Mode:               "prod",
		MaxRequestBodySize: DefaultMaxRequestBodySize,
		StaticPrefix:       "/static/",
	}
}

type RouteConflictError struct {
	NewRoute      string
	ExistingRoute string
	Message       string
}

func (e *RouteConflictError) Error() string {
	return fmt.Sprintf("route conflict: %s conflicts with existing route %s - %s",
		e.NewRoute, e.ExistingRoute, e.Message)
}

// RouterImpl mounts routes on a ServeMux, wrapping each in the global
// middleware chain followed by its own.
type RouterImpl struct {
	config            *RouterConfig
	mux               *http.ServeMux
	logger            *slog.Logger
	compiledRoutes    map[string]*CompiledRoute // "METHOD /path" -> route
	order             []string
	globalMiddlewares []MiddlewaresType
	routesMu          sync.RWMutex
}

// NewRouter creates a new Router instance with the given configuration
func NewRouter(config *RouterConfig, logger *slog.Logger, globalMiddlewares ...MiddlewaresType) *RouterImpl {
	if config == nil {
		config = DefaultRouterConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxRequestBodySize <= 0 {
		config.MaxRequestBodySize = DefaultMaxRequestBodySize
	}

	r := &RouterImpl{
		config:         config,
		mux:            http.NewServeMux(),
		logger:         logger,
		compiledRoutes: make(map[string]*CompiledRoute),
	}

	r.globalMiddlewares = append(r.globalMiddlewares, r.bodySizeLimitMiddleware())
	r.globalMiddlewares = append(r.globalMiddlewares, globalMiddlewares...)

	if config.Static != nil {
		r.setupStaticFiles()
	}
	if config.Mode == "dev" {
		r.registerDocumentation()
	}
	return r
}

// ServeHTTP dispatches to the registered routes.
func (r *RouterImpl) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handle mounts an operational endpoint, such as health probes, outside the
// global middleware chain.
func (r *RouterImpl) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
	r.logger.Debug("endpoint registered", "pattern", pattern)
}

// Routes lists the registered routes in registration order.
func (r *RouterImpl) Routes() []*CompiledRoute {
	r.routesMu.RLock()
	defer r.routesMu.RUnlock()
	out := make([]*CompiledRoute, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.compiledRoutes[k])
	}
	return out
}

func (r *RouterImpl) setupStaticFiles() {
	urlPrefix := r.config.StaticPrefix
	if urlPrefix == "" {
		urlPrefix = "/static/"
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}

	fileServer := http.FileServerFS(r.config.Static)
	stripPrefix := http.StripPrefix(strings.TrimSuffix(urlPrefix, "/"), fileServer)
	r.mux.Handle("GET "+urlPrefix+"{path...}", stripPrefix)

	r.logger.Info("static files enabled", "prefix", urlPrefix)
}

// sanitizePath cleans and validates a path to prevent traversal attacks
// Returns sanitized path without leading slash
func sanitizePath(p string) string {
	cleaned := path.Clean("/" + p)
	cleaned = strings.Trim(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.Contains(cleaned, "..") {
		return ""
	}
	return cleaned
}

// preparePath builds the mux pattern. API routes are prefixed with the base
// path and version, page routes are mounted as written.
func (r *RouterImpl) preparePath(route *Route) string {
	method := strings.ToUpper(route.Method)

	p := sanitizePath(route.Path)
	if route.RouterType == RouterTypePage {
		if p == "" {
			// exact root; a bare "/" pattern would match every path
			return method + " /{$}"
		}
		return method + " /" + p
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteString(" /")
	parts := []string{sanitizePath(r.config.BasePath), sanitizePath(r.config.Version), p}
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if !first {
			b.WriteString("/")
		}
		b.WriteString(part)
		first = false
	}
	return b.String()
}

// Register registers a single route with conflict detection
func (r *RouterImpl) Register(route *Route) {
	if route == nil || route.HandlerFunc == nil {
		r.logger.Error("refusing to register route without handler")
		return
	}
	route.Method = strings.ToUpper(route.Method)
	if route.RouterType == "" {
		route.RouterType = RouterTypeAPI
	}
	finalPath := r.preparePath(route)

	r.routesMu.Lock()
	if err := r.checkRouteConflict(finalPath); err != nil {
		r.routesMu.Unlock()
		if r.config.Mode == "dev" {
			r.logger.Error("route conflict detected", "error", err)
			panic(err)
		}
		// ServeMux would panic on the duplicate pattern anyway
		r.logger.Warn("route conflict detected, keeping the first", "error", err)
		return
	}

	compiled := &CompiledRoute{
		Method:       route.Method,
		Path:         strings.TrimPrefix(finalPath, route.Method+" "),
		FullPattern:  finalPath,
		OriginalPath: route.Path,
		Category:     route.Category,
		RouterType:   route.RouterType,
		RegisteredAt: time.Now(),
	}
	r.compiledRoutes[finalPath] = compiled
	r.order = append(r.order, finalPath)
	r.routesMu.Unlock()

	// Apply global middlewares first, then route-specific
	all := make([]MiddlewaresType, 0, len(r.globalMiddlewares)+len(route.Middlewares))
	all = append(all, r.globalMiddlewares...)
	all = append(all, route.Middlewares...)
	handler := r.chainMiddlewares(route.HandlerFunc, all)
	compiled.Handler = handler
	r.mux.Handle(finalPath, handler)

	r.logger.Debug("route registered", "method", route.Method, "path", finalPath, "type", route.RouterType)
}

// RegisterGroup registers a group of routes with shared configuration
func (r *RouterImpl) RegisterGroup(group *RouteGroup) {
	if group == nil {
		return
	}

	for _, route := range group.Routes {
		if route.Category == "" && group.Category != "" {
			route.Category = group.Category
		}
		if route.RouterType == "" {
			route.RouterType = group.RouterType
		}

		if group.Prefix != "" {
			prefix := strings.TrimSuffix(group.Prefix, "/")
			route.Path = prefix + "/" + strings.TrimPrefix(route.Path, "/")
		}

		if len(group.Middlewares) > 0 {
			mws := make([]MiddlewaresType, 0, len(group.Middlewares)+len(route.Middlewares))
			mws = append(mws, group.Middlewares...)
			route.Middlewares = append(mws, route.Middlewares...)
		}

		r.Register(route)
	}

	r.logger.Debug("route group registered", "prefix", group.Prefix, "routes", len(group.Routes))
}

// chainMiddlewares chains middlewares for a handler (bottom-up)
func (r *RouterImpl) chainMiddlewares(handler http.Handler, middlewares []MiddlewaresType) http.Handler {
	// Apply middlewares in reverse order so the first middleware wraps everything
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

func (r *RouterImpl) checkRouteConflict(pattern string) error {
	if existing, exists := r.compiledRoutes[pattern]; exists {
		return &RouteConflictError{
			NewRoute:      pattern,
			ExistingRoute: existing.FullPattern,
			Message:       fmt.Sprintf("registered at %s", existing.RegisteredAt.Format(time.RFC3339)),
		}
	}
	return nil
}

func (r *RouterImpl) bodySizeLimitMiddleware() MiddlewaresType {
	limit := r.config.MaxRequestBodySize
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Body != nil {
				req.Body = http.MaxBytesReader(w, req.Body, limit)
			}
			next.ServeHTTP(w, req)
		})
	}
}

// registerDocumentation lists every route as JSON (dev mode only)
func (r *RouterImpl) registerDocumentation() {
	r.mux.HandleFunc("GET /documentation/json", func(w http.ResponseWriter, req *http.Request) {
		routes := r.Routes()
		sort.SliceStable(routes, func(i, j int) bool {
			if routes[i].Category != routes[j].Category {
				return routes[i].Category < routes[j].Category
			}
			return routes[i].Path < routes[j].Path
		})
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"total_routes": len(routes),
			"routes":       routes,
		}); err != nil {
			r.logger.Error("failed to encode documentation", "error", err)
		}
	})
}
