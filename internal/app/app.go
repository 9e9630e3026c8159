// Package app assembles the dashboard from configuration: store, cache,
// navigation, handlers and routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"admin_dashboard/internal/cache"
	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/handlers/layout"
	"admin_dashboard/internal/jobs"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/navigation"
	"admin_dashboard/internal/observability"
	"admin_dashboard/internal/router"
	"admin_dashboard/internal/security"
	"admin_dashboard/internal/server"
	"admin_dashboard/internal/store"
	"admin_dashboard/internal/views"
	"admin_dashboard/web"
)

// App is a wired dashboard ready to be served.
type App struct {
	Handler   http.Handler
	Navigator *navigation.Navigator
	Router    *router.RouterImpl
	Jobs      *jobs.Scheduler

	// Resources are closed in reverse order on shutdown.
	Resources []server.Resource
}

// Close releases every resource without a server around it.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.Resources) - 1; i >= 0; i-- {
		if err := a.Resources[i].Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Resources[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Build wires the dashboard. Without DB_URL it runs on the seeded in-memory
// store, and without REDIS_ADDR on the in-memory cache.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	hasher := security.NewPasswordHasher()

	st, err := openStore(ctx, cfg, hasher, logger)
	if err != nil {
		return nil, err
	}
	a.Resources = append(a.Resources, server.CloserResource("store", func() error {
		st.Close()
		return nil
	}))

	c := openCache(cfg, logger)
	a.Resources = append(a.Resources, server.CloserResource("cache", c.Close))

	h := handlers.NewHandler(st, c, logger, cfg)
	h.Hasher = hasher
	h.Sessions = middlewares.NewSessionConfig(cfg, c, security.NewRBAC(st, logger), logger)

	h.CSRF, err = security.NewCSRFProtection(&security.CSRFConfig{
		Cache:         c,
		Logger:        logger,
		TokenLifetime: cfg.Auth.SessionDuration,
		SessionID:     middlewares.GetSessionIDFromContext,
	})
	if err != nil {
		return nil, fmt.Errorf("csrf: %w", err)
	}

	h.Views, err = views.NewRenderer(web.Templates(cfg.Rendering.TemplatesDir), logger)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	var metrics *observability.Metrics
	opts := navigation.Options{Strict: cfg.Navigation.Strict, LoadWait: cfg.Navigation.LoadWait}
	if cfg.Metrics.Enabled {
		mcfg := observability.DefaultMetricsConfig("dashboard")
		mcfg.Logger = logger
		metrics = observability.NewMetrics(mcfg)
		opts.Observer = metrics
	}

	decl, err := navigation.LoadDeclaration(cfg.Navigation.RoutesFile)
	if err != nil {
		return nil, fmt.Errorf("route declaration: %w", err)
	}
	h.Nav, err = navigation.New(decl, navigation.DefaultIcons(), layout.Components(h.Views), logger, opts)
	if err != nil {
		return nil, fmt.Errorf("navigation: %w", err)
	}
	a.Navigator = h.Nav
	a.Resources = append(a.Resources, server.CloserResource("navigation", h.Nav.Close))
	h.NavState = navigation.NewStateStore(c, h.Nav.HomeKey(), cfg.Auth.SessionDuration)

	limiter := middlewares.NewRateLimiter(&middlewares.RateLimitConfig{
		Cache:  c,
		Logger: logger,
		Limit:  cfg.RateLimit.LoginAttempts,
		Window: cfg.RateLimit.Window,
	})

	a.Jobs = backgroundJobs(cfg, h.Nav, c, logger)
	a.Jobs.Start(context.WithoutCancel(ctx))
	a.Resources = append(a.Resources, server.CloserResource("jobs", a.Jobs.Close))

	health := observability.DefaultHealthConfig()
	health.Logger = logger
	health.Version = cfg.App.Version
	health.IncludeSystemInfo = cfg.IsDevelopment()
	health.Register("store", observability.PingCheck("store", st, true))
	health.Register("cache", observability.PingCheck("cache", c, false))

	a.Router = router.New(&router.Deps{
		Handler: h,
		Limiter: limiter,
		Metrics: metrics,
		Health:  health,
		Static:  web.Static(cfg.Rendering.StaticDir),
	})
	a.Handler = a.Router

	logger.Info("dashboard assembled",
		"routes", len(a.Router.Routes()),
		"home", h.Nav.HomeKey(),
		"pages", len(h.Nav.Table().Flatten()),
	)
	return a, nil
}

// openStore connects to Postgres when configured, migrating and seeding it,
// and falls back to the seeded mock data otherwise.
func openStore(ctx context.Context, cfg *config.Config, hasher *security.PasswordHasher, logger *slog.Logger) (store.Store, error) {
	hash, err := hasher.Hash(cfg.Auth.DemoPassword)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	if cfg.Database.URL == "" {
		logger.Info("using in-memory store with demo data")
		return store.NewSeededMemoryStore(hash), nil
	}

	pool, err := config.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	ps := store.NewPostgresStore(pool, logger)

	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := ps.Migrate(setupCtx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := ps.Seed(setupCtx, hash); err != nil {
		ps.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return ps, nil
}

func openCache(cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, using in-memory cache")
		return cache.NewMemoryCache(nil)
	}
	rc := cache.DefaultRedisConfig()
	rc.Addr = cfg.Redis.Addr
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.Logger = logger
	return cache.NewFallbackCache(&cache.FallbackConfig{
		Redis:  rc,
		Memory: cache.DefaultConfig(),
		Logger: logger,
	})
}

// backgroundJobs warms the page components and, when Redis was down at
// startup, keeps trying to reach it.
func backgroundJobs(cfg *config.Config, nav *navigation.Navigator, c cache.Cache, logger *slog.Logger) *jobs.Scheduler {
	sched := jobs.NewScheduler(logger)
	if cfg.Navigation.Preload {
		sched.Register(jobs.Job{
			Name: "navigation.preload",
			Run:  nav.Preload,
			Config: &jobs.JobConfig{
				MaxRetries:   2,
				RetryBackoff: jobs.ExponentialBackoff,
				BaseDelay:    time.Second,
				Timeout:      time.Minute,
			},
		})
	}
	if fc, ok := c.(*cache.FallbackCache); ok && cfg.Redis.ProbeInterval > 0 {
		sched.Register(jobs.Job{
			Name:     "cache.reconnect",
			Run:      fc.Reconnect,
			Schedule: jobs.Every(cfg.Redis.ProbeInterval),
			Config: &jobs.JobConfig{
				RetryBackoff: jobs.NoBackoff,
				Timeout:      10 * time.Second,
				Delay:        cfg.Redis.ProbeInterval,
			},
		})
	}
	return sched
}
