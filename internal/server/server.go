package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"time"

	"admin_dashboard/internal/config"
)

// Config holds HTTP server configuration
type Config struct {
	// Server address (host:port)
	Addr string

	Logger *slog.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout bounds writing the response, and with it the time a page
	// may spend waiting on deferred content
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
	MaxHeaderBytes int

	// TLS configuration
	TLSCertFile string
	TLSKeyFile  string

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:            addr,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: 30 * time.Second,
	}
}

// FromAppConfig derives the server configuration from application settings.
func FromAppConfig(cfg *config.Config, logger *slog.Logger) *Config {
	c := DefaultConfig(cfg.GetServerAddress())
	c.Logger = logger
	if !cfg.IsProduction() {
		c.ShutdownTimeout = 5 * time.Second
	}
	if cfg.TLS.Enabled {
		c.TLSCertFile = cfg.TLS.CertFile
		c.TLSKeyFile = cfg.TLS.KeyFile
	}
	return c
}

// New creates a new HTTP server with the given configuration
func New(handler http.Handler, config *Config) *http.Server {
	if config == nil {
		config = DefaultConfig(":8080")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		MaxHeaderBytes:    config.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	logger.Info("http server configured",
		"addr", config.Addr,
		"read_timeout", config.ReadTimeout.String(),
		"write_timeout", config.WriteTimeout.String(),
		"idle_timeout", config.IdleTimeout.String(),
	)
	return server
}

// Run serves handler until ctx is cancelled or a shutdown signal arrives,
// then closes the server followed by resources in reverse order.
func Run(ctx context.Context, handler http.Handler, config *Config, resources ...Resource) error {
	if config == nil {
		config = DefaultConfig(":8080")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := New(handler, config)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	sm := NewShutdownManager(&ShutdownConfig{
		Logger:  logger,
		Timeout: config.ShutdownTimeout,
	})
	for _, r := range resources {
		sm.Register(r)
	}
	// registered last so it stops first
	sm.Register(NewHTTPServerResource("http-server", srv))

	serveErr := make(chan error, 1)
	go func() {
		tls := config.TLSCertFile != "" && config.TLSKeyFile != ""
		logger.Info("starting http server", "addr", ln.Addr().String(), "tls", tls)
		var err error
		if tls {
			err = srv.ServeTLS(ln, config.TLSCertFile, config.TLSKeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	select {
	case err := <-serveErr:
		// the listener died on its own; still release the resources
		shutdownErr := sm.Shutdown(context.Background())
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return shutdownErr
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownErr := sm.Shutdown(context.Background())
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return shutdownErr
}
