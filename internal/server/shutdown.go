package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// ShutdownConfig holds configuration for graceful shutdown
type ShutdownConfig struct {
	Logger *slog.Logger

	// Timeout bounds closing every resource
	Timeout time.Duration
}

// Resource represents a resource that needs cleanup during shutdown
type Resource interface {
	Name() string
	Close(ctx context.Context) error
}

// ShutdownManager closes registered resources in reverse registration order.
type ShutdownManager struct {
	config    *ShutdownConfig
	logger    *slog.Logger
	resources []Resource
	mu        sync.Mutex
	once      sync.Once
	err       error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(config *ShutdownConfig) *ShutdownManager {
	if config == nil {
		config = &ShutdownConfig{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ShutdownManager{config: config, logger: logger}
}

// Register adds a resource to be cleaned up during shutdown
func (sm *ShutdownManager) Register(resource Resource) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.resources = append(sm.resources, resource)
	sm.logger.Debug("resource registered for shutdown", "resource", resource.Name())
}

// Shutdown closes every resource, last registered first, within the
// configured timeout. Later calls return the first call's result.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.once.Do(func() {
		sm.err = sm.shutdown(ctx)
	})
	return sm.err
}

func (sm *ShutdownManager) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sm.config.Timeout)
	defer cancel()

	sm.mu.Lock()
	resources := append([]Resource(nil), sm.resources...)
	sm.mu.Unlock()

	sm.logger.Info("initiating graceful shutdown",
		"timeout", sm.config.Timeout.String(),
		"resources", len(resources),
	)

	// sequential: the server must drain before the store it talks to closes
	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		start := time.Now()
		if err := r.Close(ctx); err != nil {
			sm.logger.Error("failed to close resource",
				"resource", r.Name(),
				"error", err,
				"duration", time.Since(start).String(),
			)
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
			continue
		}
		sm.logger.Info("resource closed", "resource", r.Name(), "duration", time.Since(start).String())
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sm.logger.Info("shutdown complete")
	return nil
}

// HTTPServerResource wraps an HTTP server for graceful shutdown
type HTTPServerResource struct {
	server *http.Server
	name   string
}

// NewHTTPServerResource creates a new HTTP server resource
func NewHTTPServerResource(name string, server *http.Server) *HTTPServerResource {
	return &HTTPServerResource{server: server, name: name}
}

func (h *HTTPServerResource) Name() string { return h.name }

func (h *HTTPServerResource) Close(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// CustomResource wraps a custom cleanup function
type CustomResource struct {
	name      string
	closeFunc func(ctx context.Context) error
}

// NewCustomResource creates a new custom resource
func NewCustomResource(name string, closeFunc func(ctx context.Context) error) *CustomResource {
	return &CustomResource{name: name, closeFunc: closeFunc}
}

func (c *CustomResource) Name() string { return c.name }

func (c *CustomResource) Close(ctx context.Context) error {
	return c.closeFunc(ctx)
}

// CloserResource adapts anything with a context-free Close, such as the
// cache. Close runs in the background so a hung close cannot outlive ctx.
func CloserResource(name string, closeFunc func() error) *CustomResource {
	return NewCustomResource(name, func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() { done <- closeFunc() }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
