package middlewares

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/observability"
	"admin_dashboard/internal/security"
)

// RecoveryConfig holds configuration for recovery middleware
type RecoveryConfig struct {
	Logger *slog.Logger

	// DisableStackTrace leaves the stack out of the log entry
	DisableStackTrace bool

	// RecoveryHandler writes the response after a panic
	RecoveryHandler func(w http.ResponseWriter, r *http.Request, err any, stack []byte)

	// Development exposes the panic value in responses
	Development bool
}

// DefaultRecoveryConfig returns a default recovery configuration
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{}
}

// defaultRecoveryHandler answers JSON for API callers and a plain error page
// for browsers.
func defaultRecoveryHandler(w http.ResponseWriter, r *http.Request, _ any, _ []byte) {
	if IsAPIRequest(r) {
		config.RespondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":      "Internal Server Error",
			"message":    "An unexpected error occurred. Please try again later.",
			"timestamp":  time.Now().Unix(),
			"request_id": observability.GetRequestID(r.Context()),
		})
		return
	}
	http.Error(w, "Something went wrong. Please try again later.", http.StatusInternalServerError)
}

func developmentRecoveryHandler(w http.ResponseWriter, r *http.Request, err any, stack []byte) {
	config.RespondJSON(w, http.StatusInternalServerError, map[string]any{
		"error":      "Internal Server Error",
		"message":    fmt.Sprintf("Panic: %v", err),
		"stack":      string(stack),
		"method":     r.Method,
		"path":       r.URL.Path,
		"timestamp":  time.Now().Format(time.RFC3339),
		"request_id": observability.GetRequestID(r.Context()),
	})
}

// Recovery returns a recovery middleware that recovers from panics
func Recovery(cfg *RecoveryConfig) func(next http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultRecoveryConfig()
	}
	if cfg.RecoveryHandler == nil {
		if cfg.Development {
			cfg.RecoveryHandler = developmentRecoveryHandler
		} else {
			cfg.RecoveryHandler = defaultRecoveryHandler
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				stack := debug.Stack()
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"client_ip", security.ClientIP(r),
					"error", fmt.Sprintf("%v", err),
				}
				if id := observability.GetRequestID(r.Context()); id != "" {
					attrs = append(attrs, "request_id", id)
				}
				if !cfg.DisableStackTrace {
					attrs = append(attrs, "stack", string(stack))
				}
				logger.Error("panic recovered", attrs...)

				cfg.RecoveryHandler(w, r, err, stack)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
