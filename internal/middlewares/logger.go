package middlewares

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"admin_dashboard/internal/observability"
	"admin_dashboard/internal/security"
)

// responseWriter captures the status code and size for logging
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggerConfig holds configuration options for the HTTP request logger middleware
type LoggerConfig struct {
	Logger             *slog.Logger
	SkipPaths          []string // exact paths, e.g. health checks
	SkipPrefixes       []string // e.g. /static/
	IncludeUserAgent   bool
	IncludeQueryParams bool
}

// DefaultLoggerConfig creates a production-ready logger configuration with sensible defaults
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Logger:             slog.Default(),
		SkipPaths:          []string{"/health/live", "/health/ready", "/metrics", "/favicon.ico"},
		SkipPrefixes:       []string{"/static/"},
		IncludeUserAgent:   true,
		IncludeQueryParams: true,
	}
}

// Logger logs one line per request. Request bodies are never logged since
// they carry passwords and CSRF tokens.
func Logger(config *LoggerConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipPath(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// the session is attached further down the chain, so read it
			// back through a holder placed in the context up front
			holder := &sessionHolder{}
			next.ServeHTTP(wrapped, r.WithContext(withSessionHolder(r.Context(), holder)))

			fields := buildLogFields(r, wrapped, time.Since(start), config)
			if holder.session != nil {
				fields = append(fields, "user_id", holder.session.UserID)
			}
			logRequest(config.Logger, wrapped.statusCode, fields)
		})
	}
}

func shouldSkipPath(path string, config *LoggerConfig) bool {
	if slices.Contains(config.SkipPaths, path) {
		return true
	}
	return slices.ContainsFunc(config.SkipPrefixes, func(p string) bool { return strings.HasPrefix(path, p) })
}

func buildLogFields(r *http.Request, rw *responseWriter, duration time.Duration, config *LoggerConfig) []any {
	fields := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", rw.statusCode,
		"latency_ms", duration.Milliseconds(),
		"client_ip", security.ClientIP(r),
		"response_size", rw.bytesWritten,
	}
	if id := observability.GetRequestID(r.Context()); id != "" {
		fields = append(fields, "request_id", id)
	}
	if config.IncludeQueryParams && r.URL.RawQuery != "" {
		fields = append(fields, "query", r.URL.RawQuery)
	}
	if config.IncludeUserAgent {
		if ua := r.UserAgent(); ua != "" {
			fields = append(fields, "user_agent", ua)
		}
	}
	return fields
}

// logRequest logs the request with appropriate level based on status code
func logRequest(logger *slog.Logger, statusCode int, fields []any) {
	switch {
	case statusCode >= 500:
		logger.Error("server error", fields...)
	case statusCode >= 400:
		logger.Warn("client error", fields...)
	default:
		logger.Info("request handled", fields...)
	}
}
