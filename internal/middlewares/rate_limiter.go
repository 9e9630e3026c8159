package middlewares

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"admin_dashboard/internal/cache"
	"admin_dashboard/internal/config"
	"admin_dashboard/internal/security"
)

// RateLimitConfig configures a fixed-window limiter kept in the shared cache,
// so every instance behind a load balancer counts against the same window.
type RateLimitConfig struct {
	Cache  cache.Cache
	Logger *slog.Logger

	// Limit is the number of requests allowed per window
	Limit int

	// Window is the counting period
	Window time.Duration

	// KeyPrefix namespaces the counters. Default: "ratelimit:"
	KeyPrefix string

	// KeyGenerator identifies the caller. Default: client IP
	KeyGenerator func(r *http.Request) string

	// Skipper returns true for requests that are not counted
	Skipper func(r *http.Request) bool

	// OnLimitReached is called when rate limit is exceeded
	OnLimitReached func(r *http.Request, key string)

	Message string
}

// DefaultRateLimitConfig returns a default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Limit:        10,
		Window:       time.Minute,
		KeyPrefix:    "ratelimit:",
		KeyGenerator: security.ClientIP,
		Message:      "Too many attempts, please try again later",
	}
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	config *RateLimitConfig
	logger *slog.Logger
}

// NewRateLimiter fills unset fields from DefaultRateLimitConfig.
func NewRateLimiter(cfg *RateLimitConfig) *RateLimiter {
	d := DefaultRateLimitConfig()
	if cfg == nil {
		cfg = d
	}
	if cfg.Limit <= 0 {
		cfg.Limit = d.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = d.KeyPrefix
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = d.KeyGenerator
	}
	if cfg.Message == "" {
		cfg.Message = d.Message
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{config: cfg, logger: logger}
}

// Allow counts one hit for key and reports whether it is within the limit
// along with the hits left. Cache failures let the request through.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	full := l.config.KeyPrefix + key
	count, err := cache.CountInWindow(ctx, l.config.Cache, full, l.config.Window)
	if err != nil {
		l.logger.Error("rate limiter store error", "key", key, "error", err)
		if count == 0 {
			return true, l.config.Limit
		}
	}
	return count <= int64(l.config.Limit), max(l.config.Limit-int(count), 0)
}

// Reset clears the counter of the caller behind r, e.g. after a successful
// login.
func (l *RateLimiter) Reset(r *http.Request) {
	key := l.config.KeyPrefix + l.config.KeyGenerator(r)
	if err := l.config.Cache.Delete(r.Context(), key); err != nil && !cache.IsNotFound(err) {
		l.logger.Debug("rate limiter reset failed", "error", err)
	}
}

// Middleware rejects callers over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.config.Skipper != nil && l.config.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := l.config.KeyGenerator(r)
		allowed, remaining := l.Allow(r.Context(), key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retryAfter := int(l.config.Window.Seconds())
			l.logger.Warn("rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"key", key,
				"retry_after_seconds", retryAfter,
			)
			if l.config.OnLimitReached != nil {
				l.config.OnLimitReached(r, key)
			}

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			if IsAPIRequest(r) {
				config.RespondJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":               "rate_limit_exceeded",
					"message":             l.config.Message,
					"retry_after_seconds": retryAfter,
				})
				return
			}
			http.Error(w, l.config.Message, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
