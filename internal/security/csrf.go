package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"admin_dashboard/internal/cache"
)

var (
	ErrNoSession = errors.New("no valid session found")
)

// CSRFProtection issues one token per session and checks it on every unsafe
// request. Tokens live in the shared cache so any instance can verify them.
type CSRFProtection struct {
	config *CSRFConfig
	cache  cache.Cache
	logger *slog.Logger
}

// CSRFConfig holds CSRF protection configuration
type CSRFConfig struct {
	// Cache backend for token storage. Required.
	Cache cache.Cache

	// Token length in bytes (default: 32)
	TokenLength int

	// Token lifetime, normally the session duration
	TokenLifetime time.Duration

	// Header name for CSRF token
	HeaderName string

	// Form field name for CSRF token
	FieldName string

	Logger *slog.Logger

	SafeMethods []string

	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

	KeyPrefix string

	// SessionID extracts the authenticated session id. Requests without one
	// pass through untouched because there is nothing to forge yet.
	SessionID func(r *http.Request) string

	// Skipper returns true for requests that bypass the check.
	Skipper func(r *http.Request) bool
}

// DefaultCSRFConfig returns a production-ready CSRF configuration
func DefaultCSRFConfig() *CSRFConfig {
	return &CSRFConfig{
		TokenLength:   32,
		TokenLifetime: 8 * time.Hour,
		HeaderName:    "X-CSRF-Token",
		FieldName:     "csrf_token",
		SafeMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace},
		KeyPrefix:     "csrf:",
	}
}

// NewCSRFProtection fills unset fields from DefaultCSRFConfig.
func NewCSRFProtection(config *CSRFConfig) (*CSRFProtection, error) {
	if config == nil || config.Cache == nil {
		return nil, fmt.Errorf("csrf: cache is required")
	}
	if config.SessionID == nil {
		return nil, fmt.Errorf("csrf: session id extractor is required")
	}

	defaults := DefaultCSRFConfig()
	if config.TokenLength <= 0 {
		config.TokenLength = defaults.TokenLength
	}
	if config.TokenLifetime <= 0 {
		config.TokenLifetime = defaults.TokenLifetime
	}
	if config.HeaderName == "" {
		config.HeaderName = defaults.HeaderName
	}
	if config.FieldName == "" {
		config.FieldName = defaults.FieldName
	}
	if len(config.SafeMethods) == 0 {
		config.SafeMethods = defaults.SafeMethods
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CSRFProtection{
		config: config,
		cache:  config.Cache,
		logger: logger,
	}, nil
}

// Middleware returns a middleware that protects against CSRF attacks
func (c *CSRFProtection) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.config.Skipper != nil && c.config.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		sessionID := c.config.SessionID(r)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if c.isSafeMethod(r.Method) {
			token, err := c.Token(r.Context(), sessionID)
			if err != nil {
				c.logger.Error("failed to issue CSRF token", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenKey, token)))
			return
		}

		if err := c.validateToken(r, sessionID); err != nil {
			c.logger.Warn("CSRF validation failed",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"ip", ClientIP(r),
			)
			if c.config.ErrorHandler != nil {
				c.config.ErrorHandler(w, r, err)
			} else {
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
			}
			return
		}

		// Unsafe handlers that render a page still need the token.
		token := c.getRequestToken(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenKey, token)))
	})
}

// Token returns the session's token, issuing one when none is stored.
func (c *CSRFProtection) Token(ctx context.Context, sessionID string) (string, error) {
	if data, err := c.cache.Get(ctx, c.tokenCacheKey(sessionID)); err == nil {
		var stored csrfTokenData
		if json.Unmarshal(data, &stored) == nil && stored.Token != "" {
			return stored.Token, nil
		}
	}

	token, err := GenerateToken(c.config.TokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	data, err := json.Marshal(csrfTokenData{Token: token, CreatedAt: time.Now()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token data: %w", err)
	}
	if err := c.cache.Set(ctx, c.tokenCacheKey(sessionID), data, c.config.TokenLifetime); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// Revoke drops the session's token, e.g. on logout.
func (c *CSRFProtection) Revoke(ctx context.Context, sessionID string) error {
	return c.cache.Delete(ctx, c.tokenCacheKey(sessionID))
}

// GetCSRFToken retrieves the CSRF token from the request context
func GetCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey).(string)
	return token
}

func (c *CSRFProtection) validateToken(r *http.Request, sessionID string) error {
	requestToken := c.getRequestToken(r)
	if requestToken == "" {
		return ErrInvalidToken
	}

	data, err := c.cache.Get(r.Context(), c.tokenCacheKey(sessionID))
	if err != nil {
		return ErrInvalidToken
	}

	var stored csrfTokenData
	if err := json.Unmarshal(data, &stored); err != nil {
		return ErrInvalidToken
	}
	if !SecureCompare(requestToken, stored.Token) {
		return ErrInvalidToken
	}
	return nil
}

func (c *CSRFProtection) getRequestToken(r *http.Request) string {
	// header for fetch/JSON calls, form field for HTML forms
	if token := r.Header.Get(c.config.HeaderName); token != "" {
		return token
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	if err := r.ParseForm(); err == nil {
		return r.PostFormValue(c.config.FieldName)
	}
	return ""
}

func (c *CSRFProtection) isSafeMethod(method string) bool {
	return slices.Contains(c.config.SafeMethods, method)
}

func (c *CSRFProtection) tokenCacheKey(sessionID string) string {
	return c.config.KeyPrefix + "token:" + sessionID
}

// ClientIP extracts the caller address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type csrfTokenData struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

type contextKey string

const csrfTokenKey contextKey = "csrf_token"

// CSRFTokenHTML returns a hidden form field carrying token.
func CSRFTokenHTML(token string) template.HTML {
	return template.HTML(`<input type="hidden" name="csrf_token" value="` + template.HTMLEscapeString(token) + `">`)
}

// CSRFTokenMeta returns a meta tag carrying token for scripts.
func CSRFTokenMeta(token string) template.HTML {
	return template.HTML(`<meta name="csrf-token" content="` + template.HTMLEscapeString(token) + `">`)
}
