package middlewares

import (
	"net/http"
	"strconv"
)

// SecurityConfig holds configuration for security headers middleware
type SecurityConfig struct {
	ContentTypeNosniff string
	XFrameOptions      string

	// HSTSMaxAge is sent only on TLS connections
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	ContentSecurityPolicy     string
	ReferrerPolicy            string
	PermissionsPolicy         string
	CrossOriginOpenerPolicy   string
	CrossOriginResourcePolicy string

	Skipper func(r *http.Request) bool
}

// DefaultSecurityConfig allows the generated avatar images and nothing else
// from outside the origin.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		ContentSecurityPolicy:     "default-src 'self'; img-src 'self' data: https://api.dicebear.com; style-src 'self'; script-src 'self'; object-src 'none'; frame-ancestors 'none'; form-action 'self'; base-uri 'self'",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		PermissionsPolicy:         "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
	}
}

// Security returns a middleware that sets security headers
func Security(config *SecurityConfig) func(next http.Handler) http.Handler {
	if config == nil {
		config = DefaultSecurityConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Skipper != nil && config.Skipper(r) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			setIf(h, "X-Content-Type-Options", config.ContentTypeNosniff)
			setIf(h, "X-Frame-Options", config.XFrameOptions)
			setIf(h, "Content-Security-Policy", config.ContentSecurityPolicy)
			setIf(h, "Referrer-Policy", config.ReferrerPolicy)
			setIf(h, "Permissions-Policy", config.PermissionsPolicy)
			setIf(h, "Cross-Origin-Opener-Policy", config.CrossOriginOpenerPolicy)
			setIf(h, "Cross-Origin-Resource-Policy", config.CrossOriginResourcePolicy)

			if r.TLS != nil && config.HSTSMaxAge > 0 {
				value := "max-age=" + strconv.Itoa(config.HSTSMaxAge)
				if config.HSTSIncludeSubdomains {
					value += "; includeSubDomains"
				}
				h.Set("Strict-Transport-Security", value)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
