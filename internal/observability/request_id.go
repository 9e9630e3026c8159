package observability

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the context key for request ID
const RequestIDKey contextKey = "request_id"

// RequestIDConfig holds configuration for request ID middleware
type RequestIDConfig struct {
	// Header name for request ID. Default: X-Request-ID
	Header string

	// Generator creates request IDs. Default: random UUID
	Generator func() string
}

// DefaultRequestIDConfig returns a default request ID configuration
func DefaultRequestIDConfig() *RequestIDConfig {
	return &RequestIDConfig{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}
}

// inbound ids are echoed into logs and headers, so only accept tame ones
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID tags each request with an id, reusing a well-formed one supplied
// by a proxy, and echoes it in the response header.
func RequestID(config *RequestIDConfig) func(next http.Handler) http.Handler {
	if config == nil {
		config = DefaultRequestIDConfig()
	}
	if config.Header == "" {
		config.Header = "X-Request-ID"
	}
	if config.Generator == nil {
		config.Generator = uuid.NewString
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(config.Header)
			if !validRequestID.MatchString(requestID) {
				requestID = config.Generator()
			}
			w.Header().Set(config.Header, requestID)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// WithRequestID returns a context with the given request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
