package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) (HealthStatus, string, error)

// Pinger is anything with a connectivity probe, such as the store or cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthConfig holds configuration for health check endpoints
type HealthConfig struct {
	Logger *slog.Logger

	// Checks run on every readiness probe, concurrently
	Checks map[string]HealthCheck

	// CheckTimeout bounds the whole probe
	CheckTimeout time.Duration

	IncludeSystemInfo bool

	Version string
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	System    *SystemInfo            `json:"system,omitempty"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// SystemInfo contains system-level information
type SystemInfo struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_mb"`
	NumCPU      int    `json:"num_cpu"`
	NumGC       uint32 `json:"num_gc"`
}

var startTime = time.Now()

// DefaultHealthConfig returns a default health configuration
func DefaultHealthConfig() *HealthConfig {
	return &HealthConfig{
		Checks:       make(map[string]HealthCheck),
		CheckTimeout: 5 * time.Second,
	}
}

// Register adds a named check.
func (c *HealthConfig) Register(name string, check HealthCheck) {
	if c.Checks == nil {
		c.Checks = make(map[string]HealthCheck)
	}
	c.Checks[name] = check
}

// PingCheck adapts a Pinger. A failing optional dependency only degrades the
// service, a failing required one makes it unhealthy.
func PingCheck(name string, p Pinger, required bool) HealthCheck {
	return func(ctx context.Context) (HealthStatus, string, error) {
		if err := p.Ping(ctx); err != nil {
			if required {
				return StatusUnhealthy, name + " unreachable", err
			}
			return StatusDegraded, name + " unreachable, running on fallback", err
		}
		return StatusHealthy, name + " is healthy", nil
	}
}

// ReadinessHandler serves GET /health/ready. It answers 503 when any check is
// unhealthy so load balancers stop routing to the instance.
func ReadinessHandler(config *HealthConfig) http.HandlerFunc {
	if config == nil {
		config = DefaultHealthConfig()
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.CheckTimeout)
		defer cancel()

		response := &HealthResponse{
			Status:    StatusHealthy,
			Timestamp: time.Now().Format(time.RFC3339),
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Version:   config.Version,
			Checks:    RunChecks(ctx, config.Checks),
		}
		if config.IncludeSystemInfo {
			response.System = getSystemInfo()
		}
		for _, res := range response.Checks {
			response.Status = worse(response.Status, res.Status)
		}

		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
			logger.Warn("readiness check failed", "checks", response.Checks)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}
}

// LivenessHandler serves GET /health/live. It only proves the process
// answers HTTP.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"alive":     true,
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(startTime).Round(time.Second).String(),
		})
	}
}

// RunChecks executes checks concurrently and collects their results.
func RunChecks(ctx context.Context, checks map[string]HealthCheck) map[string]CheckResult {
	results := make(map[string]CheckResult, len(checks))
	var mu sync.Mutex
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			res := runHealthCheck(ctx, check)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

func runHealthCheck(ctx context.Context, check HealthCheck) CheckResult {
	start := time.Now()

	resultChan := make(chan CheckResult, 1)
	go func() {
		status, message, err := check(ctx)
		result := CheckResult{Status: status, Message: message}
		if err != nil {
			result.Error = err.Error()
			if result.Status == StatusHealthy {
				result.Status = StatusUnhealthy
			}
		}
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		result.Latency = time.Since(start).String()
		return result
	case <-ctx.Done():
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "Health check timed out",
			Error:   ctx.Err().Error(),
			Latency: time.Since(start).String(),
		}
	}
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func getSystemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &SystemInfo{
		Goroutines:  runtime.NumGoroutine(),
		MemoryAlloc: m.Alloc / 1024 / 1024,
		NumCPU:      runtime.NumCPU(),
		NumGC:       m.NumGC,
	}
}
