package observability

import (
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig holds configuration for Prometheus metrics
type MetricsConfig struct {
	Logger *slog.Logger

	// Namespace prefixes every metric name
	Namespace string

	// Buckets for response time histogram
	Buckets []float64

	// Registry receives the collectors. A fresh registry is created when nil
	// so tests and multiple servers never collide on the global one.
	Registry *prometheus.Registry

	// SkipPaths are not metered (exact match)
	SkipPaths []string

	// PathLabel maps a request to a low-cardinality path label.
	// Default: NormalizePath
	PathLabel func(r *http.Request) string
}

// DefaultMetricsConfig returns a default metrics configuration
func DefaultMetricsConfig(namespace string) *MetricsConfig {
	return &MetricsConfig{
		Namespace: namespace,
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		SkipPaths: []string{"/metrics", "/health/live", "/health/ready"},
	}
}

// Metrics holds the HTTP and navigation collectors.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry
	logger   *slog.Logger

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	pagesSelected  *prometheus.CounterVec
	pagesNotFound  prometheus.Counter
	contentLoads   *prometheus.CounterVec
	contentLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(config *MetricsConfig) *Metrics {
	if config == nil {
		config = DefaultMetricsConfig("dashboard")
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}
	if config.PathLabel == nil {
		config.PathLabel = func(r *http.Request) string { return NormalizePath(r.URL.Path) }
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)
	ns := config.Namespace

	logger.Info("initializing prometheus metrics", "namespace", ns)

	return &Metrics{
		config:   config,
		registry: reg,
		logger:   logger,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   config.Buckets,
		}, []string{"method", "path", "status"}),
		responseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path"}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_active",
			Help:      "Number of in-flight HTTP requests",
		}),
		pagesSelected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "navigation",
			Name:      "pages_selected_total",
			Help:      "Pages opened from the menu, by route key",
		}, []string{"key"}),
		pagesNotFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "navigation",
			Name:      "pages_not_found_total",
			Help:      "Selections whose key resolved to no route",
		}),
		contentLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "navigation",
			Name:      "content_loads_total",
			Help:      "Deferred page content loads, by outcome",
		}, []string{"key", "outcome"}),
		contentLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "navigation",
			Name:      "content_load_duration_seconds",
			Help:      "Time spent loading deferred page content",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"key"}),
	}
}

// Middleware records request count, latency and response size.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(m.config.SkipPaths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		start := time.Now()
		rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := m.config.PathLabel(r)
		status := strconv.Itoa(rw.statusCode)
		m.requestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.responseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
	})
}

// PageSelected counts a menu selection.
func (m *Metrics) PageSelected(key string) {
	m.pagesSelected.WithLabelValues(key).Inc()
}

// PageNotFound counts a selection of an unknown key. The key itself is left
// out of the labels since it is caller supplied.
func (m *Metrics) PageNotFound(string) {
	m.pagesNotFound.Inc()
}

// ContentLoaded records one deferred content load.
func (m *Metrics) ContentLoaded(key string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.logger.Debug("page content failed to load", "key", key, "error", err)
	}
	m.contentLoads.WithLabelValues(key, outcome).Inc()
	m.contentLatency.WithLabelValues(key).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// NormalizePath replaces numeric and UUID path segments with ":id" so the
// path label stays bounded. Static assets collapse to "/static".
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "/static/") {
		return "/static"
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if idSegment.MatchString(s) {
			segs[i] = ":id"
		}
	}
	return strings.Join(segs, "/")
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
