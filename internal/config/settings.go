package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSessionSecret = "dev-only-session-secret-change-me"

// Config represents the complete application configuration
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	TLS        TLSConfig
	Auth       AuthConfig
	Rendering  RenderingConfig
	Redis      RedisConfig
	Navigation NavigationConfig
	Pagination PaginationConfig
	RateLimit  RateLimitConfig
	Metrics    MetricsConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string
	Version     string
	Environment string // development, staging, production
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     string
	Protocol string // http or https
	Domain   string
}

// DatabaseConfig holds database connection settings. An empty URL means the
// dashboard runs on its in-memory mock data.
type DatabaseConfig struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	HealthCheckPeriod time.Duration
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	ConnectTimeout    time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// TLSConfig holds TLS/HTTPS certificate settings
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// AuthConfig holds session and login settings
type AuthConfig struct {
	SessionSecret   string
	SessionDuration time.Duration
	CookieName      string
	// DemoPassword is the password given to the seeded mock accounts.
	DemoPassword string
}

// RenderingConfig holds template and static file settings
type RenderingConfig struct {
	TemplatesDir string
	StaticDir    string
	DefaultTheme string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// ProbeInterval is how often a cache stuck on memory retries Redis.
	ProbeInterval time.Duration
}

// NavigationConfig controls how the route declaration is loaded and checked.
type NavigationConfig struct {
	// RoutesFile overrides the embedded route declaration.
	RoutesFile string
	// Strict refuses to start when the route table and lookup tables disagree.
	Strict bool
	// LoadWait is how long a page render waits for a deferred component.
	LoadWait time.Duration
	// Preload loads every page component in the background at startup.
	Preload bool
}

// PaginationConfig holds pagination settings
type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// RateLimitConfig limits login attempts per client.
type RateLimitConfig struct {
	LoginAttempts int
	Window        time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

// LoadConfig loads configuration from the environment, reading .env first
// when present.
func LoadConfig(logger *slog.Logger) (*Config, error) {
	// Load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("loading application configuration")

	config := &Config{}

	loadAppConfig(&config.App, logger)
	loadServerConfig(&config.Server, logger)
	loadDatabaseConfig(&config.Database, logger)
	loadTLSConfig(&config.TLS, logger)

	if err := loadAuthConfig(&config.Auth, config.IsProduction(), logger); err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}

	loadRenderingConfig(&config.Rendering, logger)
	loadRedisConfig(&config.Redis, logger)
	loadNavigationConfig(&config.Navigation, logger)
	loadPaginationConfig(&config.Pagination, logger)
	loadRateLimitConfig(&config.RateLimit, logger)
	config.Metrics.Enabled = getEnvAsBool("METRICS_ENABLED", true)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded successfully",
		"environment", config.App.Environment,
		"version", config.App.Version,
		"port", config.Server.Port,
		"database", config.Database.URL != "",
		"redis", config.Redis.Addr != "",
	)

	return config, nil
}

func loadAppConfig(cfg *AppConfig, logger *slog.Logger) {
	cfg.Name = getEnvOrDefault("APP_NAME", "Admin Dashboard")

	cfg.Version = os.Getenv("VERSION")
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
		logger.Warn("VERSION not set, using default", "default", cfg.Version)
	}

	cfg.Environment = os.Getenv("ENV")
	if cfg.Environment == "" {
		cfg.Environment = "development"
		logger.Warn("ENV not set, using default", "default", cfg.Environment)
	}
}

func loadServerConfig(cfg *ServerConfig, logger *slog.Logger) {
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		logger.Warn("PORT not set, using default", "default", cfg.Port)
	}
	cfg.Protocol = getEnvOrDefault("PROTOCOL", "http")
	cfg.Domain = getEnvOrDefault("DOMAIN", "localhost")
}

func loadDatabaseConfig(cfg *DatabaseConfig, logger *slog.Logger) {
	cfg.URL = os.Getenv("DB_URL")

	cfg.MaxConns = getEnvAsInt32("DB_MAX_CONNS", 10)
	cfg.MinConns = getEnvAsInt32("DB_MIN_CONNS", 2)
	cfg.HealthCheckPeriod = time.Duration(getEnvAsInt32("DB_HEALTH_CHECK_PERIOD_SECONDS", 60)) * time.Second
	cfg.MaxConnLifetime = time.Duration(getEnvAsInt32("DB_MAX_CONN_LIFETIME_MINUTES", 0)) * time.Minute
	cfg.MaxConnIdleTime = time.Duration(getEnvAsInt32("DB_MAX_CONN_IDLE_TIME_MINUTES", 0)) * time.Minute
	cfg.ConnectTimeout = 10 * time.Second
	cfg.MaxRetries = getEnvAsInt("DB_MAX_RETRIES", 3)
	cfg.RetryDelay = 1 * time.Second

	if cfg.URL == "" {
		logger.Info("DB_URL not set, using in-memory mock data")
		return
	}
	logger.Debug("database config loaded",
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
}

func loadTLSConfig(cfg *TLSConfig, logger *slog.Logger) {
	cfg.CertFile = os.Getenv("TLS_CERT_FILE")
	cfg.KeyFile = os.Getenv("TLS_KEY_FILE")
	cfg.Enabled = cfg.CertFile != "" && cfg.KeyFile != ""

	if cfg.Enabled {
		logger.Info("TLS enabled", "cert_file", cfg.CertFile, "key_file", cfg.KeyFile)
	}
}

func loadAuthConfig(cfg *AuthConfig, production bool, logger *slog.Logger) error {
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		if production {
			return fmt.Errorf("SESSION_SECRET environment variable is required")
		}
		cfg.SessionSecret = devSessionSecret
		logger.Warn("SESSION_SECRET not set, using an insecure development secret")
	}

	cfg.SessionDuration = time.Duration(getEnvAsInt("SESSION_DURATION_MINUTES", 480)) * time.Minute
	cfg.CookieName = getEnvOrDefault("SESSION_COOKIE_NAME", "dashboard_session")

	cfg.DemoPassword = os.Getenv("DEMO_PASSWORD")
	if cfg.DemoPassword == "" {
		cfg.DemoPassword = "password"
		logger.Warn("DEMO_PASSWORD not set, mock accounts use the default password")
	}

	return nil
}

func loadRenderingConfig(cfg *RenderingConfig, logger *slog.Logger) {
	cfg.TemplatesDir = os.Getenv("TEMPLATES_DIR")
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = "web/templates"
		logger.Warn("TEMPLATES_DIR not set, using default", "default", cfg.TemplatesDir)
	}

	cfg.StaticDir = os.Getenv("STATIC_DIR")
	if cfg.StaticDir == "" {
		cfg.StaticDir = "web/static"
		logger.Warn("STATIC_DIR not set, using default", "default", cfg.StaticDir)
	}

	cfg.DefaultTheme = getEnvOrDefault("DEFAULT_THEME", "light")
}

func loadRedisConfig(cfg *RedisConfig, logger *slog.Logger) {
	cfg.Addr = os.Getenv("REDIS_ADDR")
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	cfg.DB = getEnvAsInt("REDIS_DB", 0)
	cfg.ProbeInterval = time.Duration(getEnvAsInt("REDIS_PROBE_INTERVAL_SECONDS", 30)) * time.Second

	if cfg.Addr != "" {
		logger.Debug("Redis config loaded", "addr", cfg.Addr, "db", cfg.DB)
	}
}

func loadNavigationConfig(cfg *NavigationConfig, logger *slog.Logger) {
	cfg.RoutesFile = os.Getenv("ROUTES_FILE")
	cfg.Strict = getEnvAsBool("NAV_STRICT", false)
	cfg.LoadWait = time.Duration(getEnvAsInt("CONTENT_LOAD_TIMEOUT_MS", 2000)) * time.Millisecond
	cfg.Preload = getEnvAsBool("NAV_PRELOAD", true)

	if cfg.RoutesFile != "" {
		logger.Info("using route declaration file", "path", cfg.RoutesFile)
	}
}

func loadPaginationConfig(cfg *PaginationConfig, logger *slog.Logger) {
	cfg.DefaultPageSize = getEnvAsInt("PAGINATION_DEFAULT_SIZE", 10)
	cfg.MaxPageSize = getEnvAsInt("PAGINATION_MAX_SIZE", 100)

	logger.Debug("pagination config loaded",
		"default_size", cfg.DefaultPageSize,
		"max_size", cfg.MaxPageSize,
	)
}

func loadRateLimitConfig(cfg *RateLimitConfig, logger *slog.Logger) {
	cfg.LoginAttempts = getEnvAsInt("LOGIN_RATE_LIMIT", 10)
	cfg.Window = time.Duration(getEnvAsInt("LOGIN_RATE_WINDOW_SECONDS", 60)) * time.Second

	logger.Debug("rate limit config loaded", "login_attempts", cfg.LoginAttempts, "window", cfg.Window.String())
}

// Helper functions

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvAsInt32(key string, defaultVal int32) int32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 32); err == nil {
			return int32(parsed)
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := strings.ToLower(os.Getenv(key)); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetServerAddress returns the full server address (protocol://domain:port)
func (c *Config) GetServerAddress() string {
	if c.Server.Protocol == "https" && c.Server.Port == "443" {
		return fmt.Sprintf("https://%s", c.Server.Domain)
	}
	if c.Server.Protocol == "http" && c.Server.Port == "80" {
		return fmt.Sprintf("http://%s", c.Server.Domain)
	}
	return fmt.Sprintf("%s://%s:%s", c.Server.Protocol, c.Server.Domain, c.Server.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.IsProduction() && c.Auth.SessionSecret == devSessionSecret {
		return fmt.Errorf("development session secret is not allowed in production")
	}
	if c.Auth.SessionDuration <= 0 {
		return fmt.Errorf("session duration must be positive")
	}
	if c.Pagination.DefaultPageSize <= 0 || c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		return fmt.Errorf("pagination default size %d must be between 1 and %d",
			c.Pagination.DefaultPageSize, c.Pagination.MaxPageSize)
	}
	if c.Navigation.LoadWait < 0 {
		return fmt.Errorf("content load timeout must not be negative")
	}
	return nil
}
