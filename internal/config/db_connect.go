package config

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// maxBackoff caps the delay between connection attempts.
const maxBackoff = 30 * time.Second

// NewPool opens a pgx pool for cfg, retrying with exponential backoff until
// a ping succeeds or the attempts run out.
func NewPool(ctx context.Context, cfg DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	attempts := max(cfg.MaxRetries, 1)

	logger.Info("initializing database connection pool",
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
		"attempts", attempts,
	)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := connectOnce(ctx, poolCfg, cfg.ConnectTimeout)
		if err == nil {
			logger.Info("database connection pool established",
				"attempt", attempt,
				"total_conns", pool.Stat().TotalConns(),
			)
			return pool, nil
		}

		lastErr = err
		logger.Warn("database connection attempt failed", "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}
		delay := backoff(cfg.RetryDelay, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection cancelled: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, lastErr)
}

func connectOnce(ctx context.Context, poolCfg *pgxpool.Config, timeout time.Duration) (*pgxpool.Pool, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// backoff returns base * 2^(attempt-1), capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > maxBackoff || delay < 0 {
		return maxBackoff
	}
	return delay
}

// PingDatabase checks the pool with a short timeout.
func PingDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
