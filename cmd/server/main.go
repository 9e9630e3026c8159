package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"admin_dashboard/internal/app"
	"admin_dashboard/internal/config"
	"admin_dashboard/internal/server"
)

func main() {
	// Setup logger
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	dashboard, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to assemble dashboard: %v", err)
	}

	logger.Info("Starting server", "port", cfg.Server.Port, "environment", cfg.App.Environment)

	// Run blocks until SIGINT/SIGTERM, then drains the server and closes
	// the store, cache and navigator
	if err := server.Run(ctx, dashboard.Handler, server.FromAppConfig(cfg, logger), dashboard.Resources...); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
