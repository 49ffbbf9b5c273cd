package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rowlift/rowlift/internal/catalog"
	"github.com/rowlift/rowlift/internal/config"
	"github.com/rowlift/rowlift/internal/core"
	"github.com/rowlift/rowlift/internal/logging"
	"github.com/rowlift/rowlift/internal/target"
	"github.com/rowlift/rowlift/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend_url", cfg.Target.BackendURL,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// Build upload destinations
	httpOpts := []target.HTTPOption{}
	if cfg.Target.BackendToken != "" {
		httpOpts = append(httpOpts, target.WithHeader("Authorization", "Bearer "+cfg.Target.BackendToken))
	}
	deps := catalog.Deps{
		HTTP: target.NewHTTPTarget(cfg.Target.BackendURL, httpOpts...),
	}

	// The Postgres destination is optional; datasets fall back to HTTP
	// delivery when no database is configured.
	if cfg.Target.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Target.DatabaseURL)
		if err != nil {
			slog.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		slog.Info("postgres destination enabled")
		deps.Postgres = target.NewPostgresTarget(pool)
	}

	catalog.Register(deps)
	slog.Info("datasets registered",
		"count", core.DatasetCount(),
		"groups", len(core.Groups()),
	)

	// Apply tunables that live on the core package
	core.UploadTimeout = cfg.Upload.Timeout

	limiter := core.NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	service := core.NewService(limiter, slog.Default())

	// Expire finished sessions in the background
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.CleanupLoop(jobCtx)

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight upload runs settle before closing listeners
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for upload runs to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("upload runs did not complete in time", "error", err)
			} else {
				slog.Info("all upload runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
