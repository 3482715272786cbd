package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/bowlhouse/internal/archive"
	"github.com/JonMunkholm/bowlhouse/internal/config"
	"github.com/JonMunkholm/bowlhouse/internal/importer"
	"github.com/JonMunkholm/bowlhouse/internal/logging"
	"github.com/JonMunkholm/bowlhouse/internal/store"
	"github.com/JonMunkholm/bowlhouse/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Overload lets a local .env win over stale shell exports.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	products := store.New(pool)
	if cfg.Database.Migrate {
		if err := products.Migrate(ctx); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	checks := []web.Option{web.WithHealthCheck("database", products.Ping)}

	var catalogBackend importer.Catalog = products
	if cfg.Cache.Enabled() {
		rdb, err := store.ConnectRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			// The cache is optional; serve straight from Postgres.
			slog.Warn("redis unavailable, product cache disabled", "error", err)
		} else {
			defer rdb.Close()
			catalogBackend = store.NewCache(products, rdb, cfg.Cache.TTL)
			checks = append(checks, web.WithHealthCheck("redis", func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}))
			slog.Info("product cache enabled", "ttl", cfg.Cache.TTL)
		}
	}

	archiveStore, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		slog.Error("failed to open import archive", "error", err)
		os.Exit(1)
	}

	service := importer.NewService(catalogBackend,
		importer.WithArchive(archiveStore),
		importer.WithLimiter(importer.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)),
		importer.WithBatchTTL(cfg.Upload.BatchTTL),
	)

	server := web.NewServer(service, cfg, checks...)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
