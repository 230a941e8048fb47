// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Atelier media server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from .env and environment variables.
//  3. Connect to PostgreSQL and run migrations, or fall back to memory.
//  4. Connect to Redis for record locks, or fall back to local locks.
//  5. Open the artifact store (local disk or S3).
//  6. Wire the transcoder, derivative cache and record coordinator.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taibuivan/atelier/internal/api"
	"github.com/taibuivan/atelier/internal/core/showcase"
	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/media/derivative"
	"github.com/taibuivan/atelier/internal/media/storage"
	"github.com/taibuivan/atelier/internal/media/transcode"
	"github.com/taibuivan/atelier/internal/platform/config"
	"github.com/taibuivan/atelier/internal/platform/constants"
	"github.com/taibuivan/atelier/internal/platform/keylock"
	"github.com/taibuivan/atelier/internal/platform/migration"
	pgstore "github.com/taibuivan/atelier/internal/platform/postgres"
	redisstore "github.com/taibuivan/atelier/internal/platform/redis"
	"github.com/taibuivan/atelier/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName), slog.String("version", constants.AppVersion))
	slog.SetDefault(log)

	log.Info("[Atelier] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	// A missing .env is normal in containers.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("dotenv_load_failed", slog.Any("error", err))
	}

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName), slog.String("version", constants.AppVersion))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
	)

	// Background work (rate limiter cleanup, scratch sweeper) stops with this.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	var health api.HealthDependencies

	// ── 3. Records ────────────────────────────────────────────────────────
	var records showcase.RecordStore = showcase.NewMemoryStore()

	if cfg.DatabaseURL != "" {
		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		records = showcase.NewPostgresStore(pool)
		health.CheckDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}
	} else {
		log.Warn("record_store_in_memory", slog.String("reason", "DATABASE_URL is empty"))
	}

	// ── 4. Record Locks ───────────────────────────────────────────────────
	var locks keylock.Locker = keylock.NewLocal()

	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		locks = keylock.NewRedis(rdb, constants.RedisPrefixRecordLock, constants.RecordLockTTL, log)
		health.CheckCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	}

	// ── 5. Artifact Storage ───────────────────────────────────────────────
	artifacts, err := openArtifactStore(cfg, log)
	must(log, err, "open artifact storage")

	health.CheckStorage = func() error {
		probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := artifacts.Exists(probeCtx, "healthcheck")
		return err
	}

	// ── 6. Media Pipeline ─────────────────────────────────────────────────
	engine := transcode.NewEngine(cfg.TranscodeConcurrency)

	cache, err := derivative.New(showcase.NewResolver(records), artifacts, engine, log, derivative.Options{
		Directory: cfg.ScratchDir,
		Capacity:  cfg.CacheCapacity,
	})
	must(log, err, "create derivative cache")

	// Scratch files from a previous run are not indexed.
	must(log, cache.Reset(), "reset scratch directory")

	_, err = derivative.ScheduleSweep(rootCtx, cache, cfg.SweepSchedule, constants.ScratchGracePeriod, log)
	must(log, err, "schedule scratch sweep")

	coordinator := showcase.NewCoordinator(records, artifacts, engine, cache, locks, log)

	// ── 7. Auth Service ───────────────────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(health, log)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Showcase:  showcase.NewHandler(coordinator),
		Images:    derivative.NewHandler(cache),
		Uploads:   storage.NewHandler(artifacts),
	}

	server := api.NewServer(rootCtx, cfg, log, jwtSvc, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// openArtifactStore selects the storage driver named by the configuration.
func openArtifactStore(cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.StorageDriver == config.StorageS3 {
		return storage.NewS3(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Timeout:         cfg.S3Timeout,
		}, log)
	}

	directories := make([]string, 0, len(media.Categories))
	for _, category := range media.Categories {
		directories = append(directories, category.Dir())
	}
	return storage.NewLocal(cfg.UploadDir, directories...)
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
