package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/logger"
	"github.com/Rrens/support-chat/internal/mockapi"
	"github.com/Rrens/support-chat/internal/repository/filesystem"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/Rrens/support-chat/internal/repository/postgres"
	"github.com/Rrens/support-chat/internal/repository/redis"
	"github.com/Rrens/support-chat/internal/repository/sqlite"
	"github.com/Rrens/support-chat/internal/service"
)

// kvStore is what every storage driver provides
type kvStore interface {
	domain.KeyValueStore
	domain.Pinger
}

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logFile, err := logger.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting support chat widget server")

	ctx := context.Background()

	// Redis backs the rate limiter and, optionally, session storage
	var redisClient *redis.Client
	if cfg.Storage.Driver == "redis" || cfg.Security.RateLimit.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		switch {
		case err != nil && cfg.Storage.Driver == "redis":
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		case err != nil:
			log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
			redisClient = nil
		default:
			defer redisClient.Close()
		}
	}

	// Initialize session storage
	kv, closeStorage, err := openStorage(ctx, cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open session storage")
	}
	defer closeStorage.Close()

	// Initialize blob storage for uploads
	blobs, err := filesystem.NewBlobStore(cfg.Uploads.Dir, cfg.Uploads.PublicURL, cfg.Uploads.MaxBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare upload directory")
	}

	backendOpts := mockapi.Options{
		SendLatencyMin: cfg.Backend.SendLatencyMin,
		SendLatencyMax: cfg.Backend.SendLatencyMax,
		FailureRate:    cfg.Backend.FailureRate,
		UploadSteps:    cfg.Backend.UploadSteps,
		UploadInterval: cfg.Backend.UploadInterval,
		RestoreDelay:   cfg.Backend.RestoreDelay,
		AgentDelay:     cfg.Backend.AgentDelay,
	}
	widgets := service.NewWidgetService(kv, func(sessions domain.SessionStorage) domain.Backend {
		return mockapi.NewBackend(backendOpts, sessions, mockapi.WithBlobStore(blobs))
	})

	deps := api.Deps{
		Widgets:   widgets,
		Storage:   kv,
		UploadDir: blobs.Dir(),
	}
	if redisClient != nil && cfg.Security.RateLimit.Enabled {
		deps.Limiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	// Initialize router
	router := api.NewRouter(cfg, deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Int("clients", widgets.Clients()).Msg("Server stopped")
}

// openStorage connects the configured key-value driver
func openStorage(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (kvStore, io.Closer, error) {
	switch cfg.Storage.Driver {
	case "redis":
		return redis.NewKVStore(redisClient, cfg.Storage.TTL), nopCloser, nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		kv, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv, nil

	case "postgres":
		if err := postgres.RunMigrations(cfg.Database.DSN()); err != nil {
			return nil, nil, err
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewKVStore(db.Pool), closerFunc(func() error {
			db.Close()
			return nil
		}), nil

	default:
		return memory.NewKVStore(), nopCloser, nil
	}
}

type closerFunc func() error

var nopCloser = closerFunc(func() error { return nil })

func (f closerFunc) Close() error { return f() }
