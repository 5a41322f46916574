package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/logger"
	"github.com/Rrens/support-chat/internal/repository/postgres"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if _, err := logger.Setup(config.LoggingConfig{Level: cfg.Logging.Level, Format: "console"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Msg("Applying migrations")

	if err := postgres.RunMigrations(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
