package main

import (
	"fmt"
	"os"

	"github.com/M365x55907051/juice-shop/internal/database"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// dbConfig is the subset of the server configuration the migrator needs
type dbConfig struct {
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"juice-shop.db"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	// Load environment variables
	_ = godotenv.Load()

	var cfg dbConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Parse command
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp(cfg)
	default:
		fmt.Println("Usage: migrate [up]")
		fmt.Println("  up - Create or update the users and profile image tables")
		os.Exit(1)
	}
}

func runMigrationsUp(cfg dbConfig) {
	if err := logger.Initialize(cfg.LogLevel, "migrate.log"); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := database.Initialize(cfg.DBDriver, cfg.DatabaseURL, false); err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}

	logger.Log.Info("All migrations completed successfully")
}
