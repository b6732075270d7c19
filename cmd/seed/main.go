package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/M365x55907051/juice-shop/internal/database"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/repository"
	"github.com/M365x55907051/juice-shop/internal/seed"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type seedConfig struct {
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"juice-shop.db"`
	AppDomain   string `env:"APP_DOMAIN" envDefault:"juice-sh.op"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	// Load environment variables
	_ = godotenv.Load()

	var cfg seedConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Parse command
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "demo":
		run(cfg, 0)
	case "dev":
		count := 10
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n < 0 {
				fmt.Fprintf(os.Stderr, "invalid user count %q\n", os.Args[2])
				os.Exit(1)
			}
			count = n
		}
		run(cfg, count)
	default:
		fmt.Println("Usage: seed [demo|dev [count]]")
		fmt.Println("  demo - Create the demo accounts only")
		fmt.Println("  dev  - Create the demo accounts plus count fake users (default 10)")
		os.Exit(1)
	}
}

func run(cfg seedConfig, fakeCount int) {
	if err := logger.Initialize(cfg.LogLevel, "seed.log"); err != nil {
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

	seeder := seed.NewSeeder(repository.NewUserRepository(database.DB))
	if err := seeder.Seed(context.Background(), cfg.AppDomain, fakeCount); err != nil {
		logger.FatalWithFields("Seeding failed", err)
	}

	logger.Log.Info("Seeding completed", zap.Int("fake_users", fakeCount))
}
