package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Session stores
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds the server configuration, read from the environment
type Config struct {
	// Application
	AppName         string `env:"APP_NAME" envDefault:"OWASP Juice Shop"`
	AppDomain       string `env:"APP_DOMAIN" envDefault:"juice-sh.op"`
	ErrorPageBanner string `env:"ERROR_PAGE_BANNER" envDefault:"Express ^4.21.2"`
	Environment     string `env:"ENVIRONMENT" envDefault:"development"`
	Port            string `env:"PORT" envDefault:"3000"`
	BasePath        string `env:"BASE_PATH"`

	// Sessions
	JWTSecret    string        `env:"JWT_SECRET"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"6h"`
	SessionStore string        `env:"SESSION_STORE" envDefault:"memory"`

	// Redis (used when SESSION_STORE=redis)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Database
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"juice-shop.db"`

	// Image storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	UploadDir      string `env:"UPLOAD_DIR" envDefault:"data/uploads"`
	AWSRegion      string `env:"AWS_REGION"`
	AWSBucket      string `env:"AWS_BUCKET"`
	CDNBaseURL     string `env:"CDN_BASE_URL"`

	// Ingestion
	UploadMaxBytes    int64         `env:"UPLOAD_MAX_BYTES" envDefault:"200000"`
	AllowedImageTypes []string      `env:"UPLOAD_ALLOWED_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,image/gif,image/webp"`
	ImageFetchTimeout time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"10s"`
	RateLimitUploads  int           `env:"RATE_LIMIT_UPLOADS" envDefault:"20"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE" envDefault:"server.log"`

	// OpenTelemetry
	OTelEnabled      bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSamplingRate float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`

	// Seed the demo users on startup
	SeedDemoUsers bool `env:"SEED_DEMO_USERS" envDefault:"false"`
}

// Load reads an optional .env file and parses the environment into a Config
func Load() (*Config, error) {
	// A missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the server cannot run with
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR must be set for the local storage backend")
		}
	case StorageS3:
		if c.AWSRegion == "" || c.AWSBucket == "" {
			return fmt.Errorf("AWS_REGION and AWS_BUCKET must be set for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if len(c.AllowedImageTypes) == 0 {
		return fmt.Errorf("UPLOAD_ALLOWED_TYPES must list at least one type")
	}

	return nil
}

// ProfilePath is where successful ingestion redirects to
func (c *Config) ProfilePath() string {
	return c.BasePath + "/profile"
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
