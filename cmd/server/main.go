// Command server runs the profile image ingestion service.
//
// Configuration is read from the environment (and an optional .env file);
// see internal/config for the full list of settings.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/M365x55907051/juice-shop/internal/auth"
	"github.com/M365x55907051/juice-shop/internal/cache"
	"github.com/M365x55907051/juice-shop/internal/config"
	"github.com/M365x55907051/juice-shop/internal/database"
	"github.com/M365x55907051/juice-shop/internal/handlers"
	"github.com/M365x55907051/juice-shop/internal/ingest"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/middleware"
	"github.com/M365x55907051/juice-shop/internal/repository"
	"github.com/M365x55907051/juice-shop/internal/seed"
	"github.com/M365x55907051/juice-shop/internal/storage"
	"github.com/M365x55907051/juice-shop/internal/telemetry"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Multipart framing allowance on top of the image limit
const formOverheadBytes = 64 << 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		println("config: " + err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		println("logger: " + err.Error())
		os.Exit(1)
	}
	defer logger.Close()

	ctx := context.Background()

	// Tracing
	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  "profile-image-ingestor",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
		Enabled:      cfg.OTelEnabled,
		SamplingRate: cfg.OTelSamplingRate,
	})
	if err != nil {
		logger.FatalWithFields("Failed to initialize tracing", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.WarnWithFields("Tracer shutdown", err)
		}
	}()

	// Database
	if err := database.Initialize(cfg.DBDriver, cfg.DatabaseURL, !cfg.IsProduction()); err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close()

	if cfg.OTelEnabled {
		if err := database.DB.Use(telemetry.GORMTracingPlugin(cfg.DBDriver)); err != nil {
			logger.WarnWithFields("Database tracing disabled", err)
		}
	}

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	users := repository.NewUserRepository(database.DB)

	// Image storage
	var store storage.ImageStore
	switch cfg.StorageBackend {
	case config.StorageS3:
		s3Store, err := storage.NewS3Uploader(ctx, cfg.AWSRegion, cfg.AWSBucket, cfg.CDNBaseURL)
		if err != nil {
			logger.FatalWithFields("Failed to initialize S3 storage", err)
		}
		store = s3Store
	default:
		localStore, err := storage.NewLocalStore(cfg.UploadDir, cfg.BasePath+handlers.UploadsPath)
		if err != nil {
			logger.FatalWithFields("Failed to initialize local storage", err)
		}
		store = localStore
	}

	checkCtx, cancelCheck := context.WithTimeout(ctx, 10*time.Second)
	if err := store.CheckAccess(checkCtx); err != nil {
		logger.WarnWithFields("Image storage is not reachable, uploads will fail until it is", err)
	}
	cancelCheck()

	// Sessions, and the shared Redis client when one is configured
	var redisClient *cache.RedisClient
	var sessions auth.SessionStore = auth.NewMemoryStore()
	if cfg.SessionStore == config.SessionStoreRedis {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.FatalWithFields("Failed to connect to Redis", err)
		}
		defer redisClient.Close()
		sessions = auth.NewRedisStore(redisClient)
	}

	authService := auth.NewService(users, sessions, []byte(cfg.JWTSecret), cfg.SessionTTL)

	if cfg.SeedDemoUsers {
		if err := seed.NewSeeder(users).Seed(ctx, cfg.AppDomain, 10); err != nil {
			logger.WarnWithFields("Seeding demo users failed", err)
		}
	}

	// Ingestion
	fetcher := ingest.NewRemoteFetcher(
		telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{Timeout: cfg.ImageFetchTimeout}),
		cfg.UploadMaxBytes,
	)
	ingestor := ingest.NewIngestor(store, users, fetcher, ingest.Policy{
		AllowedTypes: cfg.AllowedImageTypes,
		MaxBytes:     cfg.UploadMaxBytes,
		RedirectTo:   cfg.ProfilePath(),
	})

	uploadDir := ""
	if cfg.StorageBackend == config.StorageLocal {
		uploadDir = cfg.UploadDir
	}
	h := handlers.NewHandlers(authService, users, ingestor, handlers.Options{
		AppName:   cfg.AppName,
		Banner:    cfg.ErrorPageBanner,
		BasePath:  cfg.BasePath,
		UploadDir: uploadDir,
	})

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	if cfg.OTelEnabled {
		r.Use(middleware.TracingMiddleware("profile-image-ingestor"))
	}
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Stored images are already compressed
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{cfg.BasePath + handlers.UploadsPath, "/metrics"}),
	))

	r.Use(middleware.SessionMiddleware(authService))
	if cfg.OTelEnabled {
		r.Use(middleware.SpanEnrichmentMiddleware())
	}

	h.RegisterRoutes(r.Group(cfg.BasePath), handlers.RouteOptions{
		Upload: []gin.HandlerFunc{
			middleware.RateLimit(redisClient, middleware.UploadRateLimitConfig(cfg.RateLimitUploads)),
			middleware.BodyLimitMiddleware(cfg.UploadMaxBytes + formOverheadBytes),
		},
		Login: []gin.HandlerFunc{
			middleware.RateLimit(redisClient, middleware.AuthRateLimitConfig()),
		},
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("base_path", cfg.BasePath),
			zap.String("storage", cfg.StorageBackend),
			zap.String("sessions", cfg.SessionStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	logger.Log.Info("Server exited")
}
