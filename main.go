package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"taskflow/config"
	"taskflow/middleware"
	"taskflow/routes"
	"taskflow/services"
	"taskflow/storage"
	"taskflow/utils"
	"taskflow/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.NewLogger("development").Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.Environment)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Warnf("Sentry disabled: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	db, err := config.ConnectDB(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	blobs, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.Fatalf("Failed to open upload directory: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Blob cleanup runs off the request path
	janitor := worker.NewBlobJanitor(blobs, logger.WithField("component", "blob_janitor"), cfg.CleanupQueue)
	go janitor.Start(ctx)

	svc := services.New(services.Dependencies{
		Config:  services.Config{MaxTeamsPerCreator: cfg.MaxTeams},
		DB:      db,
		Blobs:   blobs,
		Cleaner: janitor,
		Logger:  logger.WithField("service", "taskflow"),
	}, utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL))

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:   "taskflow",
		BodyLimit: int(cfg.MaxUploadBytes) + 1<<20,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins...)))

	routes.SetupRoutes(app, svc, routes.Options{
		Logger:         logger,
		LoginRateLimit: cfg.LoginRateLimit,
		RateStorage:    middleware.NewRateLimitStorage(cfg.Redis),
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Errorf("Server shutdown failed: %v", err)
		}
	}()

	// Start server
	logger.Infof("🚀 Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}

	janitor.Drain()
}
