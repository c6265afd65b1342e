package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/vivo/internal/api"
	"github.com/saturnino-fabrica-de-software/vivo/internal/config"
	"github.com/saturnino-fabrica-de-software/vivo/internal/database"
	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vivo/internal/provider"
	"github.com/saturnino-fabrica-de-software/vivo/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/vivo/internal/provider/rekognition"
	"github.com/saturnino-fabrica-de-software/vivo/internal/repository"
	"github.com/saturnino-fabrica-de-software/vivo/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Vivo liveness API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("detector", cfg.DetectorType),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The catalog is validated before anything else starts
	catalog, err := liveness.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("invalid challenge catalog: %w", err)
	}

	poolCfg := database.DefaultPoolConfig(cfg.DatabaseURL)

	if cfg.AutoMigrate {
		if err := migrate(poolCfg, logger); err != nil {
			return err
		}
	}

	db, err := database.NewPgxPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	detector, err := newDetector(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		DB:          db,
		SessionRepo: repository.NewLivenessSessionRepository(db),
		EventRepo:   repository.NewLivenessEventRepository(db),
		Detector:    detector,
		Engine:      liveness.NewEngine(catalog),
		Liveness: service.LivenessConfig{
			SessionTTL:    cfg.SessionTTL,
			FrameInterval: cfg.FrameInterval(),
			Retention:     cfg.Retention,
		},
		CleanupInterval:  cfg.CleanupInterval,
		WebhookURL:       cfg.WebhookURL,
		WebhookSecret:    cfg.WebhookSecret,
		SessionRateLimit: cfg.RateLimit,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")

	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")

	return nil
}

func migrate(poolCfg database.PoolConfig, logger *slog.Logger) error {
	sqlDB, err := database.NewPool(poolCfg)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	migrator, err := database.NewMigrator(sqlDB, "vivo", database.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}

func newDetector(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.FaceDetector, error) {
	switch cfg.DetectorType {
	case "rekognition":
		rcfg := rekognition.DefaultConfig()
		rcfg.Region = cfg.AWSRegion

		detector, err := rekognition.NewDetector(ctx, rcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create rekognition detector: %w", err)
		}
		return detector, nil
	default:
		if cfg.IsProduction() {
			logger.Warn("mock face detector in production, uploaded images are not analysed")
		}
		return mock.New(), nil
	}
}
