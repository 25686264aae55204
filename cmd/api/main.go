package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pnp-dms/docflow-api/docs"
	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/config"
	"github.com/pnp-dms/docflow-api/internal/database"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/http/handler"
	"github.com/pnp-dms/docflow-api/internal/http/middleware"
	"github.com/pnp-dms/docflow-api/internal/http/router"
	"github.com/pnp-dms/docflow-api/internal/jobs"
	"github.com/pnp-dms/docflow-api/internal/logger"
	"github.com/pnp-dms/docflow-api/internal/records"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"github.com/pnp-dms/docflow-api/internal/service"
	"github.com/pnp-dms/docflow-api/internal/storage"
	"go.uber.org/zap"
)

// @title PNP Document Flow API
// @version 1.0
// @description Document approval and signing workflow API for routing official documents through review, approval, and signature stages

// @contact.name API Support
// @contact.email dms-support@pnp.gov.ph

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Configure Swagger host based on environment
	switch basicCfg.App.Environment {
	case "staging":
		docs.SwaggerInfo.Host = "docflow-staging.pnp.gov.ph"
	case "production":
		docs.SwaggerInfo.Host = "docflow.pnp.gov.ph"
	default:
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize storage
	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize legacy records connection (optional - for case reference lookups)
	// This connection is read-only and the app continues without it if not configured
	var recordsClient *records.Client
	if cfg.Records.Enabled {
		recordsClient, err = records.NewClient(&cfg.Records, log)
		if err != nil {
			// Log error but don't fail - the records link is optional
			log.Warn("Legacy records connection failed, continuing without it",
				zap.Error(err),
			)
		} else if recordsClient != nil {
			log.Info("Legacy records system connected",
				zap.Int("max_open_conns", cfg.Records.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.Records.QueryTimeout),
			)
		}
	} else {
		log.Info("Legacy records system not configured, skipping",
			zap.Bool("enabled", cfg.Records.Enabled),
		)
	}

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db)
	stageRepo := repository.NewStageRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	trackingSequenceRepo := repository.NewTrackingSequenceRepository(db)

	// Initialize services
	accessService := service.NewAccessService(documentRepo, stageRepo, log)
	trackingNumberService := service.NewTrackingNumberService(trackingSequenceRepo, documentRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, log)
	workflowService := service.NewWorkflowService(db, userRepo, accessService, fileStorage, notificationService, log)
	documentService := service.NewDocumentService(db, documentRepo, versionRepo, trackingNumberService, workflowService, accessService, fileStorage, recordsClient, log)
	escalationService := service.NewEscalationService(db, notificationService, log)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	maxSignatureMB := int64(domain.MaxSignatureImageBytes / (1024 * 1024))
	documentHandler := handler.NewDocumentHandler(documentService, cfg.Storage.MaxUploadSizeMB, log)
	workflowHandler := handler.NewWorkflowHandler(workflowService, cfg.Storage.MaxUploadSizeMB, maxSignatureMB, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, log)
	authHandler := handler.NewAuthHandler(userRepo, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		recordsClient,
		authMiddleware,
		rateLimiter,
		documentHandler,
		workflowHandler,
		notificationHandler,
		authHandler,
	)

	// Initialize and start scheduler for background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.EscalationEnabled {
		scheduler = jobs.NewScheduler(log)

		if err := jobs.RegisterEscalationJob(
			scheduler,
			escalationService,
			log,
			cfg.Jobs.EscalationSchedule,
			cfg.Jobs.EscalationTimeoutDuration(),
		); err != nil {
			log.Error("Failed to register escalation job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with escalation sweep job",
				zap.String("cron_expr", cfg.Jobs.EscalationSchedule),
				zap.Duration("timeout", cfg.Jobs.EscalationTimeoutDuration()),
			)
		}
	} else {
		log.Info("Escalation sweep disabled",
			zap.Bool("enabled", cfg.Jobs.EscalationEnabled),
		)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		// Close the records connection if initialized
		if recordsClient != nil {
			if err := recordsClient.Close(); err != nil {
				log.Warn("Error closing records connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
