package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/config"
	"github.com/pnp-dms/docflow-api/internal/database"
	"github.com/pnp-dms/docflow-api/internal/http/handler"
	"github.com/pnp-dms/docflow-api/internal/http/middleware"
	"github.com/pnp-dms/docflow-api/internal/records"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/pnp-dms/docflow-api/docs" // Import generated swagger docs
)

type Router struct {
	cfg                 *config.Config
	logger              *zap.Logger
	db                  *gorm.DB
	recordsClient       *records.Client
	authMiddleware      *auth.Middleware
	rateLimiter         *middleware.RateLimiter
	documentHandler     *handler.DocumentHandler
	workflowHandler     *handler.WorkflowHandler
	notificationHandler *handler.NotificationHandler
	authHandler         *handler.AuthHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	recordsClient *records.Client,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	documentHandler *handler.DocumentHandler,
	workflowHandler *handler.WorkflowHandler,
	notificationHandler *handler.NotificationHandler,
	authHandler *handler.AuthHandler,
) *Router {
	return &Router{
		cfg:                 cfg,
		logger:              logger,
		db:                  db,
		recordsClient:       recordsClient,
		authMiddleware:      authMiddleware,
		rateLimiter:         rateLimiter,
		documentHandler:     documentHandler,
		workflowHandler:     workflowHandler,
		notificationHandler: notificationHandler,
		authHandler:         authHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP) // Apply IP-based rate limiting globally

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		// Check database
		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		// Check the legacy records connection when enabled.
		// A degraded records link does not fail readiness since
		// the lookup endpoint is best-effort.
		if rt.recordsClient.IsEnabled() {
			status := rt.recordsClient.HealthCheck(r.Context())
			checks["records"] = status
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)

			// Auth
			r.Get("/auth/me", rt.authHandler.Me)
			r.Get("/users", rt.authHandler.ListUsers)

			// Documents
			r.Route("/documents", func(r chi.Router) {
				r.Get("/", rt.documentHandler.List)
				r.Post("/", rt.documentHandler.Create)
				r.Get("/{id}", rt.documentHandler.GetByID)
				r.Get("/{id}/download", rt.documentHandler.Download)
				r.Get("/{id}/case-record", rt.documentHandler.LookupCaseReference)

				// Admin-only document removal
				r.With(rt.authMiddleware.RequireAdmin).
					Delete("/{id}", rt.documentHandler.Delete)

				// Version history
				r.Get("/{id}/versions", rt.documentHandler.ListVersions)
				r.Get("/{id}/versions/{versionId}/download", rt.documentHandler.DownloadVersion)

				// Workflow stages
				r.Route("/{id}/stages", func(r chi.Router) {
					r.Get("/", rt.workflowHandler.ListStages)

					// Admin-or-authority enforcement lives in the service layer
					r.Put("/{stageId}/assign", rt.workflowHandler.AssignStage)
					r.Put("/{stageId}/status", rt.workflowHandler.UpdateStageStatus)
					r.Post("/{stageId}/sign", rt.workflowHandler.SignStage)
					r.Post("/{stageId}/signed-version", rt.workflowHandler.UploadSignedVersion)

					r.Get("/{stageId}/comments", rt.workflowHandler.ListComments)
					r.Post("/{stageId}/comments", rt.workflowHandler.AddComment)
					r.Get("/{stageId}/signatures", rt.workflowHandler.ListSignatures)
					r.Get("/{stageId}/signatures/{signatureId}/download", rt.workflowHandler.DownloadSignature)
				})
			})

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.notificationHandler.List)
				r.Get("/count", rt.notificationHandler.GetUnreadCount)
				r.Put("/read-all", rt.notificationHandler.MarkAllAsRead)
				r.Get("/{id}", rt.notificationHandler.GetByID)
				r.Put("/{id}/read", rt.notificationHandler.MarkAsRead)
				r.Delete("/{id}", rt.notificationHandler.Delete)
			})
		})
	})

	return r
}
