package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/waffice/backend/internal/config"
	"github.com/waffice/backend/internal/handlers"
	"github.com/waffice/backend/internal/metrics"
	"github.com/waffice/backend/internal/middleware"
	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/internal/services"
	"github.com/waffice/backend/internal/storage"
	"github.com/waffice/backend/internal/utils"
	"github.com/waffice/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds everything the route table needs.
type appServices struct {
	db             *gorm.DB
	registry       *prometheus.Registry
	tokens         *utils.TokenManager
	allowedOrigins []string

	signupLimiter *middleware.RateLimiter
	apiLimiter    *middleware.RateLimiter

	api           *handlers.API
	healthHandler *handlers.HealthHandler
}

// bootstrap opens the store and wires services and handlers. The rate
// limiters' sweepers run until ctx is done.
func bootstrap(ctx context.Context, cfg *config.Config) (*appServices, error) {
	presigner, err := newPresigner(ctx, cfg.Upload)
	if err != nil {
		return nil, err
	}

	db, err := models.Open(&cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	core := services.NewCore(services.CoreOptions{
		Membership: cfg.Membership,
		Metrics:    metrics.NewRecorder(registry),
	})
	users := services.NewUserService(db, core)
	tokens := utils.NewTokenManager(cfg.JWT.Secret)

	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("admin_noop_policy", cfg.Membership.AdminNoopPolicy).
		Str("upload_driver", cfg.Upload.Driver).
		Msg("Services initialized")

	return &appServices{
		db:             db,
		registry:       registry,
		tokens:         tokens,
		allowedOrigins: cfg.Server.AllowedOrigins,
		signupLimiter:  middleware.NewRateLimiter(ctx, cfg.RateLimit.SignupRPS, cfg.RateLimit.SignupBurst),
		apiLimiter:     middleware.NewRateLimiter(ctx, cfg.RateLimit.APIRPS, cfg.RateLimit.APIBurst),
		api: &handlers.API{
			Auth:     handlers.NewAuthHandler(users, tokens, cfg.JWT.ExpireHour),
			Users:    handlers.NewUserHandler(users),
			Projects: handlers.NewProjectHandler(services.NewProjectService(db, core)),
			Members:  handlers.NewProjectMemberHandler(services.NewMemberService(db, core)),
			Uploads:  handlers.NewUploadHandler(services.NewUploadService(db, presigner)),
		},
		healthHandler: handlers.NewHealthHandler(db),
	}, nil
}

// newPresigner builds the upload presigner named by cfg.Driver.
func newPresigner(ctx context.Context, cfg config.UploadConfig) (storage.Presigner, error) {
	ttl := time.Duration(cfg.URLTTLSeconds) * time.Second
	switch cfg.Driver {
	case config.UploadDriverS3:
		return storage.NewS3Presigner(ctx, storage.S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       ttl,
		})
	default:
		return &storage.MockPresigner{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       ttl,
		}, nil
	}
}

// shutdown releases the store connection.
func (s *appServices) shutdown() {
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
	logger.Info().Msg("Database closed")
}
