package main

import (
	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/handlers"
	"github.com/waffice/backend/internal/middleware"
	"github.com/waffice/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.allowedOrigins))

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(svc.registry))

	api := r.Group("/api", svc.apiLimiter.Middleware())
	svc.api.Register(api, middleware.AuthRequired(svc.tokens), svc.signupLimiter.Middleware())
}
