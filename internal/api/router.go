// Package api provides HTTP routing for the onboarding server.
// It wires together handlers, middleware, and services to create the application's endpoints.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/robcowart/onboard/internal/api/handlers"
	"github.com/robcowart/onboard/internal/api/middleware"
	"github.com/robcowart/onboard/internal/config"
	"github.com/robcowart/onboard/internal/service"
	"go.uber.org/zap"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, onboardingService *service.OnboardingService, logger *zap.Logger) *gin.Engine {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RateLimitMiddleware(cfg, logger))

	// Initialize handlers
	notifier := handlers.NewFlashNotifier(logger, cfg.Server.TLSEnabled)
	onboardingHandler := handlers.NewOnboardingHandler(onboardingService, notifier, logger)

	router.GET("/healthz", handlers.Health)

	// Wizard
	router.GET("/", onboardingHandler.Welcome)
	router.GET("/step/:n", onboardingHandler.GetStep)
	router.POST("/step/:n", onboardingHandler.SubmitStep)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/theme", onboardingHandler.GetTheme)
	}

	// Operator routes (require an operator token)
	if !cfg.OperatorAPIEnabled() {
		logger.Error("Operator API disabled: set jwt.secret or security.secret_key to a deployment specific value")
		return router
	}

	adminHandler := handlers.NewAdminHandler(onboardingService, logger)
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.OperatorAuthMiddleware(cfg))
	{
		admin.GET("/integrity", adminHandler.GetIntegrity)
	}

	return router
}
