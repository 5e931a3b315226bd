package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robcowart/onboard/internal/api"
	"github.com/robcowart/onboard/internal/auth"
	"github.com/robcowart/onboard/internal/config"
	"github.com/robcowart/onboard/internal/crypto"
	"github.com/robcowart/onboard/internal/database"
	"github.com/robcowart/onboard/internal/service"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	flags, configFile, showVersion := config.ParseFlags()

	// Handle version flag
	if showVersion {
		fmt.Printf("Logbook onboarding v%s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if issue, operator := flags.IssueOperatorToken(); issue {
		if !cfg.OperatorAPIEnabled() {
			log.Fatal("Refusing to issue an operator token signed with the development secret, set jwt.secret")
		}
		token, err := auth.GenerateOperatorToken(operator, cfg.JWTSecret(), cfg.JWT.Issuer, cfg.JWT.Expiration)
		if err != nil {
			log.Fatalf("Failed to issue operator token: %v", err)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	// Initialize logger
	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting onboarding server",
		zap.String("version", version),
		zap.String("database", cfg.Database.Type),
	)

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	secret, dedicated := cfg.EncryptionSecret()
	if !dedicated {
		logger.Warn("No dedicated encryption key configured, deriving credential key from the shared secret")
	}
	if secret == config.DevSecretKey {
		logger.Warn("Using the development secret key, stored credentials are not protected")
	}

	onboardingService := service.NewOnboardingService(db, crypto.NewCodec(secret), cfg, logger)

	canaryCtx, cancelCanary := context.WithTimeout(context.Background(), 10*time.Second)
	if err := onboardingService.VerifyKeyCanary(canaryCtx); err != nil {
		logger.Error("Credential key check failed, stored credentials will not decrypt", zap.Error(err))
	}
	cancelCanary()

	// Initialize router
	router := api.NewRouter(cfg, onboardingService, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", srv.Addr),
			zap.Bool("tls", cfg.Server.TLSEnabled),
		)

		var err error
		if cfg.Server.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	if cfg.Logging.Output != "" && cfg.Logging.Output != "stdout" {
		zapConfig.OutputPaths = []string{cfg.Logging.Output}
	}

	return zapConfig.Build()
}
