// Package main is the entry point for the auth service.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/akaumigame6/web-token-sec/internal/config"
	"github.com/akaumigame6/web-token-sec/internal/handlers"
	"github.com/akaumigame6/web-token-sec/internal/metrics"
	"github.com/akaumigame6/web-token-sec/internal/repository"
	"github.com/akaumigame6/web-token-sec/internal/routes"
	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/akaumigame6/web-token-sec/pkg/redis"
	"github.com/gin-gonic/gin"
)

// @title Account & Auth Service API
// @version 1.0
// @description Signup, password login and secret-question password recovery
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Initialize database
	db, err := repository.Connect(repository.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewSecretQuestionRepository(db)

	// Rate limiting is process-local unless a shared redis store is configured.
	var limiter service.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		limiter = service.NewRedisRateLimiter(redisClient)
	} else {
		memLimiter := service.NewMemoryRateLimiter(time.Hour)
		defer memLimiter.Stop()
		limiter = memLimiter
	}

	// Initialize services
	secLog := service.NewSecurityLog(logger)
	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.SessionTokenExpiry)
	if err != nil {
		log.Fatal("Failed to create token service:", err)
	}
	guard := service.NewCSRFGuard(cfg.CSRFSecret)

	authCfg := service.DefaultAuthConfig()
	authCfg.ResetTokenExpiry = cfg.ResetTokenExpiry
	authCfg.RecoveryTokenExpiry = cfg.RecoveryTokenExpiry
	authService := service.NewAuthService(userRepo, questionRepo, tokenService, limiter, secLog, authCfg)

	// Initialize handlers
	m := metrics.New()
	authHandler := handlers.NewAuthHandler(authService, tokenService, secLog, m)
	csrfHandler := handlers.NewCSRFHandler(guard, cfg.Environment == "production")
	healthHandler := handlers.NewHealthHandler()

	// Setup router
	router := gin.Default()
	routes.Setup(router, authHandler, csrfHandler, healthHandler, tokenService, guard, secLog, cfg)

	log.Printf("Starting auth service on port %s", cfg.Port)
	if err := router.Run(fmt.Sprintf(":%s", cfg.Port)); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
