// Package routes defines HTTP routes for the auth service.
package routes

import (
	"github.com/akaumigame6/web-token-sec/internal/config"
	"github.com/akaumigame6/web-token-sec/internal/handlers"
	"github.com/akaumigame6/web-token-sec/internal/middleware"
	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup configures all HTTP routes for the application.
func Setup(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	csrfHandler *handlers.CSRFHandler,
	healthHandler *handlers.HealthHandler,
	tokens service.TokenService,
	guard *service.CSRFGuard,
	secLog *service.SecurityLog,
	cfg *config.Config,
) {
	router.Use(middleware.SecurityHeaders(cfg.Environment == "production"))

	// Health check
	router.GET("/health", healthHandler.Check)
	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if cfg.CSRFEnforce {
		api.Use(middleware.CSRF(guard, secLog))
	}

	api.GET("/csrf-token", csrfHandler.Issue)
	api.POST("/login", authHandler.Login)
	api.GET("/secret-questions", authHandler.ListSecretQuestions)
	api.GET("/user-secret-question-by-email", authHandler.UserSecretQuestionByEmail)
	api.POST("/verify-secret-answer-by-email", authHandler.VerifySecretAnswerByEmail)
	// Reset-token or session-token auth is resolved inside the handler.
	api.POST("/update-password", authHandler.UpdatePassword)

	session := api.Group("")
	session.Use(middleware.RequireSession(tokens, secLog))
	session.GET("/user-secret-question", authHandler.UserSecretQuestion)
	session.POST("/verify-secret-answer", authHandler.VerifySecretAnswer)
	session.PUT("/update-secret-question", authHandler.UpdateSecretQuestion)
}
