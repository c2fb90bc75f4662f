// Package config handles configuration loading for the auth service.
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the auth service.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RedisAddr is optional; when set the rate limiter runs against redis
	// instead of process-local memory.
	RedisAddr     string
	RedisPassword string

	JWTSecret          string
	CSRFSecret         string
	SessionTokenExpiry time.Duration
	ResetTokenExpiry   time.Duration
	// RecoveryTokenExpiry bounds reset tokens minted on the anonymous
	// email-driven recovery path.
	RecoveryTokenExpiry time.Duration

	CSRFEnforce bool
	Port        string
	Environment string
}

// Load reads configuration from the environment, consulting .env first.
func Load() *Config {
	// Missing .env is fine; env vars may come from the process environment.
	_ = godotenv.Load()

	return &Config{
		DBHost:              GetEnvRequired("DB_HOST"),
		DBPort:              GetEnvRequired("DB_PORT"),
		DBUser:              GetEnvRequired("DB_USER"),
		DBPassword:          GetEnvRequired("DB_PASSWORD"),
		DBName:              GetEnvRequired("DB_NAME"),
		RedisAddr:           GetEnv("REDIS_ADDR", ""),
		RedisPassword:       GetEnv("REDIS_PASSWORD", ""),
		JWTSecret:           GetEnvRequired("JWT_SECRET"),
		CSRFSecret:          GetEnvRequired("CSRF_SECRET"),
		SessionTokenExpiry:  parseDuration(GetEnv("SESSION_TOKEN_EXPIRY", "3h"), 3*time.Hour),
		ResetTokenExpiry:    parseDuration(GetEnv("RESET_TOKEN_EXPIRY", "15m"), 15*time.Minute),
		RecoveryTokenExpiry: parseDuration(GetEnv("RECOVERY_TOKEN_EXPIRY", "10m"), 10*time.Minute),
		CSRFEnforce:         GetEnv("CSRF_ENFORCE", "false") == "true",
		Port:                GetEnv("PORT", "8080"),
		Environment:         GetEnv("ENVIRONMENT", "development"),
	}
}

// GetEnv returns the value of the environment variable or the default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvRequired returns the value of the environment variable or exits.
func GetEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("required environment variable %s is not set", key)
	}
	return value
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
