// Package main is the administrative bulk-reset tool. It wipes all user
// accounts, reseeds the secret-question catalog, and creates the demo
// accounts. This is the only way user records are deleted.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/akaumigame6/web-token-sec/internal/config"
	"github.com/akaumigame6/web-token-sec/internal/models"
	"github.com/akaumigame6/web-token-sec/internal/repository"
	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var questionCatalog = []models.SecretQuestion{
	{ID: 1, Question: "What was the name of your first pet?"},
	{ID: 2, Question: "What was the name of your elementary school?"},
	{ID: 3, Question: "What was your childhood nickname?"},
	{ID: 4, Question: "What is your favorite color?"},
	{ID: 5, Question: "In what city were you born?"},
}

type adminSeed struct {
	name             string
	email            string
	password         string
	secretQuestionID int64
	secretAnswer     string
}

var adminSeeds = []adminSeed{
	{name: "Admin One", email: "admin01@example.com", password: "password1111", secretQuestionID: 1, secretAnswer: "Rex"},
	{name: "Admin Two", email: "admin02@example.com", password: "password2222", secretQuestionID: 2, secretAnswer: "Northside Elementary"},
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

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

	if err := db.AutoMigrate(&models.SecretQuestion{}, &models.User{}); err != nil {
		log.Fatal("Failed to migrate schema:", err)
	}

	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewSecretQuestionRepository(db)

	log.Println("Wiping users and reseeding secret-question catalog...")
	if err := userRepo.DeleteAll(ctx); err != nil {
		log.Fatal("Failed to delete users:", err)
	}
	if err := questionRepo.ReplaceAll(ctx, questionCatalog); err != nil {
		log.Fatal("Failed to seed secret questions:", err)
	}

	// Admin accounts are inserted directly; signup only produces USER roles.
	for _, seed := range adminSeeds {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("Failed to hash password:", err)
		}
		answerHash, err := bcrypt.GenerateFromPassword([]byte(seed.secretAnswer), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("Failed to hash secret answer:", err)
		}
		user := &models.User{
			ID:               uuid.NewString(),
			Name:             seed.name,
			Email:            seed.email,
			Password:         string(passwordHash),
			Role:             models.RoleAdmin,
			SecretQuestionID: seed.secretQuestionID,
			SecretAnswer:     string(answerHash),
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatal("Failed to create admin user:", err)
		}
		log.Printf("Created admin %s", seed.email)
	}

	// Demo members go through the real signup path.
	secLog := service.NewSecurityLog(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.SessionTokenExpiry)
	if err != nil {
		log.Fatal("Failed to create token service:", err)
	}
	limiter := service.NewMemoryRateLimiter(time.Hour)
	defer limiter.Stop()

	authService := service.NewAuthService(userRepo, questionRepo, tokenService, limiter, secLog, service.DefaultAuthConfig())

	slug1, slug2 := "gojiro", "aimaiko"
	memberSeeds := []service.SignupRequest{
		{
			Name:             "Sample Member One",
			Email:            "user01@example.com",
			Password:         "password1111",
			ConfirmPassword:  "password1111",
			SecretQuestionID: 3,
			SecretAnswer:     "Sparky",
			AboutSlug:        &slug1,
			AboutContent:     "Hi, I am the first sample member.",
		},
		{
			Name:             "Sample Member Two",
			Email:            "user02@example.com",
			Password:         "password2222",
			ConfirmPassword:  "password2222",
			SecretQuestionID: 4,
			SecretAnswer:     "cerulean blue",
			AboutSlug:        &slug2,
			AboutContent:     "Nice to meet you, I am the second sample member.",
		},
	}

	for _, req := range memberSeeds {
		profile, err := authService.Signup(ctx, req, service.ClientInfo{IPAddress: "seed-tool"})
		if err != nil {
			log.Fatal("Failed to sign up member:", err)
		}
		log.Printf("Created member %s (%s)", profile.Email, profile.ID)
	}

	log.Println("Seeding complete.")
}
