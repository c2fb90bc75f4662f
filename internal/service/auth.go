package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/akaumigame6/web-token-sec/internal/models"
	"github.com/akaumigame6/web-token-sec/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{4,16}$`)

// SignupRequest is the in-process signup contract. It is validated here, not
// at an HTTP boundary, because signup is invoked as a direct server call.
type SignupRequest struct {
	Name             string  `validate:"required"`
	Email            string  `validate:"required,email"`
	Password         string  `validate:"required,min=8,ascii"`
	ConfirmPassword  string  `validate:"required,eqfield=Password"`
	SecretQuestionID int64   `validate:"required,min=1"`
	SecretAnswer     string  `validate:"required"`
	AboutSlug        *string
	AboutContent     string `validate:"max=1000"`
}

// AuthConfig tunes the authentication core.
type AuthConfig struct {
	// SignupDelay is the fixed artificial delay before signup persistence,
	// blunting automated enumeration. Zero disables it (tests).
	SignupDelay time.Duration
	BcryptCost  int
	// ResetTokenExpiry bounds reset tokens minted on the session-authenticated
	// verification path; RecoveryTokenExpiry bounds the anonymous path.
	ResetTokenExpiry    time.Duration
	RecoveryTokenExpiry time.Duration
}

// DefaultAuthConfig returns the production configuration.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SignupDelay:         time.Second,
		BcryptCost:          bcrypt.DefaultCost,
		ResetTokenExpiry:    15 * time.Minute,
		RecoveryTokenExpiry: 10 * time.Minute,
	}
}

// AuthService orchestrates signup, login, secret-question verification and
// the credential update operations. Every operation runs rate-limit check,
// input validation, business logic, then audit logging, in that order.
type AuthService interface {
	Signup(ctx context.Context, req SignupRequest, client ClientInfo) (*models.UserProfile, error)
	Login(ctx context.Context, email, password string, client ClientInfo) (string, error)
	ListSecretQuestions(ctx context.Context) ([]models.SecretQuestion, error)
	SecretQuestion(ctx context.Context, userID string) (*models.SecretQuestion, error)
	SecretQuestionByEmail(ctx context.Context, email string, client ClientInfo) (*models.SecretQuestion, error)
	VerifySecretAnswer(ctx context.Context, userID, answer string, client ClientInfo) (string, error)
	VerifySecretAnswerByEmail(ctx context.Context, email, answer string, client ClientInfo) (string, error)
	UpdatePassword(ctx context.Context, userID, newPassword string, client ClientInfo) error
	UpdateSecretQuestion(ctx context.Context, userID string, questionID int64, answer, currentPassword string, client ClientInfo) error
}

type authService struct {
	users     repository.UserRepository
	questions repository.SecretQuestionRepository
	tokens    TokenService
	limiter   RateLimiter
	secLog    *SecurityLog
	cfg       AuthConfig
	// dummyHash absorbs a bcrypt comparison when the looked-up user does not
	// exist, so response timing does not reveal account existence.
	dummyHash []byte
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(
	users repository.UserRepository,
	questions repository.SecretQuestionRepository,
	tokens TokenService,
	limiter RateLimiter,
	secLog *SecurityLog,
	cfg AuthConfig,
) AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	return &authService{
		users:     users,
		questions: questions,
		tokens:    tokens,
		limiter:   limiter,
		secLog:    secLog,
		cfg:       cfg,
		dummyHash: dummy,
	}
}

func (s *authService) Signup(ctx context.Context, req SignupRequest, client ClientInfo) (*models.UserProfile, error) {
	if err := s.checkLimit(ctx, "signup:"+client.IPAddress, LimitSignup, EventSignupRateLimited, client); err != nil {
		return nil, err
	}

	if err := validateSignupRequest(req); err != nil {
		s.secLog.Record(LevelWarning, EventSignupFailure, client, "", map[string]any{"reason": "validation", "field": err.Field})
		return nil, err
	}

	if _, err := s.questions.FindByID(ctx, req.SecretQuestionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.secLog.Record(LevelWarning, EventSignupFailure, client, "", map[string]any{"reason": "unknown_secret_question"})
			return nil, &ValidationError{Field: "secretQuestionId", Message: "unknown secret question"}
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	// Fixed delay against automated enumeration.
	if s.cfg.SignupDelay > 0 {
		select {
		case <-time.After(s.cfg.SignupDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		// Do not reveal to the caller that the email is taken.
		s.secLog.Record(LevelWarning, EventSignupFailure, client, "", map[string]any{"reason": "email_already_registered"})
		return nil, ErrSignupFailed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("signup: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("signup: failed to hash password: %w", err)
	}
	answerHash, err := bcrypt.GenerateFromPassword([]byte(req.SecretAnswer), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("signup: failed to hash secret answer: %w", err)
	}

	user := &models.User{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Email:            req.Email,
		Password:         string(passwordHash),
		Role:             models.RoleUser,
		AboutSlug:        req.AboutSlug,
		AboutContent:     req.AboutContent,
		SecretQuestionID: req.SecretQuestionID,
		SecretAnswer:     string(answerHash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.secLog.Record(LevelWarning, EventSignupFailure, client, "", map[string]any{"reason": "email_already_registered"})
			return nil, ErrSignupFailed
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	s.secLog.Record(LevelInfo, EventSignupSuccess, client, user.ID, map[string]any{"email": user.Email})
	return user.Profile(), nil
}

func (s *authService) Login(ctx context.Context, email, password string, client ClientInfo) (string, error) {
	if err := s.checkLimit(ctx, "login:"+client.IPAddress, LimitLogin, EventLoginRateLimited, client); err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn a comparison so a miss costs as much as a mismatch.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.secLog.Record(LevelWarning, EventLoginFailure, client, "", map[string]any{"reason": "user_not_found", "email": email})
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.secLog.Record(LevelWarning, EventLoginFailure, client, user.ID, map[string]any{"reason": "invalid_password", "email": email})
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.MintSession(user)
	if err != nil {
		return "", fmt.Errorf("login: failed to mint session token: %w", err)
	}

	s.secLog.Record(LevelInfo, EventLoginSuccess, client, user.ID, map[string]any{"email": user.Email})
	return token, nil
}

func (s *authService) ListSecretQuestions(ctx context.Context) ([]models.SecretQuestion, error) {
	return s.questions.List(ctx)
}

func (s *authService) SecretQuestion(ctx context.Context, userID string) (*models.SecretQuestion, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("secret question: %w", err)
	}

	question, err := s.questions.FindByID(ctx, user.SecretQuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("secret question: %w", err)
	}
	return question, nil
}

func (s *authService) SecretQuestionByEmail(ctx context.Context, email string, client ClientInfo) (*models.SecretQuestion, error) {
	if err := s.checkLimit(ctx, "question-lookup:"+client.IPAddress, LimitGeneral, EventRateLimitExceeded, client); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("secret question by email: %w", err)
	}
	return s.SecretQuestion(ctx, user.ID)
}

func (s *authService) VerifySecretAnswer(ctx context.Context, userID, answer string, client ClientInfo) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("verify secret answer: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SecretAnswer), []byte(answer)); err != nil {
		s.secLog.Record(LevelWarning, EventPasswordResetFailure, client, user.ID, map[string]any{"reason": "invalid_answer"})
		return "", ErrInvalidAnswer
	}

	token, err := s.tokens.MintReset(user, s.cfg.ResetTokenExpiry)
	if err != nil {
		return "", fmt.Errorf("verify secret answer: failed to mint reset token: %w", err)
	}

	s.secLog.Record(LevelInfo, EventPasswordResetRequest, client, user.ID, map[string]any{"path": "session"})
	return token, nil
}

func (s *authService) VerifySecretAnswerByEmail(ctx context.Context, email, answer string, client ClientInfo) (string, error) {
	if err := s.checkLimit(ctx, "password-reset:"+client.IPAddress, LimitPasswordReset, EventRateLimitExceeded, client); err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown email and wrong answer are indistinguishable.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(answer))
			s.secLog.Record(LevelWarning, EventPasswordResetFailure, client, "", map[string]any{"reason": "user_not_found", "email": email})
			return "", ErrInvalidAnswer
		}
		return "", fmt.Errorf("verify secret answer by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SecretAnswer), []byte(answer)); err != nil {
		s.secLog.Record(LevelWarning, EventPasswordResetFailure, client, user.ID, map[string]any{"reason": "invalid_answer"})
		return "", ErrInvalidAnswer
	}

	token, err := s.tokens.MintReset(user, s.cfg.RecoveryTokenExpiry)
	if err != nil {
		return "", fmt.Errorf("verify secret answer by email: failed to mint reset token: %w", err)
	}

	s.secLog.Record(LevelInfo, EventPasswordResetRequest, client, user.ID, map[string]any{"path": "email"})
	return token, nil
}

// UpdatePassword hashes and persists a new password. Outstanding session
// tokens stay valid until their natural expiry; there is no revocation list.
func (s *authService) UpdatePassword(ctx context.Context, userID, newPassword string, client ClientInfo) error {
	if err := validate.Var(newPassword, "required,min=8,ascii"); err != nil {
		return &ValidationError{Field: "newPassword", Message: "password must be at least 8 ASCII characters"}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("update password: failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.secLog.Record(LevelInfo, EventPasswordUpdated, client, user.ID, nil)
	return nil
}

func (s *authService) UpdateSecretQuestion(ctx context.Context, userID string, questionID int64, answer, currentPassword string, client ClientInfo) error {
	if err := validate.Var(answer, "required"); err != nil {
		return &ValidationError{Field: "secretAnswer", Message: "secret answer is required"}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update secret question: %w", err)
	}

	// Re-verify the password even with a valid session, against hijack.
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		s.secLog.Record(LevelWarning, EventUnauthorizedAccess, client, user.ID, map[string]any{"reason": "invalid_current_password"})
		return ErrInvalidCredentials
	}

	if _, err := s.questions.FindByID(ctx, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationError{Field: "secretQuestionId", Message: "unknown secret question"}
		}
		return fmt.Errorf("update secret question: %w", err)
	}

	answerHash, err := bcrypt.GenerateFromPassword([]byte(answer), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("update secret question: failed to hash answer: %w", err)
	}

	if err := s.users.UpdateSecretQuestion(ctx, user.ID, questionID, string(answerHash)); err != nil {
		return fmt.Errorf("update secret question: %w", err)
	}

	s.secLog.Record(LevelInfo, EventSecretQuestionUpdate, client, user.ID, map[string]any{"question_id": questionID})
	return nil
}

func (s *authService) checkLimit(ctx context.Context, key string, cfg LimitConfig, event string, client ClientInfo) error {
	result, err := s.limiter.Check(ctx, key, cfg)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !result.Allowed {
		s.secLog.Record(LevelWarning, event, client, "", map[string]any{
			"retry_after": result.RetryAfter.Seconds(),
			"reset_time":  result.ResetTime,
		})
		return &RateLimitError{Result: result}
	}
	return nil
}

func validateSignupRequest(req SignupRequest) *ValidationError {
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			e := fieldErrs[0]
			return &ValidationError{Field: e.Field(), Message: validationMessage(e)}
		}
		return &ValidationError{Field: "request", Message: "invalid signup request"}
	}

	if req.AboutSlug != nil && !slugPattern.MatchString(*req.AboutSlug) {
		return &ValidationError{Field: "aboutSlug", Message: "slug must be 4-16 lowercase letters, digits or hyphens"}
	}
	return nil
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "is too short"
	case "max":
		return "is too long"
	case "ascii":
		return "must contain only ASCII characters"
	case "eqfield":
		return "passwords do not match"
	default:
		return "is invalid"
	}
}
