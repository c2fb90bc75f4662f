package service

import (
	"errors"
	"time"

	"github.com/akaumigame6/web-token-sec/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose tags a token with the single capability it authorizes.
// Verification always checks the purpose; a session token can never satisfy
// a reset check and vice versa.
type TokenPurpose string

const (
	PurposeSession TokenPurpose = "session"
	PurposeReset   TokenPurpose = "password-reset"
)

// Claims represents the signed claim set carried by both token kinds.
type Claims struct {
	UserID  string       `json:"user_id"`
	Email   string       `json:"email,omitempty"`
	Role    models.Role  `json:"role,omitempty"`
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies the two token kinds.
type TokenService interface {
	MintSession(user *models.User) (string, error)
	MintReset(user *models.User, ttl time.Duration) (string, error)
	Verify(tokenString string, purpose TokenPurpose) (*Claims, error)
	SessionExpiry() time.Duration
}

type tokenService struct {
	secret        []byte
	sessionExpiry time.Duration
}

// NewTokenService creates a new TokenService instance. The secret must be at
// least 32 bytes.
func NewTokenService(secret string, sessionExpiry time.Duration) (TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	return &tokenService{
		secret:        []byte(secret),
		sessionExpiry: sessionExpiry,
	}, nil
}

func (s *tokenService) MintSession(user *models.User) (string, error) {
	claims := Claims{
		UserID:  user.ID,
		Role:    user.Role,
		Purpose: PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *tokenService) MintReset(user *models.User, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:  user.ID,
		Email:   user.Email,
		Purpose: PurposeReset,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *tokenService) Verify(tokenString string, purpose TokenPurpose) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Cryptographic validity is not enough: the purpose claim must match.
	if claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *tokenService) SessionExpiry() time.Duration {
	return s.sessionExpiry
}
