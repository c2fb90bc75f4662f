package service

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for business-rule failures. Messages attached at the
// handler boundary stay deliberately generic; the audit log carries the
// internal reason codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAnswer      = errors.New("invalid secret answer")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrSignupFailed       = errors.New("signup failed")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// RateLimitError is returned when a client exceeds a rate-limit window.
// It carries the limiter result so handlers can populate the 429 headers.
type RateLimitError struct {
	Result LimitResult
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.Result.RetryAfter.Round(time.Second))
}
