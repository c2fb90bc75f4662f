package service

import (
	"log/slog"
	"sync"
	"time"
)

// LogLevel is the severity of a security event.
type LogLevel string

const (
	LevelInfo     LogLevel = "INFO"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

// Security event names recorded by the auth core.
const (
	EventLoginSuccess         = "login_success"
	EventLoginFailure         = "login_failure"
	EventLoginRateLimited     = "login_rate_limited"
	EventSignupSuccess        = "signup_success"
	EventSignupFailure        = "signup_failure"
	EventSignupRateLimited    = "signup_rate_limited"
	EventPasswordResetRequest = "password_reset_request"
	EventPasswordResetFailure = "password_reset_failure"
	EventPasswordUpdated      = "password_updated"
	EventSecretQuestionUpdate = "secret_question_updated"
	EventRateLimitExceeded    = "rate_limit_exceeded"
	EventUnauthorizedAccess   = "unauthorized_access"
	EventCSRFTokenInvalid     = "csrf_token_invalid"
	EventInternalError        = "internal_error"
)

// ClientInfo identifies the remote client of a request.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// SecurityLogEntry is one recorded security event.
type SecurityLogEntry struct {
	ID        int64          `json:"id"`
	Level     LogLevel       `json:"level"`
	Event     string         `json:"event"`
	UserID    string         `json:"userId,omitempty"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const securityLogCapacity = 1000

// SecurityLog is an append-only, bounded, in-memory event journal. Entries
// are mirrored to the structured logger by severity. It is operational
// visibility, not a compliance trail: nothing survives a restart.
type SecurityLog struct {
	mu      sync.Mutex
	entries []SecurityLogEntry
	nextID  int64
	logger  *slog.Logger
}

// NewSecurityLog creates a security log mirroring to the given logger.
func NewSecurityLog(logger *slog.Logger) *SecurityLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityLog{nextID: 1, logger: logger}
}

// Record appends an event, assigning its id and timestamp. The journal keeps
// only the newest 1000 entries.
func (l *SecurityLog) Record(level LogLevel, event string, client ClientInfo, userID string, details map[string]any) {
	l.mu.Lock()
	entry := SecurityLogEntry{
		ID:        l.nextID,
		Level:     level,
		Event:     event,
		UserID:    userID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   details,
		Timestamp: time.Now(),
	}
	l.nextID++
	l.entries = append(l.entries, entry)
	if len(l.entries) > securityLogCapacity {
		l.entries = l.entries[len(l.entries)-securityLogCapacity:]
	}
	l.mu.Unlock()

	attrs := []any{"id", entry.ID, "ip", entry.IPAddress}
	if entry.UserID != "" {
		attrs = append(attrs, "user_id", entry.UserID)
	}
	if len(entry.Details) > 0 {
		attrs = append(attrs, "details", entry.Details)
	}

	switch level {
	case LevelCritical, LevelError:
		l.logger.Error(event, attrs...)
	case LevelWarning:
		l.logger.Warn(event, attrs...)
	default:
		l.logger.Info(event, attrs...)
	}
}

// Query returns up to limit entries newest-first, optionally filtered by
// level (empty level matches all).
func (l *SecurityLog) Query(limit int, level LogLevel) []SecurityLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]SecurityLogEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if level != "" && l.entries[i].Level != level {
			continue
		}
		result = append(result, l.entries[i])
	}
	return result
}

// Len reports the number of retained entries.
func (l *SecurityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
