// Package middleware provides HTTP middleware for the auth service.
package middleware

import (
	"net/http"
	"strings"

	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/gin-gonic/gin"
)

// Context keys set by the session middleware.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// RequireSession validates the bearer session token and stores the caller's
// identity on the request context. A reset token is rejected here even if
// cryptographically valid; it authorizes nothing but a password update.
func RequireSession(tokens service.TokenService, secLog *service.SecurityLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			abortUnauthorized(c, secLog, "missing_bearer_token")
			return
		}

		claims, err := tokens.Verify(token, service.PurposeSession)
		if err != nil {
			abortUnauthorized(c, secLog, "invalid_session_token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, string(claims.Role))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, secLog *service.SecurityLog, reason string) {
	secLog.Record(service.LevelWarning, service.EventUnauthorizedAccess, service.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}, "", map[string]any{"reason": reason, "path": c.FullPath()})

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"payload": nil,
		"message": "Authentication required. Please log in again.",
	})
}

func extractBearerToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if parts := strings.Split(bearerToken, " "); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
