package middleware

import (
	"net/http"

	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/gin-gonic/gin"
)

// CSRFCookieName is the double-submit cookie. It is deliberately not
// HttpOnly so the client can echo it back in the header.
const (
	CSRFCookieName = "csrfToken"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF enforces the double-submit pattern on state-changing methods: the
// X-CSRF-Token header must match the csrfToken cookie and pass the guard's
// signature and age checks. Safe methods pass through.
func CSRF(guard *service.CSRFGuard, secLog *service.SecurityLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}

		headerToken := c.GetHeader(CSRFHeaderName)
		cookieToken, err := c.Cookie(CSRFCookieName)
		if err != nil || headerToken == "" || headerToken != cookieToken || !guard.Verify(headerToken) {
			secLog.Record(service.LevelWarning, service.EventCSRFTokenInvalid, service.ClientInfo{
				IPAddress: c.ClientIP(),
				UserAgent: c.GetHeader("User-Agent"),
			}, "", map[string]any{"path": c.FullPath()})

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"payload": nil,
				"message": "CSRF validation failed.",
			})
			return
		}

		c.Next()
	}
}
