package handlers

import (
	"net/http"

	"github.com/akaumigame6/web-token-sec/internal/middleware"
	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/gin-gonic/gin"
)

// CSRFHandler issues double-submit CSRF tokens.
type CSRFHandler struct {
	guard  *service.CSRFGuard
	secure bool
}

// NewCSRFHandler creates a new CSRFHandler instance. secure controls the
// cookie's Secure flag (on in production).
func NewCSRFHandler(guard *service.CSRFGuard, secure bool) *CSRFHandler {
	return &CSRFHandler{guard: guard, secure: secure}
}

// CSRFTokenPayload wraps a freshly issued CSRF token.
type CSRFTokenPayload struct {
	CSRFToken string `json:"csrfToken"`
}

// Issue godoc
// @Summary Issue CSRF token
// @Description Returns a CSRF token and sets it as the csrfToken cookie (double-submit pattern)
// @Tags security
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api/csrf-token [get]
func (h *CSRFHandler) Issue(c *gin.Context) {
	token, err := h.guard.Issue()
	if err != nil {
		respondError(c, http.StatusInternalServerError, MsgInternal)
		return
	}

	// Not HttpOnly: the client must read it back into the X-CSRF-Token header.
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CSRFCookieName, token, 3600, "/", "", h.secure, false)

	respond(c, http.StatusOK, CSRFTokenPayload{CSRFToken: token}, "")
}
