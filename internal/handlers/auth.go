package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/akaumigame6/web-token-sec/internal/metrics"
	"github.com/akaumigame6/web-token-sec/internal/middleware"
	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	authService service.AuthService
	tokens      service.TokenService
	secLog      *service.SecurityLog
	metrics     *metrics.Metrics
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(authService service.AuthService, tokens service.TokenService, secLog *service.SecurityLog, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokens:      tokens,
		secLog:      secLog,
		metrics:     m,
	}
}

// LoginRequest represents the login request payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// VerifyAnswerRequest represents the session-authenticated answer payload.
type VerifyAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// VerifyAnswerByEmailRequest represents the anonymous recovery payload.
type VerifyAnswerByEmailRequest struct {
	Email        string `json:"email" binding:"required"`
	SecretAnswer string `json:"secretAnswer" binding:"required"`
}

// UpdatePasswordRequest represents the password update payload.
type UpdatePasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
}

// UpdateSecretQuestionRequest represents the secret-question update payload.
type UpdateSecretQuestionRequest struct {
	SecretQuestionID int64  `json:"secretQuestionId" binding:"required"`
	SecretAnswer     string `json:"secretAnswer" binding:"required"`
	CurrentPassword  string `json:"currentPassword" binding:"required"`
}

// ResetTokenPayload wraps a freshly minted password-reset token.
type ResetTokenPayload struct {
	ResetToken string `json:"resetToken"`
}

// Login godoc
// @Summary User login
// @Description Authenticate by email and password, returning a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, MsgBadRequest)
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		var rlErr *service.RateLimitError
		switch {
		case errors.As(err, &rlErr):
			h.metrics.RateLimited.WithLabelValues("login").Inc()
			respondRateLimited(c, rlErr.Result)
		case errors.Is(err, service.ErrInvalidCredentials):
			h.metrics.LoginAttempts.WithLabelValues("failure").Inc()
			respondError(c, http.StatusUnauthorized, MsgInvalidCredentials)
		default:
			h.internalError(c, err)
		}
		return
	}

	h.metrics.LoginAttempts.WithLabelValues("success").Inc()
	respond(c, http.StatusOK, token, "")
}

// ListSecretQuestions godoc
// @Summary Secret question catalog
// @Description Return all secret questions ordered by id
// @Tags auth
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api/secret-questions [get]
func (h *AuthHandler) ListSecretQuestions(c *gin.Context) {
	questions, err := h.authService.ListSecretQuestions(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}
	respond(c, http.StatusOK, questions, "")
}

// UserSecretQuestion godoc
// @Summary Caller's secret question
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Router /api/user-secret-question [get]
func (h *AuthHandler) UserSecretQuestion(c *gin.Context) {
	question, err := h.authService.SecretQuestion(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, question, "")
}

// UserSecretQuestionByEmail godoc
// @Summary Secret question lookup by email
// @Description Anonymous recovery entry point
// @Tags auth
// @Produce json
// @Param email query string true "Account email"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/user-secret-question-by-email [get]
func (h *AuthHandler) UserSecretQuestionByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		respondError(c, http.StatusBadRequest, "The email query parameter is required.")
		return
	}

	question, err := h.authService.SecretQuestionByEmail(c.Request.Context(), email, clientInfo(c))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, question, "")
}

// VerifySecretAnswer godoc
// @Summary Verify secret answer (session path)
// @Description Elevate a session into a 15-minute password-reset capability
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body VerifyAnswerRequest true "Secret answer"
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Router /api/verify-secret-answer [post]
func (h *AuthHandler) VerifySecretAnswer(c *gin.Context) {
	var req VerifyAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, MsgBadRequest)
		return
	}

	token, err := h.authService.VerifySecretAnswer(c.Request.Context(), c.GetString(middleware.ContextUserID), req.Answer, clientInfo(c))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, ResetTokenPayload{ResetToken: token}, "Identity verified.")
}

// VerifySecretAnswerByEmail godoc
// @Summary Verify secret answer (anonymous recovery path)
// @Description Exchange email + secret answer for a 10-minute reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyAnswerByEmailRequest true "Email and secret answer"
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/verify-secret-answer-by-email [post]
func (h *AuthHandler) VerifySecretAnswerByEmail(c *gin.Context) {
	var req VerifyAnswerByEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, MsgBadRequest)
		return
	}

	token, err := h.authService.VerifySecretAnswerByEmail(c.Request.Context(), req.Email, req.SecretAnswer, clientInfo(c))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, ResetTokenPayload{ResetToken: token}, "Identity verified.")
}

// UpdatePassword godoc
// @Summary Update password
// @Description Authorized by a reset token (X-Reset-Token header, checked first) or a session bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body UpdatePasswordRequest true "New password"
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Router /api/update-password [post]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	// A reset token always takes priority when present; it is never combined
	// with the session check.
	var userID string
	if resetToken := c.GetHeader("X-Reset-Token"); resetToken != "" {
		claims, err := h.tokens.Verify(resetToken, service.PurposeReset)
		if err != nil {
			h.secLog.Record(service.LevelWarning, service.EventUnauthorizedAccess, clientInfo(c), "", map[string]any{"reason": "invalid_reset_token"})
			respondError(c, http.StatusUnauthorized, MsgInvalidResetToken)
			return
		}
		userID = claims.UserID
	} else {
		claims, err := h.tokens.Verify(extractBearerToken(c), service.PurposeSession)
		if err != nil {
			h.secLog.Record(service.LevelWarning, service.EventUnauthorizedAccess, clientInfo(c), "", map[string]any{"reason": "invalid_session_token"})
			respondError(c, http.StatusUnauthorized, MsgUnauthorized)
			return
		}
		userID = claims.UserID
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, MsgBadRequest)
		return
	}

	if err := h.authService.UpdatePassword(c.Request.Context(), userID, req.NewPassword, clientInfo(c)); err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.metrics.PasswordResets.Inc()
	respond(c, http.StatusOK, nil, "Password updated successfully.")
}

// UpdateSecretQuestion godoc
// @Summary Update secret question
// @Description Requires a session token and re-verification of the current password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body UpdateSecretQuestionRequest true "New question, answer and current password"
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Router /api/update-secret-question [put]
func (h *AuthHandler) UpdateSecretQuestion(c *gin.Context) {
	var req UpdateSecretQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, MsgBadRequest)
		return
	}

	err := h.authService.UpdateSecretQuestion(
		c.Request.Context(),
		c.GetString(middleware.ContextUserID),
		req.SecretQuestionID,
		req.SecretAnswer,
		req.CurrentPassword,
		clientInfo(c),
	)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Secret question updated successfully.")
}

// respondServiceError translates service errors into the envelope. Business
// failures map to deliberately generic messages; everything else is an
// internal error whose detail stays server-side.
func (h *AuthHandler) respondServiceError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	var rlErr *service.RateLimitError

	switch {
	case errors.As(err, &rlErr):
		h.metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
		respondRateLimited(c, rlErr.Result)
	case errors.As(err, &vErr):
		respondError(c, http.StatusBadRequest, "Invalid input: "+vErr.Field+" "+vErr.Message+".")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, MsgInvalidCredentials)
	case errors.Is(err, service.ErrInvalidAnswer):
		respondError(c, http.StatusUnauthorized, MsgInvalidAnswer)
	case errors.Is(err, service.ErrInvalidToken):
		respondError(c, http.StatusUnauthorized, MsgInvalidResetToken)
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, MsgNotFound)
	default:
		h.internalError(c, err)
	}
}

func (h *AuthHandler) internalError(c *gin.Context, err error) {
	h.secLog.Record(service.LevelError, service.EventInternalError, clientInfo(c), "", map[string]any{"error": err.Error()})
	respondError(c, http.StatusInternalServerError, MsgInternal)
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

func extractBearerToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if parts := strings.Split(bearerToken, " "); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
