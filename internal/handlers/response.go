// Package handlers contains HTTP request handlers for the auth service.
package handlers

import (
	"strconv"

	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform envelope for every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Payload any    `json:"payload"`
	Message string `json:"message"`
}

// Caller-facing messages. Login failures share one string so the two causes
// produce byte-identical bodies; the recovery path does the same.
const (
	MsgInvalidCredentials = "Incorrect email or password."
	MsgInvalidAnswer      = "The secret answer is incorrect."
	MsgInvalidResetToken  = "The password reset token is invalid or expired. Please verify your identity again."
	MsgUnauthorized       = "Authentication required. Please log in again."
	MsgNotFound           = "The requested resource was not found."
	MsgRateLimited        = "Too many requests. Please try again later."
	MsgInternal           = "An unexpected server error occurred."
	MsgBadRequest         = "The request body is malformed."
)

func respond(c *gin.Context, status int, payload any, message string) {
	c.JSON(status, APIResponse{Success: true, Payload: payload, Message: message})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{Success: false, Payload: nil, Message: message})
}

// respondRateLimited writes the 429 response with the standard retry headers.
func respondRateLimited(c *gin.Context, result service.LimitResult) {
	retryAfter := int64(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
	respondError(c, 429, MsgRateLimited)
}
