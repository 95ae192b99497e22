// Package handler provides the HTTP handlers of the exchange API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotEligible), errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadySubmitted),
		errors.Is(err, service.ErrAlreadyResolved),
		errors.Is(err, service.ErrNoProofToReview),
		errors.Is(err, service.ErrVideoLimit):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the response for a failed service call. Internal errors
// are logged and their text is not exposed.
func handleError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		writeError(c, status, "An unexpected error occurred")
		return
	}

	_ = c.Error(err)
	resp := ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   err.Error(),
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	}
	if reason, ok := service.IneligibilityReason(err); ok {
		resp.Reason = string(reason)
	}
	c.JSON(status, resp)
}

func bindError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("Invalid request payload",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)
	writeError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error())
}

// idParam parses a positive int64 path parameter. It writes a 400 and returns
// false when the value is malformed.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
