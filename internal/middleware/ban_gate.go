package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BanChecker reports whether a user is banned.
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// BanGate rejects requests from banned callers with 403 before they reach a
// handler. It must run after UserIdentity. Lookup errors are logged and the
// request is let through.
func BanGate(checker BanChecker, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if checker == nil {
			c.Next()
			return
		}

		userID := UserID(c)
		banned, err := checker.IsBanned(c.Request.Context(), userID)
		if err != nil {
			logger.Warn("ban lookup failed",
				zap.Int64("userId", userID),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if banned {
			logger.Debug("request from banned user rejected",
				zap.Int64("userId", userID),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status":    http.StatusForbidden,
				"error":     "Forbidden",
				"message":   "user is banned",
				"reason":    "banned",
				"timestamp": time.Now().Format(time.RFC3339),
				"path":      c.Request.URL.Path,
			})
			return
		}
		c.Next()
	}
}
