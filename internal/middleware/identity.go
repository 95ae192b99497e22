package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the caller's platform user ID. The transport in front
// of the API is trusted to set it.
const HeaderUserID = "X-User-ID"

const userIDKey = "exchange.userID"

// UserIdentity reads the caller's user ID from X-User-ID and stores it on the
// gin context. Requests without a positive numeric ID are rejected with 401.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			abortUnauthorized(c, "missing or invalid "+HeaderUserID+" header")
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// UserID returns the caller ID set by UserIdentity, or 0.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
