package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ClientVersionHeader carries the caller's last-known updatedAt timestamp
// for optimistic-concurrency protection. Absence of the header disables the
// check for that call.
const ClientVersionHeader = "X-Client-Version"

// ClientVersionMiddleware parses the version header into the request
// context. A malformed timestamp is rejected up front rather than silently
// losing the caller's protection.
func ClientVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ClientVersionHeader)
		if raw == "" {
			c.Next()
			return
		}

		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Invalid " + ClientVersionHeader + " header, expected RFC3339 timestamp",
			})
			c.Abort()
			return
		}

		c.Set("client_version", ts)
		c.Next()
	}
}

// ClientVersion returns the parsed version timestamp, or nil for legacy
// callers that did not send the header.
func ClientVersion(c *gin.Context) *time.Time {
	if v, exists := c.Get("client_version"); exists {
		if ts, ok := v.(time.Time); ok {
			return &ts
		}
	}
	return nil
}
