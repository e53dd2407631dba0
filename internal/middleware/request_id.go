package middleware

import (
	"github.com/gin-gonic/gin"

	"bybench/internal/ids"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates the caller's id or mints a sortable one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = ids.NewSortable()
		}

		c.Set(requestIDHeader, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()
	}
}
