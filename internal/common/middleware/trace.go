// Package middleware holds shared gin middleware.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader = "X-Trace-Id"
	userIDHeader  = "X-User-Id"

	traceIDContextKey = "trace_id"
	userIDContextKey  = "user_id"
)

// TraceContext ensures every request carries a trace id, propagated through
// the gin context, the request context, and the response headers.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(traceIDContextKey, traceID)
		ctx := context.WithValue(c.Request.Context(), traceIDContextKey, traceID)
		c.Writer.Header().Set(traceIDHeader, traceID)

		if userID := strings.TrimSpace(c.GetHeader(userIDHeader)); userID != "" {
			c.Set(userIDContextKey, userID)
			ctx = context.WithValue(ctx, userIDContextKey, userID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
