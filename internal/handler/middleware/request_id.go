// Package middleware holds the gin cross-cutting concerns every route
// passes through: request-id propagation and AppError-to-HTTP mapping.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/logger"
)

const requestIDHeader = "X-Request-Id"
const maxRequestIDLen = 128

// RequestID echoes an inbound X-Request-Id header back on the response,
// discarding one that exceeds 128 characters and minting a fresh one when
// absent (spec.md §6 "x-request-id echo; discard a value over 128 chars").
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if len(reqID) > maxRequestIDLen {
			reqID = ""
		}
		if reqID == "" {
			reqID = idgen.New()
		}
		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), reqID))
		c.Next()
	}
}
