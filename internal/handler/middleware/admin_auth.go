package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
)

// AdminAuth gates administrative routes (rag_policy writes, telemetry
// ingest) behind an HS256 JWT signed with the configured admin secret,
// following the same bearer-token shape as the voice relay's token check
// (internal/handler/voice.go). When secret is empty the middleware is a
// no-op, so a deployment that never sets admin_jwt_secret keeps today's
// open behavior rather than silently locking itself out.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			c.Error(apperrors.NewForbiddenError("missing admin bearer token"))
			c.Abort()
			return
		}
		token := strings.TrimPrefix(authz, "Bearer ")

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperrors.NewForbiddenError("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			c.Error(apperrors.NewForbiddenError("invalid admin token"))
			c.Abort()
			return
		}
		c.Next()
	}
}
