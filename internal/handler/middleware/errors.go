package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/logger"
)

// ErrorHandler maps the last c.Error registered by a handler onto the
// status table in spec.md §7. Handlers call c.Error(err) and return
// without writing a response themselves; this is the only place that
// writes an error body.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			logger.ErrorWithFields(c.Request.Context(), appErr, map[string]interface{}{
				"kind": appErr.Kind,
			})
			c.JSON(appErr.Kind.HTTPStatus(), gin.H{
				"code":  string(appErr.Kind),
				"error": appErr.Message,
			})
			return
		}

		logger.Error(c.Request.Context(), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  string(apperrors.KindInternal),
			"error": "internal error",
		})
	}
}
