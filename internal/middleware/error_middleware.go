package middleware

import (
	"net/http"

	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"
	chat_errors "support-chat/pkg/errors"
	"support-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors attached with c.Error into the response
// envelope when the handler has not written a body itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)

		if status >= http.StatusInternalServerError {
			log := l
			if log == nil {
				log = logger.GetGlobalLogger()
			}
			log.Error(c.Request.Context(), "request failed", zap.Error(err))
			c.JSON(status, httpdto.NewErrorResponse("internal error", httpdto.CodeForStatus(status)))
			return
		}
		if fields := chat_errors.FieldsOf(err); fields != nil {
			c.JSON(status, httpdto.NewValidationResponse("validation failed", fields))
			return
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), httpdto.CodeForStatus(status)))
	}
}
