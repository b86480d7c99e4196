// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"errors"
	"io"
	"net/http"

	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"
	chat_errors "support-chat/pkg/errors"
	"support-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps a service error onto the response envelope. Server side
// failures are logged and reported as a generic internal error.
func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.GetGlobalLogger().Error(c.Request.Context(), "request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, httpdto.NewErrorResponse("internal error", httpdto.CodeForStatus(status)))
		return
	}
	if fields := chat_errors.FieldsOf(err); fields != nil {
		c.JSON(status, httpdto.NewValidationResponse("validation failed", fields))
		return
	}
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), httpdto.CodeForStatus(status)))
}

func writeBindError(c *gin.Context, err error) {
	if details, ok := httpdto.ValidationDetails(err); ok {
		c.JSON(http.StatusBadRequest, httpdto.NewValidationResponse("validation failed", details))
		return
	}
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", httpdto.CodeInvalidRequest))
}

// bindOptionalJSON is ShouldBindJSON that accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func principal(c *gin.Context) (services.Principal, bool) {
	p, ok := services.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
	}
	return p, ok
}
