package middleware

import (
	"net/http"
	"strings"

	"support-chat/internal/domain/user"
	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"
	"support-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

func AuthMiddleware(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := service.Authenticate(extractBearer(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			return
		}

		ctx := services.WithPrincipal(c.Request.Context(), principal)
		ctx = logger.WithUserID(ctx, principal.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole lets the request through only when the principal holds one of
// roles. It must run after AuthMiddleware.
func RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := services.PrincipalFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			return
		}
		for _, r := range roles {
			if principal.HasRole(r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, httpdto.NewErrorResponse("insufficient role", httpdto.CodeForbidden))
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
