package middleware

import (
	"context"
	"net/http"
	"strconv"

	"support-chat/internal/redis"
	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"
	"support-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RateLimiter interface {
	AllowAuth(ctx context.Context, ip string) (*redis.RateLimitResult, error)
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// AuthRateLimitMiddleware limits credential endpoints per client IP.
func AuthRateLimitMiddleware(limiter RateLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowAuth(c.Request.Context(), c.ClientIP())
		if !admit(c, result, err, l, "too many authentication attempts") {
			return
		}
		c.Next()
	}
}

// MessageRateLimitMiddleware limits message sends per user. It must run after
// AuthMiddleware.
func MessageRateLimitMiddleware(limiter RateLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}
		result, err := limiter.AllowMessage(c.Request.Context(), userID.String())
		if !admit(c, result, err, l, "message rate limit exceeded") {
			return
		}
		c.Next()
	}
}

// admit aborts the request when the limit is exhausted. A limiter failure
// lets the request through.
func admit(c *gin.Context, result *redis.RateLimitResult, err error, l *logger.Logger, message string) bool {
	if err != nil {
		if l == nil {
			l = logger.GetGlobalLogger()
		}
		l.Warn(c.Request.Context(), "rate limiter unavailable", zap.Error(err))
		return true
	}
	setRateLimitHeaders(c, result)
	if !result.Allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, httpdto.CodeRateLimited))
		return false
	}
	return true
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
