package handler

import (
	"net/http"

	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"
	"support-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefreshCookie is the cookie carrying "<session id>.<refresh token>".
const RefreshCookie = "jwt"

type CookieConfig struct {
	Secure bool
	MaxAge int
}

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	service *services.AuthService
	cookie  CookieConfig
}

func NewAuthHandler(service *services.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{service: service, cookie: cookie}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req httpdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	info, err := h.service.Register(c.Request.Context(), services.RegisterInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse("user registered", info))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	res, err := h.service.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken, h.cookie.MaxAge)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("logged in", tokenResponse(res)))
}

// Refresh reads the refresh value from the jwt cookie, falling back to the
// request body for clients without a cookie jar.
func (h *AuthHandler) Refresh(c *gin.Context) {
	value := h.refreshValue(c)
	if value == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing refresh token", httpdto.CodeUnauthorized))
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), value)
	if err != nil {
		h.setRefreshCookie(c, "", -1)
		writeError(c, err)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken, h.cookie.MaxAge)
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse("token refreshed", tokenResponse(res)))
}

// Logout always succeeds and always clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if value := h.refreshValue(c); value != "" {
		if err := h.service.Logout(c.Request.Context(), value); err != nil {
			logger.GetGlobalLogger().Warn(c.Request.Context(), "logout revoke failed", zap.Error(err))
		}
	}
	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any]("logged out", nil))
}

func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	info, err := h.service.Me(c.Request.Context(), p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("current user", info))
}

func (h *AuthHandler) refreshValue(c *gin.Context) string {
	if value, err := c.Cookie(RefreshCookie); err == nil && value != "" {
		return value
	}
	var req httpdto.RefreshRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(RefreshCookie, value, maxAge, "/", "", h.cookie.Secure, true)
}

func tokenResponse(res services.AuthResponse) httpdto.TokenResponse {
	return httpdto.TokenResponse{
		AccessToken:        res.AccessToken,
		ExpiresIn:          res.ExpiresIn,
		Roles:              res.Roles,
		User:               res.User,
		UserID:             res.UserID,
		LastConversationID: res.LastConversationID,
	}
}
