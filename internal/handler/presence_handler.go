package handler

import (
	"net/http"

	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	service *services.PresenceService
}

func NewPresenceHandler(service *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{service: service}
}

func (h *PresenceHandler) Online(c *gin.Context) {
	ids, err := h.service.OnlineUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("online users", httpdto.OnlineUsersResponse{UserIDs: ids}))
}
