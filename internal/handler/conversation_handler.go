package handler

import (
	"context"
	"net/http"

	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// ListForAdmin is mounted behind RequireRole(admin).
func (h *ConversationHandler) ListForAdmin(c *gin.Context) {
	h.list(c, h.service.ListForAdmin)
}

func (h *ConversationHandler) ListForUser(c *gin.Context) {
	h.list(c, h.service.ListForUser)
}

func (h *ConversationHandler) list(c *gin.Context, fetch func(ctx context.Context, id uuid.UUID, page, limit int) (services.ConversationList, error)) {
	var q httpdto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := fetch(c.Request.Context(), p.ID, q.Page, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("conversations", list))
}

// Support returns the caller's support conversation, opening one with the
// requested or first available admin when none exists.
func (h *ConversationHandler) Support(c *gin.Context) {
	var req httpdto.SupportConversationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}

	var adminID *uuid.UUID
	if req.AdminID != "" {
		id, err := uuid.Parse(req.AdminID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewValidationResponse("validation failed", map[string]string{"admin_id": "must be a valid id"}))
			return
		}
		adminID = &id
	}

	view, created, err := h.service.GetOrCreateSupport(c.Request.Context(), p.ID, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse("conversation", view))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), p.ID, c.Param("conversationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("conversation", view))
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), p.ID, c.Param("conversationId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any]("conversation marked read", nil))
}
