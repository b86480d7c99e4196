package handler

import (
	"net/http"

	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	p, ok := principal(c)
	if !ok {
		return
	}

	res, err := h.service.Send(c.Request.Context(), p, services.SendInput{
		ReceiverID:     req.ReceiverID,
		ConversationID: req.ConversationID,
		Text:           req.Text,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse("message sent", httpdto.SendMessageResponse{
		Message:             res.Message,
		ConversationID:      res.Conversation.ID,
		ConversationCreated: res.ConversationCreated,
	}))
}

func (h *MessageHandler) Page(c *gin.Context) {
	var q httpdto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	p, ok := principal(c)
	if !ok {
		return
	}

	page, err := h.service.Page(c.Request.Context(), p.ID, c.Param("conversationId"), q.Page, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse("messages", page))
}
