package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"support-chat/internal/events"
	chatredis "support-chat/internal/redis"
	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame types a client may send.
const (
	FrameAuthenticate      = "authenticate"
	FrameJoinConversation  = "join_conversation"
	FrameLeaveConversation = "leave_conversation"
	FrameSendMessage       = "send_message"
	FrameTyping            = "typing"
	FrameStopTyping        = "stop_typing"
	FrameGetOnlineUsers    = "get_online_users"
	FramePing              = "ping"
)

// InboundFrame is the JSON object every client frame carries.
type InboundFrame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	ReceiverID     string `json:"receiver_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type AuthenticatedPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Roles       []int  `json:"roles"`
	ClientID    string `json:"client_id"`
}

type OnlineUsersPayload struct {
	UserIDs []string `json:"user_ids"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

// MessageLimiter throttles send_message frames per user.
type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*chatredis.RateLimitResult, error)
}

type HandlerDeps struct {
	Auth       *services.AuthService
	Messages   *services.MessageService
	Presence   *services.PresenceService
	Publisher  *services.EventPublisher
	Authorizer *ChannelAuthorizer
	Hub        *Hub
	Logger     *Logger
	Limiter    MessageLimiter

	// BaseContext bounds every connection; cancelling it closes them all.
	BaseContext context.Context
	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string
}

type Handler struct {
	deps     HandlerDeps
	upgrader websocket.Upgrader
}

func NewHandler(deps HandlerDeps) *Handler {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = NewLogger(nil)
	}
	h := &Handler{deps: deps}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.deps.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.deps.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Connect upgrades GET /v1/ws. A ?token= query authenticates up front;
// otherwise the client must send an authenticate frame.
func (h *Handler) Connect(c *gin.Context) {
	var principal *services.Principal
	if token := c.Query("token"); token != "" {
		p, err := h.deps.Auth.Authenticate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			return
		}
		principal = &p
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.deps.Logger.Warn("upgrade_failed", nil, zap.Error(err))
		return
	}

	client := NewClient(conn)
	ctx := h.deps.BaseContext
	h.deps.Hub.Register(client)
	go client.WriteLoop(ctx)
	h.deps.Logger.Info("connected", client)

	if principal != nil {
		h.authenticate(ctx, client, *principal)
	}

	h.readLoop(ctx, client)

	if p, ok := client.Principal(); ok {
		if err := h.deps.Presence.Offline(ctx, p.ID, client.ID); err != nil {
			h.deps.Logger.Error("presence_offline", client, err)
		}
	}
	h.deps.Hub.Unregister(client)
	h.deps.Logger.Info("disconnected", client)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.Conn
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.deps.Logger.Warn("read_failed", client, zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(client, "invalid frame", httpdto.CodeInvalidRequest)
			continue
		}
		if keepOpen := h.dispatch(ctx, client, frame); !keepOpen {
			return
		}
	}
}

// dispatch handles one frame and reports whether the connection stays open.
func (h *Handler) dispatch(ctx context.Context, client *Client, frame InboundFrame) bool {
	switch frame.Type {
	case FramePing:
		h.send(client, events.EventTypePong, events.AggregateTypeSession, client.ID, struct{}{})
		return true
	case FrameAuthenticate:
		return h.handleAuthenticate(ctx, client, frame)
	}

	p, ok := client.Principal()
	if !ok {
		h.send(client, events.EventTypeAuthError, events.AggregateTypeSession, client.ID,
			ErrorPayload{Message: "authentication required", Code: httpdto.CodeUnauthorized})
		return true
	}

	switch frame.Type {
	case FrameJoinConversation:
		h.handleJoin(ctx, client, p, frame)
	case FrameLeaveConversation:
		h.handleLeave(client, frame)
	case FrameSendMessage:
		h.handleSend(ctx, client, p, frame)
	case FrameTyping, FrameStopTyping:
		h.handleTyping(ctx, client, p, frame)
	case FrameGetOnlineUsers:
		h.sendOnlineUsers(ctx, client)
	default:
		h.sendError(client, "unknown frame type", httpdto.CodeInvalidRequest)
	}
	return true
}

func (h *Handler) handleAuthenticate(ctx context.Context, client *Client, frame InboundFrame) bool {
	if client.Authenticated() {
		h.sendError(client, "already authenticated", httpdto.CodeInvalidRequest)
		return true
	}
	p, err := h.deps.Auth.Authenticate(frame.Token)
	if err != nil {
		h.send(client, events.EventTypeAuthError, events.AggregateTypeSession, client.ID,
			ErrorPayload{Message: "authentication failed", Code: httpdto.CodeUnauthorized})
		h.deps.Logger.Warn("auth_failed", client)
		return false
	}
	h.authenticate(ctx, client, p)
	return true
}

func (h *Handler) authenticate(ctx context.Context, client *Client, p services.Principal) {
	client.setPrincipal(p)
	h.deps.Hub.Subscribe(client, events.UserChannel(p.ID.String()), nil)

	roles := make([]int, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, int(r))
	}
	h.send(client, events.EventTypeAuthenticated, events.AggregateTypeSession, client.ID, AuthenticatedPayload{
		UserID:      p.ID.String(),
		DisplayName: p.DisplayName,
		Roles:       roles,
		ClientID:    client.ID,
	})

	if err := h.deps.Presence.Online(ctx, p.ID, client.ID); err != nil {
		h.deps.Logger.Error("presence_online", client, err)
	}
	h.sendOnlineUsers(ctx, client)
	h.deps.Logger.Info("authenticated", client)
}

func (h *Handler) handleJoin(ctx context.Context, client *Client, p services.Principal, frame InboundFrame) {
	channel, ok := h.conversationChannel(client, frame)
	if !ok {
		return
	}
	allowed, err := h.deps.Authorizer.CanSubscribe(ctx, p.ID.String(), channel)
	if err != nil {
		h.deps.Logger.Error("join_check", client, err, zap.String("channel", channel))
		h.sendError(client, "internal error", httpdto.CodeInternal)
		return
	}
	if !allowed {
		h.sendError(client, "conversation not found or access denied", httpdto.CodeForbidden)
		return
	}
	h.deps.Hub.Subscribe(client, channel, h.encode(events.EventTypeJoined, events.AggregateTypeConversation,
		frame.ConversationID, ConversationPayload{ConversationID: frame.ConversationID}))
}

func (h *Handler) handleLeave(client *Client, frame InboundFrame) {
	channel, ok := h.conversationChannel(client, frame)
	if !ok {
		return
	}
	h.deps.Hub.Unsubscribe(client, channel, h.encode(events.EventTypeLeft, events.AggregateTypeConversation,
		frame.ConversationID, ConversationPayload{ConversationID: frame.ConversationID}))
}

func (h *Handler) handleSend(ctx context.Context, client *Client, p services.Principal, frame InboundFrame) {
	if h.deps.Limiter != nil {
		res, err := h.deps.Limiter.AllowMessage(ctx, p.ID.String())
		if err != nil {
			h.deps.Logger.Warn("rate_limit_check", client, zap.Error(err))
		} else if !res.Allowed {
			h.sendError(client, "too many messages", httpdto.CodeRateLimited)
			return
		}
	}

	res, err := h.deps.Messages.Send(ctx, p, services.SendInput{
		ReceiverID:     frame.ReceiverID,
		ConversationID: frame.ConversationID,
		Text:           frame.Text,
	})
	if err != nil {
		h.sendServiceError(client, err)
		return
	}

	// A sender that has not joined the conversation yet still sees its own
	// message, and listens for the replies from now on.
	channel := events.ConversationChannel(res.Conversation.ID)
	if !client.IsSubscribed(channel) {
		h.send(client, events.EventTypeNewMessage, events.AggregateTypeMessage, res.Conversation.ID, services.NewMessagePayload{
			Message:             res.Message,
			ConversationID:      res.Conversation.ID,
			ConversationCreated: res.ConversationCreated,
		})
		h.deps.Hub.Subscribe(client, channel, nil)
	}
}

func (h *Handler) handleTyping(ctx context.Context, client *Client, p services.Principal, frame InboundFrame) {
	channel, ok := h.conversationChannel(client, frame)
	if !ok {
		return
	}
	if !client.IsSubscribed(channel) {
		h.sendError(client, "join the conversation first", httpdto.CodeForbidden)
		return
	}
	h.deps.Publisher.Typing(ctx, frame.ConversationID, p.ID.String(), p.DisplayName, frame.Type == FrameTyping)
}

func (h *Handler) sendOnlineUsers(ctx context.Context, client *Client) {
	ids, err := h.deps.Presence.OnlineUsers(ctx)
	if err != nil {
		h.deps.Logger.Error("online_users", client, err)
		h.sendError(client, "internal error", httpdto.CodeInternal)
		return
	}
	h.send(client, events.EventTypeOnlineUsers, events.AggregateTypePresence, client.ID, OnlineUsersPayload{UserIDs: ids})
}

func (h *Handler) conversationChannel(client *Client, frame InboundFrame) (string, bool) {
	if _, err := uuid.Parse(frame.ConversationID); err != nil {
		h.sendError(client, "conversation_id must be a valid id", httpdto.CodeInvalidRequest)
		return "", false
	}
	return events.ConversationChannel(frame.ConversationID), true
}

func (h *Handler) sendServiceError(client *Client, err error) {
	status := services.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.deps.Logger.Error("send_message", client, err)
		h.sendError(client, "internal error", httpdto.CodeInternal)
		return
	}
	h.sendError(client, err.Error(), httpdto.CodeForStatus(status))
}

func (h *Handler) sendError(client *Client, message, code string) {
	h.send(client, events.EventTypeError, events.AggregateTypeSession, client.ID, ErrorPayload{Message: message, Code: code})
}

func (h *Handler) send(client *Client, eventType, aggregateType, aggregateID string, payload interface{}) {
	if data := h.encode(eventType, aggregateType, aggregateID, payload); data != nil {
		if !client.SendMessage(data) {
			h.deps.Logger.Warn("send_buffer_full", client, zap.String("event_type", eventType))
		}
	}
}

func (h *Handler) encode(eventType, aggregateType, aggregateID string, payload interface{}) []byte {
	data, err := events.Encode(eventType, aggregateType, aggregateID, payload)
	if err != nil {
		h.deps.Logger.Error("encode", nil, err, zap.String("event_type", eventType))
		return nil
	}
	return data
}
