package services

import (
	"context"
	"time"

	"support-chat/internal/domain/outbox"
	"support-chat/internal/events"
	"support-chat/pkg/logger"

	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// EventPublisher fans committed changes out to websocket subscribers and, when
// configured, to the integration broker. Delivery is best effort: failures are
// logged and never returned to the caller.
type EventPublisher struct {
	realtime    events.Publisher
	integration events.Publisher
	outbox      bool
	logger      *logger.Logger
}

func NewEventPublisher(realtime, integration events.Publisher, log *logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &EventPublisher{realtime: realtime, integration: integration, logger: log}
}

// NewOutboxEventPublisher publishes realtime events directly and leaves
// integration events to the transactional outbox written by MessageService.
func NewOutboxEventPublisher(realtime events.Publisher, log *logger.Logger) *EventPublisher {
	p := NewEventPublisher(realtime, nil, log)
	p.outbox = true
	return p
}

func (p *EventPublisher) UsesOutbox() bool {
	return p != nil && p.outbox
}

type NewMessagePayload struct {
	Message             MessageView `json:"message"`
	ConversationID      string      `json:"conversation_id"`
	ConversationCreated bool        `json:"conversation_created"`
}

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name,omitempty"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

func (p *EventPublisher) MessageCreated(ctx context.Context, msg MessageView, created bool) {
	if p == nil {
		return
	}
	payload := NewMessagePayload{Message: msg, ConversationID: msg.ConversationID, ConversationCreated: created}
	channel := events.ConversationChannel(msg.ConversationID)

	p.send(ctx, p.realtime, channel, events.EventTypeNewMessage, events.AggregateTypeMessage, msg.ConversationID, payload)
	for _, k := range integrationKinds(created) {
		p.send(ctx, p.integration, channel, k.eventType, k.aggregateType, msg.ConversationID, payload)
	}
}

type eventKind struct {
	eventType     string
	aggregateType string
}

func integrationKinds(created bool) []eventKind {
	kinds := []eventKind{{events.EventTypeMessageCreated, events.AggregateTypeMessage}}
	if created {
		kinds = append(kinds, eventKind{events.EventTypeConversationCreated, events.AggregateTypeConversation})
	}
	return kinds
}

// outboxEvents encodes the integration events for one appended message.
func outboxEvents(msg MessageView, created bool) ([]*outbox.Event, error) {
	payload := NewMessagePayload{Message: msg, ConversationID: msg.ConversationID, ConversationCreated: created}
	channel := events.ConversationChannel(msg.ConversationID)

	kinds := integrationKinds(created)
	out := make([]*outbox.Event, 0, len(kinds))
	for _, k := range kinds {
		data, err := events.Encode(k.eventType, k.aggregateType, msg.ConversationID, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, outbox.New(k.eventType, k.aggregateType, msg.ConversationID, channel, data))
	}
	return out, nil
}

func (p *EventPublisher) Typing(ctx context.Context, conversationID, userID, displayName string, typing bool) {
	if p == nil {
		return
	}
	eventType := events.EventTypeUserTyping
	if !typing {
		eventType = events.EventTypeUserStopTyping
	}
	payload := TypingPayload{ConversationID: conversationID, UserID: userID, DisplayName: displayName}
	p.send(ctx, p.realtime, events.ConversationChannel(conversationID), eventType, events.AggregateTypeTyping, conversationID, payload)
}

func (p *EventPublisher) PresenceChanged(ctx context.Context, userID string, online bool) {
	if p == nil {
		return
	}
	status := StatusOffline
	if online {
		status = StatusOnline
	}
	payload := PresencePayload{UserID: userID, Status: status}
	p.send(ctx, p.realtime, events.PresenceChannel(userID), events.EventTypeUserStatusChanged, events.AggregateTypePresence, userID, payload)
}

func (p *EventPublisher) send(ctx context.Context, target events.Publisher, channel, eventType, aggregateType, aggregateID string, payload interface{}) {
	if target == nil {
		return
	}
	data, err := events.Encode(eventType, aggregateType, aggregateID, payload)
	if err != nil {
		p.logger.Error(ctx, "encode event failed", zap.String("event", eventType), zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := target.Publish(pubCtx, channel, data); err != nil {
		p.logger.Warn(ctx, "publish event failed",
			zap.String("event", eventType),
			zap.String("channel", channel),
			zap.Error(err))
	}
}
