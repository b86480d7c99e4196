package websocket

import (
	"context"
	"strings"

	"support-chat/internal/events"

	"github.com/google/uuid"
)

type ParticipantChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

// ChannelAuthorizer decides which channels an authenticated user may listen on.
type ChannelAuthorizer struct {
	conversations ParticipantChecker
}

func NewChannelAuthorizer(conversations ParticipantChecker) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversations: conversations}
}

func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}

	switch {
	case channel == events.UserChannel(userID):
		return true, nil
	case events.IsPresenceChannel(channel):
		// presence is delivered to every client anyway
		return true, nil
	case strings.HasPrefix(channel, events.ChannelPrefixConversation):
		convIDStr, _ := events.ConversationIDFromChannel(channel)
		convID, err := uuid.Parse(convIDStr)
		if err != nil {
			return false, nil
		}
		return a.conversations.IsParticipant(ctx, convID, userUUID)
	default:
		return false, nil
	}
}
