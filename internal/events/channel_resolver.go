package events

import "strings"

func ConversationChannel(conversationID string) string {
	return ChannelPrefixConversation + conversationID
}

func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}

func PresenceChannel(userID string) string {
	return ChannelPrefixPresence + userID
}

// ResolveChannel routes an envelope to its pub/sub channel by aggregate.
func ResolveChannel(env Envelope) string {
	switch env.AggregateType {
	case AggregateTypeMessage, AggregateTypeTyping, AggregateTypeConversation:
		return ConversationChannel(env.AggregateID)
	case AggregateTypePresence:
		return PresenceChannel(env.AggregateID)
	default:
		return UserChannel(env.AggregateID)
	}
}

// IsPresenceChannel reports whether channel carries presence changes, which
// every connected client receives.
func IsPresenceChannel(channel string) bool {
	return strings.HasPrefix(channel, ChannelPrefixPresence)
}

// ConversationIDFromChannel returns the id part of a conversation channel.
func ConversationIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixConversation) {
		return "", false
	}
	return strings.TrimPrefix(channel, ChannelPrefixConversation), true
}
