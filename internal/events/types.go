package events

// Realtime event types sent to websocket clients.
const (
	EventTypeAuthenticated     = "authenticated"
	EventTypeAuthError         = "auth_error"
	EventTypeError             = "error"
	EventTypePong              = "pong"
	EventTypeNewMessage        = "new_message"
	EventTypeUserTyping        = "user_typing"
	EventTypeUserStopTyping    = "user_stop_typing"
	EventTypeUserStatusChanged = "user_status_changed"
	EventTypeOnlineUsers       = "get_online_users"
	EventTypeJoined            = "joined_conversation"
	EventTypeLeft              = "left_conversation"
)

// Integration event types published to the durable broker.
const (
	EventTypeMessageCreated      = "message.created"
	EventTypeConversationCreated = "conversation.created"
)

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeTyping       = "typing"
	AggregateTypePresence     = "presence"
	AggregateTypeConversation = "conversation"
	AggregateTypeSession      = "session"
)

// Channel prefixes shared by redis pub/sub and the websocket hub.
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixPresence     = "channel:presence:"
	ChannelPrefixUser         = "channel:user:"
	ChannelPattern            = "channel:*"
)
