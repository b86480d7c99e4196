package httpdto

// SendMessageRequest is used for POST /messages
type SendMessageRequest struct {
	ReceiverID     string `json:"receiver_id" binding:"required,uuid"`
	ConversationID string `json:"conversation_id,omitempty" binding:"omitempty,uuid"`
	Text           string `json:"text" binding:"required"`
}

type SendMessageResponse struct {
	Message             any    `json:"message"`
	ConversationID      string `json:"conversation_id"`
	ConversationCreated bool   `json:"conversation_created"`
}

// PageQuery binds ?page=&limit= for list endpoints.
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}
