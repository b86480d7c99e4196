package httpdto

// SupportConversationRequest is used for POST /conversations/support. Without
// an admin id the server picks one.
type SupportConversationRequest struct {
	AdminID string `json:"admin_id,omitempty" binding:"omitempty,uuid"`
}
