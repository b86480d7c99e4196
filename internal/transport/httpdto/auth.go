package httpdto

// RegisterRequest is used for POST /auth/register. Roles are not accepted.
type RegisterRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=30"`
	DisplayName string `json:"display_name,omitempty" binding:"omitempty,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

// LoginRequest is used for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest lets non-browser clients send the refresh value in the body
// instead of the jwt cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken        string `json:"access_token"`
	ExpiresIn          int64  `json:"expires_in"`
	Roles              []int  `json:"roles"`
	User               any    `json:"user"`
	UserID             string `json:"user_id,omitempty"`
	LastConversationID string `json:"last_conversation_id,omitempty"`
}
