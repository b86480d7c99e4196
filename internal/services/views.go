package services

import (
	"time"

	"support-chat/internal/domain/conversation"
	"support-chat/internal/domain/message"
	"support-chat/internal/domain/user"
)

type UserInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Roles       []int  `json:"roles,omitempty"`
	IsOnline    bool   `json:"is_online"`
}

// SenderInfo is the public profile attached to delivered messages.
type SenderInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type MessageView struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	ReceiverID     string      `json:"receiver_id"`
	Text           string      `json:"text"`
	CreatedAt      time.Time   `json:"created_at"`
	Sender         *SenderInfo `json:"sender,omitempty"`
}

type ConversationView struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AdminID       string    `json:"admin_id"`
	LastMessage   string    `json:"last_message"`
	UnreadCount   int64     `json:"unread_count"`
	TotalMessages int64     `json:"total_messages"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Counterpart   *UserInfo `json:"counterpart,omitempty"`
}

func toUserInfo(u user.User) UserInfo {
	roles := u.Roles()
	codes := make([]int, 0, len(roles))
	for _, r := range roles {
		codes = append(codes, int(r))
	}
	return UserInfo{
		ID:          u.ID.String(),
		Name:        u.Name,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Roles:       codes,
		IsOnline:    u.IsOnline,
	}
}

func toSenderInfo(u user.User) *SenderInfo {
	return &SenderInfo{
		ID:          u.ID.String(),
		Name:        u.Name,
		DisplayName: u.DisplayName,
	}
}

func toMessageView(m message.Message, sender *SenderInfo) MessageView {
	return MessageView{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		ReceiverID:     m.ReceiverID.String(),
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		Sender:         sender,
	}
}

func toConversationView(c conversation.Conversation) ConversationView {
	return ConversationView{
		ID:            c.ID.String(),
		UserID:        c.UserID.String(),
		AdminID:       c.AdminID.String(),
		LastMessage:   c.LastMessage,
		UnreadCount:   c.UnreadCount,
		TotalMessages: c.TotalMessages,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
