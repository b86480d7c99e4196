package message

import (
	"time"

	"github.com/google/uuid"
)

// Message represents the messages table. Rows are immutable once written.
type Message struct {
	ID             uuid.UUID `gorm:"primaryKey;size:36"`
	ConversationID uuid.UUID `gorm:"size:36;not null;index:idx_messages_conversation_created,priority:1"`
	SenderID       uuid.UUID `gorm:"size:36;not null;index"`
	ReceiverID     uuid.UUID `gorm:"size:36;not null;index"`
	Text           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2"`
}

// New builds a message with a time ordered id so equal timestamps still sort
// by insertion.
func New(conversationID, senderID, receiverID uuid.UUID, text string) (*Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
