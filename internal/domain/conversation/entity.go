package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table: the single thread between
// one user-side principal and one admin-side principal.
type Conversation struct {
	ID            uuid.UUID `gorm:"primaryKey;size:36"`
	UserID        uuid.UUID `gorm:"size:36;not null;index"`
	AdminID       uuid.UUID `gorm:"size:36;not null;index"`
	PairKey       string    `gorm:"size:73;not null;uniqueIndex"`
	LastMessage   string    `gorm:"type:text"`
	UnreadCount   int64     `gorm:"not null;default:0"`
	TotalMessages int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time `gorm:"index"`
}

// PairKey normalizes an unordered participant pair so {a, b} and {b, a} map to
// the same unique key.
func PairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}

// New builds a conversation with zeroed counters. userID must be the
// non-admin side and adminID the admin side.
func New(userID, adminID uuid.UUID, firstMessage string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:          uuid.New(),
		UserID:      userID,
		AdminID:     adminID,
		PairKey:     PairKey(userID, adminID),
		LastMessage: firstMessage,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (c Conversation) HasParticipant(id uuid.UUID) bool {
	return id != uuid.Nil && (c.UserID == id || c.AdminID == id)
}

// Other returns the participant that is not id.
func (c Conversation) Other(id uuid.UUID) uuid.UUID {
	if c.UserID == id {
		return c.AdminID
	}
	return c.UserID
}
