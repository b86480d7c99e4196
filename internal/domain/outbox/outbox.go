package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Event is an integration event written in the same transaction as the change
// it describes and relayed to the broker afterwards. Payload holds the encoded
// envelope exactly as it will be published.
type Event struct {
	ID            uuid.UUID `gorm:"primaryKey;size:36"`
	EventType     string    `gorm:"size:50;not null"`
	AggregateType string    `gorm:"size:50;not null"`
	AggregateID   string    `gorm:"size:36;not null"`
	Channel       string    `gorm:"size:120;not null"`
	Payload       []byte    `gorm:"not null"`
	Status        Status    `gorm:"size:20;not null;default:'PENDING';index:idx_outbox_due,priority:1"`
	RetryCount    int       `gorm:"not null;default:0"`
	Error         string    `gorm:"type:text"`
	NextAttemptAt time.Time `gorm:"not null;index:idx_outbox_due,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	ProcessedAt   *time.Time
}

// TableName returns the database table name
func (Event) TableName() string {
	return "outbox_events"
}

// New builds a pending event that is due immediately.
func New(eventType, aggregateType, aggregateID, channel string, payload []byte) *Event {
	now := time.Now().UTC()
	return &Event{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Channel:       channel,
		Payload:       payload,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
