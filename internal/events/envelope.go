package events

import (
	"encoding/json"
	"time"
)

// Envelope is the frame pushed to websocket clients and pub/sub subscribers.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, aggregateType, aggregateID string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// Encode builds an envelope and marshals it in one step.
func Encode(eventType, aggregateType, aggregateID string, payload interface{}) ([]byte, error) {
	env, err := NewEnvelope(eventType, aggregateType, aggregateID, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
