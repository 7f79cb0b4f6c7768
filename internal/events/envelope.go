package events

import (
	"encoding/json"
	"fmt"
	"time"

	ballot_errors "ballot-engine/pkg/errors"
)

type Envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses a stream entry body.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("envelope: %v: %w", err, ballot_errors.ErrMalformedEvent)
	}
	if env.EventType == "" || env.AggregateID == "" {
		return Envelope{}, fmt.Errorf("envelope missing type or aggregate: %w", ballot_errors.ErrMalformedEvent)
	}
	return env, nil
}
