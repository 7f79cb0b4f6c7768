package services

import (
	"encoding/json"
	"fmt"
	"time"

	"ballot-engine/internal/domain/outbox"

	"github.com/google/uuid"
)

func newOutboxEvent(aggregateType, eventType string, aggregateID uuid.UUID, payload interface{}, now time.Time) (*outbox.OutboxEvent, error) {
	data := []byte("{}")
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
		}
		data = raw
	}
	return outbox.New(aggregateType, eventType, aggregateID.String(), data, now), nil
}
