package ballot

import (
	"encoding/json"
	"fmt"
	"time"

	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

// VoteEvent is the payload carried on the vote stream. It holds no participant identity.
type VoteEvent struct {
	PollID      uuid.UUID  `json:"poll_id"`
	CandidateID *uuid.UUID `json:"candidate_id,omitempty"`
	PartyID     *uuid.UUID `json:"party_id,omitempty"`
	OptionID    *uuid.UUID `json:"option_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// EventFromRecord builds the event for a committed ballot.
func EventFromRecord(r *Record) VoteEvent {
	ev := VoteEvent{PollID: r.PollID, Timestamp: r.CastAt}
	if r.CandidateID.Valid {
		id := r.CandidateID.UUID
		ev.CandidateID = &id
	}
	if r.PartyID.Valid {
		id := r.PartyID.UUID
		ev.PartyID = &id
	}
	if r.OptionID.Valid {
		id := r.OptionID.UUID
		ev.OptionID = &id
	}
	return ev
}

// Key resolves the aggregation key: candidate, then party, then option.
func (e VoteEvent) Key() (string, bool) {
	switch {
	case e.CandidateID != nil:
		return e.CandidateID.String(), true
	case e.PartyID != nil:
		return e.PartyID.String(), true
	case e.OptionID != nil:
		return e.OptionID.String(), true
	}
	return "", false
}

func (e VoteEvent) Validate() error {
	if e.PollID == uuid.Nil {
		return fmt.Errorf("missing poll id: %w", ballot_errors.ErrMalformedEvent)
	}
	if _, ok := e.Key(); !ok {
		return fmt.Errorf("poll %s: no choice in event: %w", e.PollID, ballot_errors.ErrMalformedEvent)
	}
	return nil
}

// DecodeVoteEvent parses and validates a wire payload.
func DecodeVoteEvent(payload []byte) (VoteEvent, error) {
	var ev VoteEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return VoteEvent{}, fmt.Errorf("%v: %w", err, ballot_errors.ErrMalformedEvent)
	}
	if err := ev.Validate(); err != nil {
		return VoteEvent{}, err
	}
	return ev, nil
}
