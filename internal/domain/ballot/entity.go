package ballot

import (
	"fmt"
	"time"

	"ballot-engine/internal/domain/poll"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

// Selection is what a participant picked. Exactly one field must be set for the poll kind.
type Selection struct {
	CandidateID *uuid.UUID
	PartyID     *uuid.UUID
	OptionID    *uuid.UUID
}

// Validate checks the shape of the selection against the poll kind.
// Elections take a candidate or a party, never both. Referendums and surveys take one option.
func (s Selection) Validate(kind poll.Kind) error {
	switch kind {
	case poll.KindElection:
		if (s.CandidateID == nil) == (s.PartyID == nil) {
			return fmt.Errorf("election needs exactly one of candidate or party: %w", ballot_errors.ErrInvalidSelection)
		}
		if s.OptionID != nil {
			return fmt.Errorf("election takes no option: %w", ballot_errors.ErrInvalidSelection)
		}
	case poll.KindReferendum, poll.KindSurveyQuestion:
		if s.OptionID == nil || s.CandidateID != nil || s.PartyID != nil {
			return fmt.Errorf("%s needs exactly one option: %w", kind, ballot_errors.ErrInvalidSelection)
		}
	default:
		return fmt.Errorf("unknown poll kind %q: %w", kind, ballot_errors.ErrInvalidSelection)
	}
	return nil
}

func (s Selection) target() (uuid.UUID, poll.ChoiceKind) {
	switch {
	case s.CandidateID != nil:
		return *s.CandidateID, poll.ChoiceCandidate
	case s.PartyID != nil:
		return *s.PartyID, poll.ChoiceParty
	case s.OptionID != nil:
		return *s.OptionID, poll.ChoiceOption
	}
	return uuid.Nil, ""
}

// Check runs the cast preconditions in order: poll open, selection shape, choice membership.
// It returns the choice whose counter the vote increments.
func Check(p *poll.Poll, s Selection) (*poll.Choice, error) {
	if p == nil || p.Status != poll.StatusOpen {
		return nil, ballot_errors.ErrPollNotOpen
	}
	if err := s.Validate(p.Kind); err != nil {
		return nil, err
	}
	id, kind := s.target()
	choice, ok := p.FindChoice(id)
	if !ok || choice.Kind != kind {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ballot_errors.ErrInvalidChoice)
	}
	return choice, nil
}

// Record represents ballots. One row per (participant, poll), never updated.
type Record struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ParticipantID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_ballots_participant_poll,priority:1" json:"participant_id"`
	PollID        uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_ballots_participant_poll,priority:2;index" json:"poll_id"`
	ChoiceID      uuid.UUID     `gorm:"type:uuid;not null" json:"choice_id"`
	CandidateID   uuid.NullUUID `gorm:"type:uuid" json:"candidate_id"`
	PartyID       uuid.NullUUID `gorm:"type:uuid" json:"party_id"`
	OptionID      uuid.NullUUID `gorm:"type:uuid" json:"option_id"`
	CastAt        time.Time     `gorm:"not null;default:now()" json:"cast_at"`
}

func (Record) TableName() string {
	return "ballots"
}

// NewRecord builds the ballot for a checked selection.
func NewRecord(participantID uuid.UUID, p *poll.Poll, choice *poll.Choice, s Selection, at time.Time) *Record {
	r := &Record{
		ID:            uuid.New(),
		ParticipantID: participantID,
		PollID:        p.ID,
		ChoiceID:      choice.ID,
		CastAt:        at.UTC(),
	}
	if s.CandidateID != nil {
		r.CandidateID = uuid.NullUUID{UUID: *s.CandidateID, Valid: true}
	}
	if s.PartyID != nil {
		r.PartyID = uuid.NullUUID{UUID: *s.PartyID, Valid: true}
	}
	if s.OptionID != nil {
		r.OptionID = uuid.NullUUID{UUID: *s.OptionID, Valid: true}
	}
	return r
}
