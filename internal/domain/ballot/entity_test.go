package ballot

import (
	"errors"
	"testing"
	"time"

	"ballot-engine/internal/domain/poll"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func electionFixture(status poll.Status) (*poll.Poll, uuid.UUID, uuid.UUID) {
	party := uuid.New()
	candidate := uuid.New()
	p := &poll.Poll{
		ID:     uuid.New(),
		Kind:   poll.KindElection,
		Status: status,
		Choices: []poll.Choice{
			{ID: party, Kind: poll.ChoiceParty, Label: "Blue"},
			{ID: candidate, Kind: poll.ChoiceCandidate, Label: "Ann", PartyID: uuid.NullUUID{UUID: party, Valid: true}},
		},
	}
	return p, candidate, party
}

func TestSelectionXOR(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	tests := []struct {
		name string
		sel  Selection
		kind poll.Kind
		ok   bool
	}{
		{"candidate only", Selection{CandidateID: &a}, poll.KindElection, true},
		{"party only", Selection{PartyID: &a}, poll.KindElection, true},
		{"both set", Selection{CandidateID: &a, PartyID: &b}, poll.KindElection, false},
		{"neither set", Selection{}, poll.KindElection, false},
		{"option on election", Selection{OptionID: &a}, poll.KindElection, false},
		{"referendum option", Selection{OptionID: &a}, poll.KindReferendum, true},
		{"referendum candidate", Selection{CandidateID: &a}, poll.KindReferendum, false},
		{"survey empty", Selection{}, poll.KindSurveyQuestion, false},
		{"survey option", Selection{OptionID: &a}, poll.KindSurveyQuestion, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate(tt.kind)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ballot_errors.ErrInvalidSelection) {
				t.Fatalf("got %v, want invalid selection", err)
			}
		})
	}
}

func TestCheckOrder(t *testing.T) {
	p, candidate, party := electionFixture(poll.StatusScheduled)

	// not open wins over a malformed selection
	if _, err := Check(p, Selection{}); !errors.Is(err, ballot_errors.ErrPollNotOpen) {
		t.Fatalf("scheduled poll: got %v", err)
	}

	p.Status = poll.StatusOpen
	if _, err := Check(p, Selection{CandidateID: ptr(uuid.New()), PartyID: ptr(uuid.New())}); !errors.Is(err, ballot_errors.ErrInvalidSelection) {
		t.Fatalf("both set: got %v", err)
	}
	if _, err := Check(p, Selection{CandidateID: ptr(uuid.New())}); !errors.Is(err, ballot_errors.ErrInvalidChoice) {
		t.Fatalf("foreign candidate: got %v", err)
	}
	// a party id passed as candidate does not match the choice kind
	if _, err := Check(p, Selection{CandidateID: ptr(party)}); !errors.Is(err, ballot_errors.ErrInvalidChoice) {
		t.Fatalf("party as candidate: got %v", err)
	}

	choice, err := Check(p, Selection{CandidateID: ptr(candidate)})
	if err != nil {
		t.Fatalf("valid candidate: %v", err)
	}
	if choice.ID != candidate {
		t.Fatalf("choice = %s, want %s", choice.ID, candidate)
	}
}

func TestEventRoundTrip(t *testing.T) {
	p, candidate, _ := electionFixture(poll.StatusOpen)
	sel := Selection{CandidateID: ptr(candidate)}
	choice, err := Check(p, sel)
	if err != nil {
		t.Fatal(err)
	}
	rec := NewRecord(uuid.New(), p, choice, sel, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	ev := EventFromRecord(rec)

	key, ok := ev.Key()
	if !ok || key != candidate.String() {
		t.Fatalf("key = %q, %v", key, ok)
	}
	if ev.PartyID != nil || ev.OptionID != nil {
		t.Fatalf("candidate vote carries party or option: %+v", ev)
	}
}

func TestDecodeVoteEvent(t *testing.T) {
	if _, err := DecodeVoteEvent([]byte("{not json")); !errors.Is(err, ballot_errors.ErrMalformedEvent) {
		t.Fatalf("bad json: got %v", err)
	}
	if _, err := DecodeVoteEvent([]byte(`{"poll_id":"` + uuid.NewString() + `"}`)); !errors.Is(err, ballot_errors.ErrMalformedEvent) {
		t.Fatalf("no choice: got %v", err)
	}
	if _, err := DecodeVoteEvent([]byte(`{"option_id":"` + uuid.NewString() + `"}`)); !errors.Is(err, ballot_errors.ErrMalformedEvent) {
		t.Fatalf("no poll: got %v", err)
	}
	party := uuid.New()
	ev, err := DecodeVoteEvent([]byte(`{"poll_id":"` + uuid.NewString() + `","party_id":"` + party.String() + `","timestamp":"2026-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("valid event: %v", err)
	}
	if key, _ := ev.Key(); key != party.String() {
		t.Fatalf("key = %s", key)
	}
}
