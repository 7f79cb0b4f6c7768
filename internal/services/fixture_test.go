package services

import (
	"context"
	"testing"
	"time"

	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/repository/memory"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	polls *PollService
	tally *TallyService
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), now: testNow}
	clock := func() time.Time { return f.now }
	f.polls = NewPollService(f.store.Polls(), logger.NewNop()).WithClock(clock)
	f.tally = NewTallyService(f.store.Polls(), f.store.Tally(), nil, logger.NewNop()).WithClock(clock)
	return f
}

type election struct {
	poll      *poll.Poll
	partyA    uuid.UUID
	partyB    uuid.UUID
	candidate uuid.UUID // member of partyA
}

// openElection creates a scheduled election starting today and opens it.
func (f *fixture) openElection(t *testing.T) election {
	t.Helper()
	e := election{partyA: uuid.New(), partyB: uuid.New(), candidate: uuid.New()}
	p, err := f.polls.Create(context.Background(), uuid.New(), CreatePollInput{
		Kind:         poll.KindElection,
		Status:       poll.StatusScheduled,
		Title:        "General election",
		ElectionType: poll.ElectionParliamentary,
		StartDate:    f.now,
		EndDate:      f.now.AddDate(0, 0, 3),
		Choices: []ChoiceInput{
			{ID: &e.partyA, Kind: poll.ChoiceParty, Label: "Party A"},
			{ID: &e.partyB, Kind: poll.ChoiceParty, Label: "Party B"},
			{ID: &e.candidate, Kind: poll.ChoiceCandidate, Label: "Candidate A1", PartyID: &e.partyA},
		},
	})
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if p, err = f.polls.Transition(context.Background(), p.ID, poll.StatusOpen); err != nil {
		t.Fatalf("open election: %v", err)
	}
	e.poll = p
	return e
}

// openReferendum returns the poll and its two option ids.
func (f *fixture) openReferendum(t *testing.T) (*poll.Poll, uuid.UUID, uuid.UUID) {
	t.Helper()
	yes, no := uuid.New(), uuid.New()
	p, err := f.polls.Create(context.Background(), uuid.New(), CreatePollInput{
		Kind:      poll.KindReferendum,
		Status:    poll.StatusScheduled,
		Title:     "Bridge",
		Question:  "Build it?",
		StartDate: f.now,
		EndDate:   f.now.AddDate(0, 0, 1),
		Choices: []ChoiceInput{
			{ID: &yes, Kind: poll.ChoiceOption, Label: "Yes"},
			{ID: &no, Kind: poll.ChoiceOption, Label: "No"},
		},
	})
	if err != nil {
		t.Fatalf("create referendum: %v", err)
	}
	if p, err = f.polls.Transition(context.Background(), p.ID, poll.StatusOpen); err != nil {
		t.Fatalf("open referendum: %v", err)
	}
	return p, yes, no
}

func (f *fixture) counter(t *testing.T, pollID, choiceID uuid.UUID) int64 {
	t.Helper()
	choices, err := f.store.Tally().Results(context.Background(), pollID)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range choices {
		if c.ID == choiceID {
			return c.VoteCount
		}
	}
	t.Fatalf("choice %s not found", choiceID)
	return 0
}
