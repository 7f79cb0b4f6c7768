package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/events"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

func TestConcurrentDuplicateVoteAcceptsOne(t *testing.T) {
	f := newFixture(t)
	p, yes, _ := f.openReferendum(t)
	participant := uuid.New()

	const attempts = 50
	var ok, dup int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tally.CastVote(context.Background(), participant, p.ID, ballot.Selection{OptionID: &yes})
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, ballot_errors.ErrAlreadyVoted):
				atomic.AddInt64(&dup, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || dup != attempts-1 {
		t.Fatalf("accepted %d, duplicates %d", ok, dup)
	}
	if got := f.counter(t, p.ID, yes); got != 1 {
		t.Fatalf("counter = %d", got)
	}
	votes := 0
	for _, e := range f.store.Outbox().Events() {
		if e.EventType == events.EventTypeVoteCast {
			votes++
		}
	}
	if votes != 1 {
		t.Fatalf("vote outbox rows = %d", votes)
	}
}

func TestConcurrentVotersAllCounted(t *testing.T) {
	f := newFixture(t)
	p, yes, no := f.openReferendum(t)

	const voters = 50
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.tally.CastVote(context.Background(), uuid.New(), p.ID, ballot.Selection{OptionID: &yes}); err != nil {
				t.Errorf("cast: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.counter(t, p.ID, yes); got != voters {
		t.Fatalf("counter = %d, want %d", got, voters)
	}
	if got := f.counter(t, p.ID, no); got != 0 {
		t.Fatalf("untouched option counter = %d", got)
	}
	votes := 0
	for _, e := range f.store.Outbox().Events() {
		if e.EventType == events.EventTypeVoteCast {
			votes++
		}
	}
	if votes != voters {
		t.Fatalf("vote outbox rows = %d", votes)
	}
}

func TestCastVotePreconditionOrder(t *testing.T) {
	f := newFixture(t)
	e := f.openElection(t)
	ctx := context.Background()
	voter := uuid.New()
	stray := uuid.New()

	draft, err := f.polls.Create(ctx, uuid.New(), CreatePollInput{
		Kind: poll.KindReferendum, Title: "Draft", Question: "q",
		StartDate: f.now, EndDate: f.now.AddDate(0, 0, 2),
		Choices: []ChoiceInput{{Kind: poll.ChoiceOption, Label: "Yes"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		pollID uuid.UUID
		sel    ballot.Selection
		want   error
	}{
		{"unknown poll", uuid.New(), ballot.Selection{CandidateID: &e.candidate}, ballot_errors.ErrPollNotOpen},
		{"draft poll with bad selection", draft.ID, ballot.Selection{}, ballot_errors.ErrPollNotOpen},
		{"empty selection", e.poll.ID, ballot.Selection{}, ballot_errors.ErrInvalidSelection},
		{"candidate and party", e.poll.ID, ballot.Selection{CandidateID: &e.candidate, PartyID: &e.partyA}, ballot_errors.ErrInvalidSelection},
		{"option in election", e.poll.ID, ballot.Selection{OptionID: &e.partyA}, ballot_errors.ErrInvalidSelection},
		{"foreign candidate", e.poll.ID, ballot.Selection{CandidateID: &stray}, ballot_errors.ErrInvalidChoice},
		{"party id as candidate", e.poll.ID, ballot.Selection{CandidateID: &e.partyA}, ballot_errors.ErrInvalidChoice},
		{"candidate id as party", e.poll.ID, ballot.Selection{PartyID: &e.candidate}, ballot_errors.ErrInvalidChoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tally.CastVote(ctx, voter, tt.pollID, tt.sel)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.tally.CastVote(ctx, voter, e.poll.ID, ballot.Selection{PartyID: &e.partyB}); err != nil {
		t.Fatalf("valid vote after rejections: %v", err)
	}
	_, err = f.tally.CastVote(ctx, voter, e.poll.ID, ballot.Selection{CandidateID: &stray})
	if !errors.Is(err, ballot_errors.ErrInvalidChoice) {
		t.Fatalf("invalid choice must be reported before already voted, got %v", err)
	}
}

// A candidate vote is a vote for the candidate only. Whether it should also count toward the
// candidate's party is not settled; the counters are kept independent.
func TestCandidateVoteLeavesPartyCounter(t *testing.T) {
	f := newFixture(t)
	e := f.openElection(t)

	if _, err := f.tally.CastVote(context.Background(), uuid.New(), e.poll.ID, ballot.Selection{CandidateID: &e.candidate}); err != nil {
		t.Fatal(err)
	}
	if got := f.counter(t, e.poll.ID, e.candidate); got != 1 {
		t.Fatalf("candidate = %d", got)
	}
	if got := f.counter(t, e.poll.ID, e.partyA); got != 0 {
		t.Fatalf("party = %d", got)
	}

	res, err := f.tally.Results(context.Background(), e.poll.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Candidates()) != 1 || len(res.Parties()) != 2 || res.TotalBallots != 1 {
		t.Fatalf("results = %+v", res)
	}
}

func TestCastVoteWritesAnonymousEvent(t *testing.T) {
	f := newFixture(t)
	p, yes, _ := f.openReferendum(t)
	participant := uuid.New()

	rec, err := f.tally.CastVote(context.Background(), participant, p.ID, ballot.Selection{OptionID: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ChoiceID != yes || rec.ParticipantID != participant {
		t.Fatalf("record = %+v", rec)
	}

	var evt *ballot.VoteEvent
	for _, e := range f.store.Outbox().Events() {
		if e.EventType != events.EventTypeVoteCast {
			continue
		}
		if e.AggregateID != p.ID.String() {
			t.Fatalf("aggregate = %s", e.AggregateID)
		}
		if json.Valid(e.Payload) && containsKey(e.Payload, "participant_id") {
			t.Fatal("vote event carries participant id")
		}
		decoded, err := ballot.DecodeVoteEvent(e.Payload)
		if err != nil {
			t.Fatal(err)
		}
		evt = &decoded
	}
	if evt == nil || evt.OptionID == nil || *evt.OptionID != yes || !evt.Timestamp.Equal(testNow) {
		t.Fatalf("event = %+v", evt)
	}
}

func containsKey(raw []byte, key string) bool {
	var m map[string]json.RawMessage
	_ = json.Unmarshal(raw, &m)
	_, ok := m[key]
	return ok
}

func TestCastVoteRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	p, yes, _ := f.openReferendum(t)
	_, err := f.tally.CastVote(context.Background(), uuid.Nil, p.ID, ballot.Selection{OptionID: &yes})
	if !errors.Is(err, ballot_errors.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
}

type mapCache struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*poll.Results
	invalidated int
}

func (c *mapCache) GetResults(ctx context.Context, id uuid.UUID) (*poll.Results, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[id], nil
}

func (c *mapCache) SetResults(ctx context.Context, r *poll.Results) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[r.PollID] = r
	return nil
}

func (c *mapCache) InvalidateResults(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.invalidated++
	return nil
}

func TestResultsCacheAside(t *testing.T) {
	f := newFixture(t)
	cache := &mapCache{items: map[uuid.UUID]*poll.Results{}}
	f.tally.cache = cache
	p, yes, _ := f.openReferendum(t)
	ctx := context.Background()

	first, err := f.tally.Results(ctx, p.ID)
	if err != nil || first.TotalBallots != 0 {
		t.Fatalf("first = %+v, %v", first, err)
	}
	if cache.items[p.ID] == nil {
		t.Fatal("results not cached")
	}

	if _, err := f.tally.CastVote(ctx, uuid.New(), p.ID, ballot.Selection{OptionID: &yes}); err != nil {
		t.Fatal(err)
	}
	if cache.invalidated != 1 {
		t.Fatalf("invalidations = %d", cache.invalidated)
	}
	again, _ := f.tally.Results(ctx, p.ID)
	if again.TotalBallots != 1 {
		t.Fatalf("stale results after vote: %+v", again)
	}
}
