package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/outbox"
	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/repository"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

var (
	_ repository.PollRepository   = (*PollStore)(nil)
	_ repository.TallyRepository  = (*TallyStore)(nil)
	_ repository.OutboxRepository = (*OutboxStore)(nil)
)

func seedOpenPoll(t *testing.T, s *Store) (*poll.Poll, uuid.UUID) {
	t.Helper()
	option := uuid.New()
	p := &poll.Poll{
		ID:      uuid.New(),
		Kind:    poll.KindReferendum,
		Status:  poll.StatusOpen,
		Title:   "Referendum",
		Choices: []poll.Choice{{ID: option, Kind: poll.ChoiceOption, Label: "Yes"}},
	}
	p.Choices[0].PollID = p.ID
	if err := s.Polls().Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p, option
}

func TestRecordBallotUnique(t *testing.T) {
	s := NewStore()
	p, option := seedOpenPoll(t, s)
	participant := uuid.New()
	rec := &ballot.Record{ID: uuid.New(), ParticipantID: participant, PollID: p.ID, ChoiceID: option}

	if err := s.Tally().RecordBallot(context.Background(), rec, outbox.New("poll", "vote.cast", p.ID.String(), []byte("{}"), time.Now())); err != nil {
		t.Fatalf("first ballot: %v", err)
	}
	if err := s.Tally().RecordBallot(context.Background(), rec, nil); !errors.Is(err, ballot_errors.ErrAlreadyVoted) {
		t.Fatalf("second ballot: got %v", err)
	}

	choices, _ := s.Tally().Results(context.Background(), p.ID)
	if choices[0].VoteCount != 1 {
		t.Fatalf("count = %d", choices[0].VoteCount)
	}
	if n := len(s.Outbox().Events()); n != 1 {
		t.Fatalf("outbox events = %d", n)
	}
}

func TestOutboxRetryScheduling(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()
	e := outbox.New("poll", "vote.cast", uuid.NewString(), []byte("{}"), now)
	_ = s.Outbox().Create(ctx, e)

	claimed, _ := s.Outbox().ClaimPending(ctx, now, 30*time.Second, 10)
	if len(claimed) != 1 || claimed[0].Status != outbox.StatusProcessing {
		t.Fatalf("claimed = %+v", claimed)
	}
	if again, _ := s.Outbox().ClaimPending(ctx, now, 30*time.Second, 10); len(again) != 0 {
		t.Fatalf("claimed event handed out twice")
	}

	_ = s.Outbox().MarkFailed(ctx, e.ID, now.Add(time.Minute), "boom")
	if pending, _ := s.Outbox().ClaimPending(ctx, now, 30*time.Second, 10); len(pending) != 0 {
		t.Fatalf("event due before its retry time")
	}
	pending, _ := s.Outbox().ClaimPending(ctx, now.Add(2*time.Minute), 30*time.Second, 10)
	if len(pending) != 1 || pending[0].RetryCount != 1 || pending[0].Error != "boom" {
		t.Fatalf("pending = %+v", pending)
	}

	_ = s.Outbox().MarkCompleted(ctx, e.ID)
	if pending, _ = s.Outbox().ClaimPending(ctx, now.Add(time.Hour), 30*time.Second, 10); len(pending) != 0 {
		t.Fatalf("completed event still pending")
	}
}

func TestClaimHoldsAggregateBehindRetry(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()
	pollA, pollB := uuid.NewString(), uuid.NewString()
	a1 := outbox.New("poll", "vote.cast", pollA, []byte("{}"), now)
	a2 := outbox.New("poll", "vote.cast", pollA, []byte("{}"), now)
	b1 := outbox.New("poll", "vote.cast", pollB, []byte("{}"), now)
	for _, e := range []*outbox.OutboxEvent{a1, a2, b1} {
		_ = s.Outbox().Create(ctx, e)
	}
	ids := func(evs []outbox.OutboxEvent) []uuid.UUID {
		out := make([]uuid.UUID, len(evs))
		for i := range evs {
			out[i] = evs[i].ID
		}
		return out
	}

	if got, _ := s.Outbox().ClaimPending(ctx, now, 30*time.Second, 10); len(got) != 3 {
		t.Fatalf("first claim = %d", len(got))
	}
	_ = s.Outbox().MarkFailed(ctx, a1.ID, now.Add(time.Minute), "boom")
	_ = s.Outbox().Release(ctx, []uuid.UUID{a2.ID}, now)

	// a2 is due but must wait for a1; b1 is still leased
	if got, _ := s.Outbox().ClaimPending(ctx, now.Add(time.Second), 30*time.Second, 10); len(got) != 0 {
		t.Fatalf("claimed while held = %v", ids(got))
	}

	// a1 is due again and b1's lease has run out
	got, _ := s.Outbox().ClaimPending(ctx, now.Add(2*time.Minute), 30*time.Second, 10)
	want := []uuid.UUID{a1.ID, a2.ID, b1.ID}
	if gotIDs := ids(got); len(gotIDs) != 3 || gotIDs[0] != want[0] || gotIDs[1] != want[1] || gotIDs[2] != want[2] {
		t.Fatalf("claim order = %v, want %v", gotIDs, want)
	}

	_ = s.Outbox().MarkDead(ctx, a1.ID, "max retries exceeded")
	_ = s.Outbox().Release(ctx, []uuid.UUID{a2.ID, b1.ID}, now.Add(3*time.Minute))
	got, _ = s.Outbox().ClaimPending(ctx, now.Add(3*time.Minute), 30*time.Second, 10)
	if len(got) != 2 || got[0].ID != a2.ID {
		t.Fatalf("dead event still holds its poll: %v", ids(got))
	}
	if evs := s.Outbox().Events(); evs[0].Status != outbox.StatusDead {
		t.Fatalf("dead status = %s", evs[0].Status)
	}
}

func TestDeleteChoiceWithVotesConflicts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p, option := seedOpenPoll(t, s)
	rec := &ballot.Record{ID: uuid.New(), ParticipantID: uuid.New(), PollID: p.ID, ChoiceID: option}
	if err := s.Tally().RecordBallot(ctx, rec, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Polls().DeleteChoice(ctx, p.ID, option, poll.StatusOpen); !errors.Is(err, ballot_errors.ErrConflict) {
		t.Fatalf("choice with votes: got %v", err)
	}
	if err := s.Polls().DeleteChoice(ctx, p.ID, uuid.New(), poll.StatusOpen); !errors.Is(err, ballot_errors.ErrNotFound) {
		t.Fatalf("missing choice: got %v", err)
	}
	if err := s.Polls().DeleteChoice(ctx, p.ID, option, poll.StatusDraft); !errors.Is(err, ballot_errors.ErrConflict) {
		t.Fatalf("stale status: got %v", err)
	}
	got, _ := s.Polls().GetByID(ctx, p.ID)
	if len(got.Choices) != 1 {
		t.Fatalf("choices = %d", len(got.Choices))
	}
}

func TestListFilterAndPaging(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		kind := poll.KindElection
		if i%2 == 1 {
			kind = poll.KindReferendum
		}
		_ = s.Polls().Create(context.Background(), &poll.Poll{
			ID: uuid.New(), Kind: kind, Status: poll.StatusDraft, Title: "p",
			StartDate: base.AddDate(0, 0, i), EndDate: base.AddDate(0, 0, i+1),
		})
	}

	page, total, err := s.Polls().List(context.Background(), poll.Filter{Kind: poll.KindElection, Size: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 2 {
		t.Fatalf("total %d page %d", total, len(page))
	}
	if !page[0].StartDate.Before(page[1].StartDate) {
		t.Fatalf("not ordered by start date")
	}
	page, _, _ = s.Polls().List(context.Background(), poll.Filter{Kind: poll.KindElection, Page: 1, Size: 2})
	if len(page) != 1 {
		t.Fatalf("second page = %d", len(page))
	}
}
