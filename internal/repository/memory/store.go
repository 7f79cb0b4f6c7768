package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/outbox"
	"ballot-engine/internal/domain/poll"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

type ballotKey struct {
	participant uuid.UUID
	poll        uuid.UUID
}

// Store keeps polls, ballots and outbox events in process memory.
// One mutex covers everything, which makes RecordBallot trivially atomic.
type Store struct {
	mu      sync.RWMutex
	polls   map[uuid.UUID]*poll.Poll
	ballots map[ballotKey]ballot.Record
	outbox  []*outbox.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		polls:   make(map[uuid.UUID]*poll.Poll),
		ballots: make(map[ballotKey]ballot.Record),
	}
}

func clonePoll(p *poll.Poll) *poll.Poll {
	cp := *p
	cp.Choices = append([]poll.Choice(nil), p.Choices...)
	return &cp
}

// Polls adapts the store to repository.PollRepository.
func (s *Store) Polls() *PollStore { return &PollStore{s} }

// Tally adapts the store to repository.TallyRepository.
func (s *Store) Tally() *TallyStore { return &TallyStore{s} }

// Outbox adapts the store to repository.OutboxRepository.
func (s *Store) Outbox() *OutboxStore { return &OutboxStore{s} }

type PollStore struct{ s *Store }

func (r *PollStore) Create(ctx context.Context, p *poll.Poll) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.polls[p.ID]; ok {
		return ballot_errors.ErrAlreadyExists
	}
	r.s.polls[p.ID] = clonePoll(p)
	return nil
}

func (r *PollStore) GetByID(ctx context.Context, id uuid.UUID) (*poll.Poll, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.polls[id]
	if !ok {
		return nil, ballot_errors.ErrNotFound
	}
	return clonePoll(p), nil
}

func (r *PollStore) List(ctx context.Context, filter poll.Filter) ([]poll.Poll, int64, error) {
	filter = filter.Normalize()
	r.s.mu.RLock()
	var matched []poll.Poll
	for _, p := range r.s.polls {
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.SurveyID.Valid && p.SurveyID != filter.SurveyID {
			continue
		}
		matched = append(matched, *clonePoll(p))
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartDate.Equal(matched[j].StartDate) {
			return matched[i].StartDate.Before(matched[j].StartDate)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := filter.Offset()
	if start >= len(matched) {
		return []poll.Poll{}, total, nil
	}
	end := start + filter.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// pollIn returns the stored poll if it is still in the expected status. Callers hold mu.
func (s *Store) pollIn(id uuid.UUID, expected poll.Status) (*poll.Poll, error) {
	p, ok := s.polls[id]
	if !ok {
		return nil, ballot_errors.ErrNotFound
	}
	if p.Status != expected {
		return nil, fmt.Errorf("poll is no longer %s: %w", expected, ballot_errors.ErrConflict)
	}
	return p, nil
}

func (r *PollStore) Update(ctx context.Context, p *poll.Poll, expected poll.Status, event *outbox.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, err := r.s.pollIn(p.ID, expected)
	if err != nil {
		return err
	}
	next := clonePoll(p)
	// counters belong to the tally path
	next.Choices = existing.Choices
	r.s.polls[p.ID] = next
	if event != nil {
		cp := *event
		r.s.outbox = append(r.s.outbox, &cp)
	}
	return nil
}

func (r *PollStore) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.polls[id]
	if !ok {
		return ballot_errors.ErrNotFound
	}
	if p.Status != poll.StatusDraft {
		return ballot_errors.ErrNotDraft
	}
	delete(r.s.polls, id)
	return nil
}

func (r *PollStore) AddChoice(ctx context.Context, c *poll.Choice, expected poll.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.s.pollIn(c.PollID, expected)
	if err != nil {
		return err
	}
	if _, dup := p.FindChoice(c.ID); dup {
		return ballot_errors.ErrAlreadyExists
	}
	p.Choices = append(p.Choices, *c)
	return nil
}

func (r *PollStore) UpdateChoice(ctx context.Context, c *poll.Choice, expected poll.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.s.pollIn(c.PollID, expected)
	if err != nil {
		return err
	}
	existing, ok := p.FindChoice(c.ID)
	if !ok {
		return ballot_errors.ErrNotFound
	}
	existing.Label = c.Label
	existing.PartyID = c.PartyID
	existing.Position = c.Position
	return nil
}

func (r *PollStore) DeleteChoice(ctx context.Context, pollID, choiceID uuid.UUID, expected poll.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.s.pollIn(pollID, expected)
	if err != nil {
		return err
	}
	for i := range p.Choices {
		if p.Choices[i].ID != choiceID {
			continue
		}
		if n := p.Choices[i].VoteCount; n > 0 {
			return fmt.Errorf("choice has %d votes: %w", n, ballot_errors.ErrConflict)
		}
		p.Choices = append(p.Choices[:i:i], p.Choices[i+1:]...)
		return nil
	}
	return ballot_errors.ErrNotFound
}

type TallyStore struct{ s *Store }

func (r *TallyStore) RecordBallot(ctx context.Context, rec *ballot.Record, event *outbox.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := ballotKey{participant: rec.ParticipantID, poll: rec.PollID}
	if _, ok := r.s.ballots[key]; ok {
		return ballot_errors.ErrAlreadyVoted
	}
	p, ok := r.s.polls[rec.PollID]
	if !ok || p.Status != poll.StatusOpen {
		return ballot_errors.ErrPollNotOpen
	}
	choice, ok := p.FindChoice(rec.ChoiceID)
	if !ok {
		return ballot_errors.ErrInvalidChoice
	}

	choice.VoteCount++
	r.s.ballots[key] = *rec
	if event != nil {
		cp := *event
		r.s.outbox = append(r.s.outbox, &cp)
	}
	return nil
}

func (r *TallyStore) GetBallot(ctx context.Context, participantID, pollID uuid.UUID) (*ballot.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.ballots[ballotKey{participant: participantID, poll: pollID}]
	if !ok {
		return nil, ballot_errors.ErrNotFound
	}
	return &rec, nil
}

func (r *TallyStore) Results(ctx context.Context, pollID uuid.UUID) ([]poll.Choice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.polls[pollID]
	if !ok {
		return nil, ballot_errors.ErrNotFound
	}
	return append([]poll.Choice(nil), p.Choices...), nil
}

func (r *TallyStore) CountBallots(ctx context.Context, pollID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for k := range r.s.ballots {
		if k.poll == pollID {
			n++
		}
	}
	return n, nil
}

type OutboxStore struct{ s *Store }

func (r *OutboxStore) Create(ctx context.Context, event *outbox.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *event
	r.s.outbox = append(r.s.outbox, &cp)
	return nil
}

func inFlight(e *outbox.OutboxEvent) bool {
	return e.Status == outbox.StatusPending || e.Status == outbox.StatusProcessing
}

func (r *OutboxStore) ClaimPending(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]outbox.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	// An aggregate is held back by its oldest in-flight event that is not yet due.
	held := make(map[string]bool)
	var claimed []*outbox.OutboxEvent
	for _, e := range r.s.outbox {
		if !inFlight(e) {
			continue
		}
		if e.NextRetryAt.After(now) {
			held[e.AggregateID] = true
			continue
		}
		if held[e.AggregateID] || (limit > 0 && len(claimed) == limit) {
			continue
		}
		claimed = append(claimed, e)
	}

	out := make([]outbox.OutboxEvent, 0, len(claimed))
	for _, e := range claimed {
		e.Status = outbox.StatusProcessing
		e.NextRetryAt = now.Add(lease)
		e.UpdatedAt = now
		out = append(out, *e)
	}
	return out, nil
}

func (r *OutboxStore) Release(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		if e := r.find(id); e != nil && e.Status == outbox.StatusProcessing {
			e.Status = outbox.StatusPending
			e.NextRetryAt = now
			e.UpdatedAt = now
		}
	}
	return nil
}

func (r *OutboxStore) find(id uuid.UUID) *outbox.OutboxEvent {
	for _, e := range r.s.outbox {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r *OutboxStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.find(id)
	if e == nil {
		return ballot_errors.ErrNotFound
	}
	now := time.Now()
	e.Status = outbox.StatusCompleted
	e.ProcessedAt = &now
	e.UpdatedAt = now
	return nil
}

func (r *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.find(id)
	if e == nil {
		return ballot_errors.ErrNotFound
	}
	e.Status = outbox.StatusPending
	e.RetryCount++
	e.NextRetryAt = nextRetryAt
	e.Error = errorMsg
	e.UpdatedAt = time.Now()
	return nil
}

func (r *OutboxStore) MarkDead(ctx context.Context, id uuid.UUID, errorMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.find(id)
	if e == nil {
		return ballot_errors.ErrNotFound
	}
	e.Status = outbox.StatusDead
	e.Error = errorMsg
	e.UpdatedAt = time.Now()
	return nil
}

// Events returns a copy of every stored outbox event. Used by tests.
func (r *OutboxStore) Events() []outbox.OutboxEvent {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]outbox.OutboxEvent, len(r.s.outbox))
	for i, e := range r.s.outbox {
		out[i] = *e
	}
	return out
}
