package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/events"
	"ballot-engine/internal/repository"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PollService owns the poll lifecycle: creation, edits, transitions and deletion.
type PollService struct {
	polls  repository.PollRepository
	clock  func() time.Time
	logger *logger.Logger
}

func NewPollService(polls repository.PollRepository, l *logger.Logger) *PollService {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &PollService{polls: polls, clock: time.Now, logger: l}
}

// WithClock replaces the service clock. Used by tests.
func (s *PollService) WithClock(clock func() time.Time) *PollService {
	s.clock = clock
	return s
}

type ChoiceInput struct {
	ID       *uuid.UUID
	Kind     poll.ChoiceKind
	Label    string
	PartyID  *uuid.UUID
	Position int
}

type CreatePollInput struct {
	Kind         poll.Kind
	Status       poll.Status
	Title        string
	Description  string
	ElectionType poll.ElectionType
	Question     string
	SurveyID     *uuid.UUID
	StartDate    time.Time
	EndDate      time.Time
	Choices      []ChoiceInput
}

type StatusChange struct {
	PollID uuid.UUID   `json:"poll_id"`
	From   poll.Status `json:"from"`
	To     poll.Status `json:"to"`
	At     time.Time   `json:"at"`
}

func (s *PollService) Create(ctx context.Context, createdBy uuid.UUID, in CreatePollInput) (*poll.Poll, error) {
	now := s.clock()
	p := &poll.Poll{
		ID:           uuid.New(),
		Kind:         in.Kind,
		Status:       in.Status,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		ElectionType: in.ElectionType,
		Question:     strings.TrimSpace(in.Question),
		StartDate:    poll.Day(in.StartDate),
		EndDate:      poll.Day(in.EndDate),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.Status == "" {
		p.Status = poll.StatusDraft
	}
	if createdBy != uuid.Nil {
		p.CreatedBy = uuid.NullUUID{UUID: createdBy, Valid: true}
	}
	if in.SurveyID != nil {
		p.SurveyID = uuid.NullUUID{UUID: *in.SurveyID, Valid: true}
	}
	for i, c := range in.Choices {
		p.Choices = append(p.Choices, buildChoice(p.ID, c, i, now))
	}

	if err := poll.ValidateNew(p, now); err != nil {
		return nil, err
	}
	if err := validatePartyRefs(p); err != nil {
		return nil, err
	}
	if err := s.polls.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.FromContext(ctx).Logger.Info("poll created",
		zap.String("poll_id", p.ID.String()),
		zap.String("kind", string(p.Kind)),
		zap.String("status", string(p.Status)),
	)
	return p, nil
}

func buildChoice(pollID uuid.UUID, in ChoiceInput, position int, now time.Time) poll.Choice {
	c := poll.Choice{
		ID:        uuid.New(),
		PollID:    pollID,
		Kind:      in.Kind,
		Label:     strings.TrimSpace(in.Label),
		Position:  position,
		CreatedAt: now,
	}
	if in.ID != nil {
		c.ID = *in.ID
	}
	if in.Position != 0 {
		c.Position = in.Position
	}
	if in.PartyID != nil {
		c.PartyID = uuid.NullUUID{UUID: *in.PartyID, Valid: true}
	}
	return c
}

// validatePartyRefs checks that every candidate's party is a party choice of the same poll.
func validatePartyRefs(p *poll.Poll) error {
	for _, c := range p.Choices {
		if c.Kind != poll.ChoiceCandidate || !c.PartyID.Valid {
			continue
		}
		party, ok := p.FindChoice(c.PartyID.UUID)
		if !ok || party.Kind != poll.ChoiceParty {
			return fmt.Errorf("candidate %q references unknown party: %w", c.Label, ballot_errors.ErrInvalidInput)
		}
	}
	return nil
}

func (s *PollService) Get(ctx context.Context, id uuid.UUID) (*poll.Poll, error) {
	return s.polls.GetByID(ctx, id)
}

func (s *PollService) List(ctx context.Context, filter poll.Filter) ([]poll.Poll, int64, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, fmt.Errorf("kind %q: %w", filter.Kind, ballot_errors.ErrInvalidInput)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("status %q: %w", filter.Status, ballot_errors.ErrInvalidInput)
	}
	return s.polls.List(ctx, filter.Normalize())
}

// Update applies field edits and an optional status transition.
// A transition is written to the outbox together with the new status.
func (s *PollService) Update(ctx context.Context, id uuid.UUID, u poll.Update) (*poll.Poll, error) {
	p, err := s.polls.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := p.Status
	now := s.clock()
	if err := p.Apply(u, now); err != nil {
		return nil, err
	}

	var change *StatusChange
	if p.Status != from {
		change = &StatusChange{PollID: p.ID, From: from, To: p.Status, At: now.UTC()}
	}
	eventType := events.EventTypePollStatusChanged
	if change != nil && change.To == poll.StatusClosed {
		eventType = events.EventTypePollClosed
	}

	if change == nil {
		if err := s.polls.Update(ctx, p, from, nil); err != nil {
			return nil, err
		}
		return p, nil
	}

	evt, err := newOutboxEvent(events.AggregateTypePoll, eventType, p.ID, change, now)
	if err != nil {
		return nil, err
	}
	if err := s.polls.Update(ctx, p, from, evt); err != nil {
		return nil, err
	}
	s.logger.FromContext(ctx).Logger.Info("poll status changed",
		zap.String("poll_id", p.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(p.Status)),
	)
	return p, nil
}

// Transition is Update with only a status change.
func (s *PollService) Transition(ctx context.Context, id uuid.UUID, to poll.Status) (*poll.Poll, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("status %q: %w", to, ballot_errors.ErrInvalidInput)
	}
	return s.Update(ctx, id, poll.Update{Status: &to})
}

func (s *PollService) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.polls.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := p.CanDelete(); err != nil {
		return err
	}
	if err := s.polls.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.FromContext(ctx).Logger.Info("poll deleted", zap.String("poll_id", id.String()))
	return nil
}

func (s *PollService) AddChoice(ctx context.Context, pollID uuid.UUID, in ChoiceInput) (*poll.Choice, error) {
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := p.CanEditChoices(); err != nil {
		return nil, err
	}
	c := buildChoice(p.ID, in, len(p.Choices), s.clock())
	if err := poll.ValidateChoice(p, &c); err != nil {
		return nil, err
	}
	p.Choices = append(p.Choices, c)
	if err := validatePartyRefs(p); err != nil {
		return nil, err
	}
	if err := s.polls.AddChoice(ctx, &c, p.Status); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PollService) UpdateChoice(ctx context.Context, pollID, choiceID uuid.UUID, in ChoiceInput) (*poll.Choice, error) {
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := p.CanEditChoices(); err != nil {
		return nil, err
	}
	existing, ok := p.FindChoice(choiceID)
	if !ok {
		return nil, ballot_errors.ErrNotFound
	}
	if in.Label != "" {
		existing.Label = strings.TrimSpace(in.Label)
	}
	if in.PartyID != nil {
		existing.PartyID = uuid.NullUUID{UUID: *in.PartyID, Valid: true}
	}
	if in.Position != 0 {
		existing.Position = in.Position
	}
	if err := poll.ValidateChoice(p, existing); err != nil {
		return nil, err
	}
	if err := validatePartyRefs(p); err != nil {
		return nil, err
	}
	if err := s.polls.UpdateChoice(ctx, existing, p.Status); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *PollService) RemoveChoice(ctx context.Context, pollID, choiceID uuid.UUID) error {
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if err := p.CanEditChoices(); err != nil {
		return err
	}
	for _, c := range p.Choices {
		if c.PartyID.Valid && c.PartyID.UUID == choiceID {
			return fmt.Errorf("party still has candidates: %w", ballot_errors.ErrConflict)
		}
	}
	return s.polls.DeleteChoice(ctx, pollID, choiceID, p.Status)
}
