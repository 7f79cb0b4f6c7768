package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/events"
	"ballot-engine/internal/repository"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResultsCache stores ledger results for a short time.
type ResultsCache interface {
	GetResults(ctx context.Context, pollID uuid.UUID) (*poll.Results, error)
	SetResults(ctx context.Context, results *poll.Results) error
	InvalidateResults(ctx context.Context, pollID uuid.UUID) error
}

// TallyService records ballots. The ballot, the counter and the outbox row commit together;
// relaying the vote event happens later and can never undo the ballot.
type TallyService struct {
	polls  repository.PollRepository
	tally  repository.TallyRepository
	cache  ResultsCache
	clock  func() time.Time
	logger *logger.Logger
}

func NewTallyService(polls repository.PollRepository, tally repository.TallyRepository, cache ResultsCache, l *logger.Logger) *TallyService {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &TallyService{polls: polls, tally: tally, cache: cache, clock: time.Now, logger: l}
}

// WithClock replaces the service clock. Used by tests.
func (s *TallyService) WithClock(clock func() time.Time) *TallyService {
	s.clock = clock
	return s
}

func (s *TallyService) CastVote(ctx context.Context, participantID, pollID uuid.UUID, sel ballot.Selection) (*ballot.Record, error) {
	if participantID == uuid.Nil {
		return nil, ballot_errors.ErrUnauthorized
	}
	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, ballot_errors.ErrNotFound) {
			return nil, fmt.Errorf("poll %s does not exist: %w", pollID, ballot_errors.ErrPollNotOpen)
		}
		return nil, err
	}

	choice, err := ballot.Check(p, sel)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	rec := ballot.NewRecord(participantID, p, choice, sel, now)
	evt, err := newOutboxEvent(events.AggregateTypePoll, events.EventTypeVoteCast, p.ID, ballot.EventFromRecord(rec), now)
	if err != nil {
		return nil, err
	}
	if err := s.tally.RecordBallot(ctx, rec, evt); err != nil {
		return nil, err
	}

	log := s.logger.FromContext(ctx)
	if s.cache != nil {
		if err := s.cache.InvalidateResults(ctx, p.ID); err != nil {
			log.Logger.Warn("results cache invalidation failed", zap.String("poll_id", p.ID.String()), zap.Error(err))
		}
	}
	log.Logger.Info("vote recorded",
		zap.String("poll_id", p.ID.String()),
		zap.String("ballot_id", rec.ID.String()),
		zap.String("choice_id", choice.ID.String()),
	)
	return rec, nil
}

// Results reads the counters from the ledger, going through the cache when one is configured.
func (s *TallyService) Results(ctx context.Context, pollID uuid.UUID) (*poll.Results, error) {
	log := s.logger.FromContext(ctx)
	if s.cache != nil {
		cached, err := s.cache.GetResults(ctx, pollID)
		if err != nil {
			log.Logger.Warn("results cache read failed", zap.String("poll_id", pollID.String()), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	p, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	choices, err := s.tally.Results(ctx, pollID)
	if err != nil {
		return nil, err
	}
	ballots, err := s.tally.CountBallots(ctx, pollID)
	if err != nil {
		return nil, err
	}
	res := poll.BuildResults(p, choices, ballots)

	if s.cache != nil {
		if err := s.cache.SetResults(ctx, res); err != nil {
			log.Logger.Warn("results cache write failed", zap.String("poll_id", pollID.String()), zap.Error(err))
		}
	}
	return res, nil
}

// MyBallot returns the participant's ballot in a poll.
func (s *TallyService) MyBallot(ctx context.Context, participantID, pollID uuid.UUID) (*ballot.Record, error) {
	return s.tally.GetBallot(ctx, participantID, pollID)
}
