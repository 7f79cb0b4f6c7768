package services

import (
	"context"
	"encoding/json"
	"time"

	"ballot-engine/internal/aggregation"
	"ballot-engine/internal/events"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LiveUpdate is pushed to live result subscribers after every ingested vote.
type LiveUpdate struct {
	PollID  uuid.UUID                 `json:"poll_id"`
	Total   int64                     `json:"total"`
	Results []aggregation.ChoiceCount `json:"results"`
}

// IngestService consumes envelopes from the vote stream.
// Votes feed the aggregation engine; a closed poll is archived.
// Nothing here returns an error to the stream: failures are logged and the entry is acknowledged.
type IngestService struct {
	engine   *aggregation.Engine
	archiver *ArchiveService
	live     events.Publisher
	logger   *logger.Logger
	// archiveTimeout bounds the upload so a stalled object store cannot hold the consumer.
	archiveTimeout time.Duration
}

const defaultArchiveTimeout = 30 * time.Second

func NewIngestService(engine *aggregation.Engine, archiver *ArchiveService, live events.Publisher, l *logger.Logger) *IngestService {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &IngestService{engine: engine, archiver: archiver, live: live, logger: l, archiveTimeout: defaultArchiveTimeout}
}

func (s *IngestService) WithArchiveTimeout(d time.Duration) *IngestService {
	if d > 0 {
		s.archiveTimeout = d
	}
	return s
}

func (s *IngestService) Handle(ctx context.Context, env events.Envelope) {
	switch env.EventType {
	case events.EventTypeVoteCast:
		s.handleVote(ctx, env)
	case events.EventTypePollClosed:
		s.handleClosed(ctx, env)
	default:
		s.logger.Logger.Debug("ignoring event", zap.String("event_type", env.EventType))
	}
}

func (s *IngestService) handleVote(ctx context.Context, env events.Envelope) {
	s.engine.IngestPayload(ctx, env.Payload)

	if s.live == nil {
		return
	}
	pollID, err := uuid.Parse(env.AggregateID)
	if err != nil {
		return
	}
	results := s.engine.Results(pollID)
	update := LiveUpdate{PollID: pollID, Results: results}
	for _, r := range results {
		update.Total += r.Count
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	if err := s.live.Publish(ctx, events.PollChannel(pollID.String()), payload); err != nil {
		s.logger.Logger.Warn("live results publish failed",
			zap.String("poll_id", pollID.String()),
			zap.String("error_kind", string(ballot_errors.KindChannel)),
			zap.Error(err),
		)
	}
}

func (s *IngestService) handleClosed(ctx context.Context, env events.Envelope) {
	if s.archiver == nil {
		return
	}
	pollID, err := uuid.Parse(env.AggregateID)
	if err != nil {
		s.logger.Logger.Warn("dropping poll.closed event",
			zap.String("aggregate_id", env.AggregateID),
			zap.String("error_kind", string(ballot_errors.KindIngestion)),
		)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.archiveTimeout)
	defer cancel()
	if err := s.archiver.Archive(ctx, pollID); err != nil {
		s.logger.Logger.Error("poll archive failed", zap.String("poll_id", pollID.String()), zap.Error(err))
	}
}
