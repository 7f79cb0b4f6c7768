package outbox

import (
	"context"
	"encoding/json"
	"time"

	"ballot-engine/internal/events"
	"ballot-engine/internal/repository"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Processor relays pending outbox rows onto the vote streams.
// A relay failure only reschedules the row; the committed ballot is never touched.
type Processor struct {
	repo       repository.OutboxRepository
	publisher  events.Publisher
	resolver   *events.StreamResolver
	logger     *logger.Logger
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	maxRetries int
	lease      time.Duration
}

const defaultLease = 30 * time.Second

func NewProcessor(repo repository.OutboxRepository, publisher events.Publisher, resolver *events.StreamResolver, l *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		resolver:   resolver,
		logger:     l,
		clock:      time.Now,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
		lease:      defaultLease,
	}
}

// WithLease sets how long a claimed row stays hidden from other relays.
func (p *Processor) WithLease(d time.Duration) *Processor {
	if d > 0 {
		p.lease = d
	}
	return p
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch relays one batch and returns how many rows were published.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	eventsBatch, err := p.repo.ClaimPending(ctx, p.clock(), p.lease, p.batchSize)
	if err != nil {
		p.logger.Logger.Error("outbox claim failed", zap.Error(err))
		return 0
	}

	published := 0
	// a failed poll stops further relays for that poll in this batch, keeping per-poll order
	blocked := make(map[string]bool)
	var skipped []uuid.UUID
	defer func() {
		if len(skipped) == 0 {
			return
		}
		if err := p.repo.Release(ctx, skipped, p.clock()); err != nil {
			p.logger.Logger.Warn("outbox release failed", zap.Int("events", len(skipped)), zap.Error(err))
		}
	}()
	for _, e := range eventsBatch {
		if blocked[e.AggregateID] {
			skipped = append(skipped, e.ID)
			continue
		}
		if e.RetryCount >= p.maxRetries {
			_ = p.repo.MarkDead(ctx, e.ID, "max retries exceeded")
			p.logger.Logger.Error("outbox event dead",
				zap.String("event_id", e.ID.String()),
				zap.String("aggregate_id", e.AggregateID),
				zap.String("error_kind", string(ballot_errors.KindChannel)),
			)
			continue
		}

		env := events.Envelope{
			ID:            e.ID.String(),
			EventType:     e.EventType,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			OccurredAt:    e.CreatedAt.UTC(),
			Payload:       json.RawMessage(e.Payload),
		}
		payload, err := json.Marshal(env)
		if err != nil {
			_ = p.repo.MarkDead(ctx, e.ID, err.Error())
			continue
		}

		stream := p.resolver.Resolve(env)
		if err := p.publisher.Publish(ctx, stream, payload); err != nil {
			blocked[e.AggregateID] = true
			_ = p.repo.MarkFailed(ctx, e.ID, p.clock().Add(backoff(e.RetryCount)), err.Error())
			p.logger.Logger.Warn("outbox publish failed",
				zap.String("event_id", e.ID.String()),
				zap.String("stream", stream),
				zap.Int("attempt", e.RetryCount+1),
				zap.String("error_kind", string(ballot_errors.KindChannel)),
				zap.Error(err),
			)
			continue
		}

		if err := p.repo.MarkCompleted(ctx, e.ID); err != nil {
			// the entry is already on the stream; a retry would deliver it twice
			p.logger.Logger.Warn("outbox mark completed failed", zap.String("event_id", e.ID.String()), zap.Error(err))
		}
		published++
	}
	return published
}

func backoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > time.Minute || d <= 0 {
		return time.Minute
	}
	return d
}
