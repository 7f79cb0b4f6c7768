package repository

import (
	"context"
	"time"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/outbox"
	"ballot-engine/internal/domain/poll"

	"github.com/google/uuid"
)

type PollRepository interface {
	Create(ctx context.Context, p *poll.Poll) error
	// GetByID loads the poll with its choices ordered by position.
	GetByID(ctx context.Context, id uuid.UUID) (*poll.Poll, error)
	List(ctx context.Context, filter poll.Filter) ([]poll.Poll, int64, error)
	// Update persists poll fields only while the stored status still equals expected,
	// else ErrConflict. A non-nil event is stored in the same transaction.
	Update(ctx context.Context, p *poll.Poll, expected poll.Status, event *outbox.OutboxEvent) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Choice writes carry the poll status the edit was checked against and fail with
	// ErrConflict once the poll has moved on.
	AddChoice(ctx context.Context, c *poll.Choice, expected poll.Status) error
	UpdateChoice(ctx context.Context, c *poll.Choice, expected poll.Status) error
	// DeleteChoice fails with ErrConflict for a choice that already has votes.
	DeleteChoice(ctx context.Context, pollID, choiceID uuid.UUID, expected poll.Status) error
}

type TallyRepository interface {
	// RecordBallot inserts the ballot, increments the chosen counter and stores the event
	// as one unit. It returns ErrAlreadyVoted on a duplicate (participant, poll) and
	// ErrPollNotOpen if the poll left OPEN in the meantime.
	RecordBallot(ctx context.Context, rec *ballot.Record, event *outbox.OutboxEvent) error
	GetBallot(ctx context.Context, participantID, pollID uuid.UUID) (*ballot.Record, error)
	// Results returns the ledger counters of a poll.
	Results(ctx context.Context, pollID uuid.UUID) ([]poll.Choice, error)
	CountBallots(ctx context.Context, pollID uuid.UUID) (int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *outbox.OutboxEvent) error
	// ClaimPending moves due events to PROCESSING for lease and returns them oldest first.
	// An event is skipped while an older event of the same aggregate is waiting for a retry
	// or is claimed by another relay. A claim whose lease ran out is due again.
	ClaimPending(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]outbox.OutboxEvent, error)
	// Release hands claimed events back as due at now.
	Release(ctx context.Context, ids []uuid.UUID, now time.Time) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// MarkFailed records an attempt and schedules the next one.
	MarkFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMsg string) error
	// MarkDead gives up on an event. Dead events no longer hold back their aggregate.
	MarkDead(ctx context.Context, id uuid.UUID, errorMsg string) error
}
