package repository

import (
	"context"
	"time"

	"ballot-engine/internal/domain/outbox"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresOutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) Create(ctx context.Context, event *outbox.OutboxEvent) error {
	return translate(r.db.WithContext(ctx).Create(event).Error)
}

// claimLockKey serializes claims across relays so the older-event check sees committed claims.
const claimLockKey = 0x0b0ba11

var inFlight = []outbox.Status{outbox.StatusPending, outbox.StatusProcessing}

func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]outbox.OutboxEvent, error) {
	var events []outbox.OutboxEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", claimLockKey).Error; err != nil {
			return err
		}
		q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status IN ? AND next_retry_at <= ?", inFlight, now).
			Where(`NOT EXISTS (
				SELECT 1 FROM outbox_events AS older
				WHERE older.aggregate_id = outbox_events.aggregate_id
				  AND older.status IN ?
				  AND older.next_retry_at > ?
				  AND (older.created_at, older.id) < (outbox_events.created_at, outbox_events.id))`, inFlight, now).
			Order("created_at ASC, id ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&events).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(events))
		for i := range events {
			ids[i] = events[i].ID
			events[i].Status = outbox.StatusProcessing
			events[i].NextRetryAt = now.Add(lease)
		}
		return tx.Model(&outbox.OutboxEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":        outbox.StatusProcessing,
				"next_retry_at": now.Add(lease),
				"updated_at":    now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresOutboxRepository) Release(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&outbox.OutboxEvent{}).
		Where("id IN ? AND status = ?", ids, outbox.StatusProcessing).
		Updates(map[string]interface{}{
			"status":        outbox.StatusPending,
			"next_retry_at": now,
			"updated_at":    now,
		}).Error
}

func (r *PostgresOutboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&outbox.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       outbox.StatusCompleted,
			"processed_at": &now,
			"updated_at":   now,
		}).Error
}

func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMsg string) error {
	return r.db.WithContext(ctx).Model(&outbox.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        outbox.StatusPending,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"next_retry_at": nextRetryAt,
			"error":         errorMsg,
			"updated_at":    time.Now(),
		}).Error
}

func (r *PostgresOutboxRepository) MarkDead(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.db.WithContext(ctx).Model(&outbox.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     outbox.StatusDead,
			"error":      errorMsg,
			"updated_at": time.Now(),
		}).Error
}
