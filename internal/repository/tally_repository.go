package repository

import (
	"context"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/outbox"
	"ballot-engine/internal/domain/poll"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresTallyRepository struct {
	db *gorm.DB
}

func NewTallyRepository(db *gorm.DB) TallyRepository {
	return &PostgresTallyRepository{db: db}
}

// RecordBallot relies on the unique (participant_id, poll_id) index: a concurrent duplicate
// blocks on the index until the first transaction ends, then fails with 23505.
func (r *PostgresTallyRepository) RecordBallot(ctx context.Context, rec *ballot.Record, event *outbox.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			if isUniqueViolation(err) {
				return ballot_errors.ErrAlreadyVoted
			}
			return err
		}

		res := tx.Model(&poll.Choice{}).
			Where("id = ? AND poll_id = ?", rec.ChoiceID, rec.PollID).
			Where("EXISTS (SELECT 1 FROM polls WHERE polls.id = poll_choices.poll_id AND polls.status = ?)", poll.StatusOpen).
			UpdateColumn("vote_count", gorm.Expr("vote_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ballot_errors.ErrPollNotOpen
		}

		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresTallyRepository) GetBallot(ctx context.Context, participantID, pollID uuid.UUID) (*ballot.Record, error) {
	var rec ballot.Record
	err := r.db.WithContext(ctx).
		Where("participant_id = ? AND poll_id = ?", participantID, pollID).
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *PostgresTallyRepository) Results(ctx context.Context, pollID uuid.UUID) ([]poll.Choice, error) {
	var choices []poll.Choice
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("position ASC, created_at ASC").
		Find(&choices).Error
	if err != nil {
		return nil, err
	}
	return choices, nil
}

func (r *PostgresTallyRepository) CountBallots(ctx context.Context, pollID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&ballot.Record{}).Where("poll_id = ?", pollID).Count(&n).Error
	return n, err
}
