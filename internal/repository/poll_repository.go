package repository

import (
	"context"
	"fmt"

	"ballot-engine/internal/domain/outbox"
	"ballot-engine/internal/domain/poll"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresPollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) PollRepository {
	return &PostgresPollRepository{db: db}
}

func (r *PostgresPollRepository) Create(ctx context.Context, p *poll.Poll) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *PostgresPollRepository) GetByID(ctx context.Context, id uuid.UUID) (*poll.Poll, error) {
	var p poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PostgresPollRepository) List(ctx context.Context, filter poll.Filter) ([]poll.Poll, int64, error) {
	filter = filter.Normalize()
	q := r.db.WithContext(ctx).Model(&poll.Poll{})
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SurveyID.Valid {
		q = q.Where("survey_id = ?", filter.SurveyID.UUID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var polls []poll.Poll
	err := q.Preload("Choices", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, created_at ASC")
	}).
		Order("start_date ASC, created_at ASC").
		Offset(filter.Offset()).
		Limit(filter.Size).
		Find(&polls).Error
	if err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

func (r *PostgresPollRepository) Update(ctx context.Context, p *poll.Poll, expected poll.Status, event *outbox.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPollStatus(tx, p.ID, expected); err != nil {
			return err
		}
		res := tx.Model(&poll.Poll{}).
			Where("id = ? AND status = ?", p.ID, expected).
			Updates(map[string]interface{}{
				"title":         p.Title,
				"description":   p.Description,
				"question":      p.Question,
				"election_type": p.ElectionType,
				"start_date":    p.StartDate,
				"end_date":      p.EndDate,
				"status":        p.Status,
				"updated_at":    p.UpdatedAt,
			})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return statusChanged(expected)
		}
		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// lockPollStatus row-locks the poll and checks it is still in the expected status.
// Transitions update the same row, so they queue behind the lock.
func lockPollStatus(tx *gorm.DB, pollID uuid.UUID, expected poll.Status) error {
	var current poll.Poll
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "status").
		Where("id = ?", pollID).
		First(&current).Error
	if err != nil {
		return translate(err)
	}
	if current.Status != expected {
		return statusChanged(expected)
	}
	return nil
}

func statusChanged(expected poll.Status) error {
	return fmt.Errorf("poll is no longer %s: %w", expected, ballot_errors.ErrConflict)
}

func (r *PostgresPollRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("poll_id = ?", id).Delete(&poll.Choice{}).Error; err != nil {
			return err
		}
		// status guard keeps a concurrent transition from racing the delete
		res := tx.Where("id = ? AND status = ?", id, poll.StatusDraft).Delete(&poll.Poll{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ballot_errors.ErrNotDraft
		}
		return nil
	})
}

func (r *PostgresPollRepository) AddChoice(ctx context.Context, c *poll.Choice, expected poll.Status) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPollStatus(tx, c.PollID, expected); err != nil {
			return err
		}
		return translate(tx.Create(c).Error)
	})
}

func (r *PostgresPollRepository) UpdateChoice(ctx context.Context, c *poll.Choice, expected poll.Status) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPollStatus(tx, c.PollID, expected); err != nil {
			return err
		}
		res := tx.Model(&poll.Choice{}).
			Where("id = ? AND poll_id = ?", c.ID, c.PollID).
			Updates(map[string]interface{}{
				"label":    c.Label,
				"party_id": c.PartyID,
				"position": c.Position,
			})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ballot_errors.ErrNotFound
		}
		return nil
	})
}

func (r *PostgresPollRepository) DeleteChoice(ctx context.Context, pollID, choiceID uuid.UUID, expected poll.Status) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPollStatus(tx, pollID, expected); err != nil {
			return err
		}
		var choice poll.Choice
		if err := tx.Where("id = ? AND poll_id = ?", choiceID, pollID).First(&choice).Error; err != nil {
			return translate(err)
		}
		if choice.VoteCount > 0 {
			return fmt.Errorf("choice has %d votes: %w", choice.VoteCount, ballot_errors.ErrConflict)
		}
		return tx.Delete(&poll.Choice{}, "id = ?", choiceID).Error
	})
}
