package websocket

import (
	"context"
	"errors"

	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/repository"
	"ballot-engine/internal/services"
	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

// ChannelAuthorizer decides which poll channels a connection may watch.
// Drafts are private to admins; every published poll is public.
type ChannelAuthorizer struct {
	polls repository.PollRepository
}

func NewChannelAuthorizer(polls repository.PollRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{polls: polls}
}

func (a *ChannelAuthorizer) CanWatch(ctx context.Context, pollID uuid.UUID, role string) (bool, error) {
	p, err := a.polls.GetByID(ctx, pollID)
	if errors.Is(err, ballot_errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.Status == poll.StatusDraft {
		return role == services.RoleAdmin, nil
	}
	return true, nil
}
