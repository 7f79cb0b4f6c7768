package poll

import (
	"fmt"
	"strings"
	"time"

	ballot_errors "ballot-engine/pkg/errors"
)

// Day truncates t to its UTC calendar date. All lifecycle comparisons are day based.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateNew checks a poll before it is first persisted.
func ValidateNew(p *Poll, now time.Time) error {
	if !p.Kind.Valid() {
		return fmt.Errorf("kind %q: %w", p.Kind, ballot_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required: %w", ballot_errors.ErrInvalidInput)
	}
	if p.Status != StatusDraft && p.Status != StatusScheduled {
		return fmt.Errorf("status %q: %w", p.Status, ballot_errors.ErrInvalidStatus)
	}
	today := Day(now)
	if Day(p.StartDate).Before(today) {
		return fmt.Errorf("start date cannot be in the past: %w", ballot_errors.ErrInvalidDates)
	}
	if !Day(p.EndDate).After(Day(p.StartDate)) {
		return fmt.Errorf("end date must be after start date: %w", ballot_errors.ErrInvalidDates)
	}
	switch p.Kind {
	case KindElection:
		if !p.ElectionType.Valid() {
			return fmt.Errorf("election type %q: %w", p.ElectionType, ballot_errors.ErrInvalidInput)
		}
	case KindReferendum, KindSurveyQuestion:
		if strings.TrimSpace(p.Question) == "" {
			return fmt.Errorf("question is required: %w", ballot_errors.ErrInvalidInput)
		}
	}
	for i := range p.Choices {
		if err := ValidateChoice(p, &p.Choices[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateChoice checks that a choice kind fits the poll kind.
func ValidateChoice(p *Poll, c *Choice) error {
	if strings.TrimSpace(c.Label) == "" {
		return fmt.Errorf("choice label is required: %w", ballot_errors.ErrInvalidInput)
	}
	switch p.Kind {
	case KindElection:
		if c.Kind != ChoiceCandidate && c.Kind != ChoiceParty {
			return fmt.Errorf("election choice kind %q: %w", c.Kind, ballot_errors.ErrInvalidInput)
		}
		if c.Kind == ChoiceParty && c.PartyID.Valid {
			return fmt.Errorf("party cannot belong to a party: %w", ballot_errors.ErrInvalidInput)
		}
	default:
		if c.Kind != ChoiceOption {
			return fmt.Errorf("%s choice kind %q: %w", strings.ToLower(string(p.Kind)), c.Kind, ballot_errors.ErrInvalidInput)
		}
		if c.PartyID.Valid {
			return fmt.Errorf("options have no party: %w", ballot_errors.ErrInvalidInput)
		}
	}
	return nil
}

// CanTransition reports whether the poll may move to status to on the given day.
func (p *Poll) CanTransition(to Status, now time.Time) error {
	today := Day(now)
	start, end := Day(p.StartDate), Day(p.EndDate)

	switch {
	case p.Status == StatusDraft && to == StatusScheduled:
		if start.Before(today) {
			return fmt.Errorf("cannot schedule, start date %s is in the past: %w", start.Format(time.DateOnly), ballot_errors.ErrInvalidTransition)
		}
		return nil
	case p.Status == StatusScheduled && to == StatusOpen:
		if today.Before(start) || today.After(end) {
			return fmt.Errorf("cannot open outside %s..%s: %w", start.Format(time.DateOnly), end.Format(time.DateOnly), ballot_errors.ErrInvalidTransition)
		}
		return nil
	case p.Status == StatusOpen && to == StatusClosed:
		if today.Before(end) {
			return fmt.Errorf("cannot close before %s: %w", end.Format(time.DateOnly), ballot_errors.ErrInvalidTransition)
		}
		return nil
	}
	return fmt.Errorf("%s -> %s: %w", p.Status, to, ballot_errors.ErrInvalidTransition)
}

// Update carries optional changes. Nil fields are left untouched.
type Update struct {
	Title        *string
	Description  *string
	Question     *string
	ElectionType *ElectionType
	StartDate    *time.Time
	EndDate      *time.Time
	Status       *Status
}

// Apply mutates p according to u, enforcing the draft-only rules and the transition table.
// On error p is left unchanged.
func (p *Poll) Apply(u Update, now time.Time) error {
	next := *p

	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return fmt.Errorf("title is required: %w", ballot_errors.ErrInvalidInput)
		}
		next.Title = *u.Title
	}
	if u.Description != nil {
		next.Description = *u.Description
	}

	frozen := p.Status != StatusDraft
	if u.Question != nil && *u.Question != p.Question {
		if frozen {
			return fmt.Errorf("question: %w", ballot_errors.ErrImmutableField)
		}
		next.Question = *u.Question
	}
	if u.ElectionType != nil && *u.ElectionType != p.ElectionType {
		if frozen {
			return fmt.Errorf("election type: %w", ballot_errors.ErrImmutableField)
		}
		if p.Kind != KindElection || !u.ElectionType.Valid() {
			return fmt.Errorf("election type %q: %w", *u.ElectionType, ballot_errors.ErrInvalidInput)
		}
		next.ElectionType = *u.ElectionType
	}
	if u.StartDate != nil && !Day(*u.StartDate).Equal(Day(p.StartDate)) {
		if frozen {
			return fmt.Errorf("start date: %w", ballot_errors.ErrImmutableField)
		}
		next.StartDate = Day(*u.StartDate)
	}
	if u.EndDate != nil && !Day(*u.EndDate).Equal(Day(p.EndDate)) {
		if frozen {
			return fmt.Errorf("end date: %w", ballot_errors.ErrImmutableField)
		}
		next.EndDate = Day(*u.EndDate)
	}
	if !Day(next.EndDate).After(Day(next.StartDate)) {
		return fmt.Errorf("end date must be after start date: %w", ballot_errors.ErrInvalidDates)
	}

	if u.Status != nil && *u.Status != p.Status {
		if err := next.CanTransition(*u.Status, now); err != nil {
			return err
		}
		next.Status = *u.Status
	}

	next.UpdatedAt = now
	*p = next
	return nil
}

// CanDelete only allows removing drafts.
func (p *Poll) CanDelete() error {
	if p.Status != StatusDraft {
		return fmt.Errorf("delete %s poll: %w", p.Status, ballot_errors.ErrNotDraft)
	}
	return nil
}

// CanEditChoices allows choice changes in draft. Survey questions stay editable while scheduled.
func (p *Poll) CanEditChoices() error {
	if p.Status == StatusDraft {
		return nil
	}
	if p.Kind == KindSurveyQuestion && p.Status == StatusScheduled {
		return nil
	}
	return fmt.Errorf("choices of %s poll: %w", p.Status, ballot_errors.ErrImmutableField)
}
