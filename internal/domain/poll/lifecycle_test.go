package poll

import (
	"errors"
	"testing"
	"time"

	ballot_errors "ballot-engine/pkg/errors"

	"github.com/google/uuid"
)

var now = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return Day(now).AddDate(0, 0, offset)
}

func newElection(status Status, start, end time.Time) *Poll {
	return &Poll{
		ID:           uuid.New(),
		Kind:         KindElection,
		Status:       status,
		Title:        "General election",
		ElectionType: ElectionParliamentary,
		StartDate:    start,
		EndDate:      end,
	}
}

func TestValidateNew(t *testing.T) {
	tests := []struct {
		name    string
		poll    *Poll
		wantErr error
	}{
		{"draft today", newElection(StatusDraft, day(0), day(1)), nil},
		{"scheduled future", newElection(StatusScheduled, day(3), day(5)), nil},
		{"open rejected", newElection(StatusOpen, day(0), day(1)), ballot_errors.ErrInvalidStatus},
		{"closed rejected", newElection(StatusClosed, day(0), day(1)), ballot_errors.ErrInvalidStatus},
		{"start in past", newElection(StatusDraft, day(-1), day(1)), ballot_errors.ErrInvalidDates},
		{"end equals start", newElection(StatusDraft, day(2), day(2)), ballot_errors.ErrInvalidDates},
		{"end before start", newElection(StatusDraft, day(2), day(1)), ballot_errors.ErrInvalidDates},
		{"missing election type", &Poll{Kind: KindElection, Status: StatusDraft, Title: "x", StartDate: day(0), EndDate: day(1)}, ballot_errors.ErrInvalidInput},
		{"referendum needs question", &Poll{Kind: KindReferendum, Status: StatusDraft, Title: "x", StartDate: day(0), EndDate: day(1)}, ballot_errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNew(tt.poll, now)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChoiceKinds(t *testing.T) {
	election := newElection(StatusDraft, day(0), day(1))
	if err := ValidateChoice(election, &Choice{Kind: ChoiceOption, Label: "Yes"}); !errors.Is(err, ballot_errors.ErrInvalidInput) {
		t.Fatalf("option on election: got %v", err)
	}
	referendum := &Poll{Kind: KindReferendum}
	if err := ValidateChoice(referendum, &Choice{Kind: ChoiceCandidate, Label: "Ann"}); !errors.Is(err, ballot_errors.ErrInvalidInput) {
		t.Fatalf("candidate on referendum: got %v", err)
	}
	if err := ValidateChoice(referendum, &Choice{Kind: ChoiceOption, Label: "Yes"}); err != nil {
		t.Fatalf("option on referendum: %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  Status
		to    Status
		start time.Time
		end   time.Time
		ok    bool
	}{
		{"draft to scheduled", StatusDraft, StatusScheduled, day(0), day(2), true},
		{"draft to scheduled past start", StatusDraft, StatusScheduled, day(-1), day(2), false},
		{"draft to open skips", StatusDraft, StatusOpen, day(0), day(2), false},
		{"scheduled to open in window", StatusScheduled, StatusOpen, day(-1), day(1), true},
		{"scheduled to open on start", StatusScheduled, StatusOpen, day(0), day(1), true},
		{"scheduled to open on end", StatusScheduled, StatusOpen, day(-2), day(0), true},
		{"scheduled to open early", StatusScheduled, StatusOpen, day(1), day(3), false},
		{"scheduled to open late", StatusScheduled, StatusOpen, day(-3), day(-1), false},
		{"open to closed on end", StatusOpen, StatusClosed, day(-2), day(0), true},
		{"open to closed after end", StatusOpen, StatusClosed, day(-5), day(-1), true},
		{"open to closed early", StatusOpen, StatusClosed, day(-1), day(1), false},
		{"open to draft", StatusOpen, StatusDraft, day(-1), day(1), false},
		{"scheduled to closed", StatusScheduled, StatusClosed, day(-3), day(-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newElection(tt.from, tt.start, tt.end)
			err := p.CanTransition(tt.to, now)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ballot_errors.ErrInvalidTransition) {
				t.Fatalf("got %v, want invalid transition", err)
			}
		})
	}
}

func TestClosedIsTerminal(t *testing.T) {
	p := newElection(StatusClosed, day(-5), day(-1))
	for _, to := range []Status{StatusDraft, StatusScheduled, StatusOpen, StatusClosed} {
		if err := p.CanTransition(to, now); !errors.Is(err, ballot_errors.ErrInvalidTransition) {
			t.Fatalf("closed -> %s: got %v", to, err)
		}
	}
}

func TestApplyDraftEditsEverything(t *testing.T) {
	p := newElection(StatusDraft, day(1), day(3))
	title := "Renamed"
	start, end := day(2), day(6)
	typ := ElectionPresidential
	if err := p.Apply(Update{Title: &title, StartDate: &start, EndDate: &end, ElectionType: &typ}, now); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.Title != title || !p.StartDate.Equal(start) || !p.EndDate.Equal(end) || p.ElectionType != typ {
		t.Fatalf("update not applied: %+v", p)
	}
}

func TestApplyFrozenFields(t *testing.T) {
	p := newElection(StatusScheduled, day(1), day(3))
	orig := *p

	start := day(2)
	if err := p.Apply(Update{StartDate: &start}, now); !errors.Is(err, ballot_errors.ErrImmutableField) {
		t.Fatalf("start date after draft: got %v", err)
	}
	typ := ElectionLocal
	if err := p.Apply(Update{ElectionType: &typ}, now); !errors.Is(err, ballot_errors.ErrImmutableField) {
		t.Fatalf("election type after draft: got %v", err)
	}
	if p.StartDate != orig.StartDate || p.ElectionType != orig.ElectionType {
		t.Fatalf("poll mutated on failed apply")
	}

	desc := "new description"
	if err := p.Apply(Update{Description: &desc}, now); err != nil {
		t.Fatalf("description after draft: %v", err)
	}
	same := day(1)
	if err := p.Apply(Update{StartDate: &same}, now); err != nil {
		t.Fatalf("unchanged date should pass: %v", err)
	}
}

func TestApplyStatusUsesNewDates(t *testing.T) {
	p := newElection(StatusDraft, day(0), day(3))
	start, end := day(5), day(8)
	scheduled := StatusScheduled
	if err := p.Apply(Update{StartDate: &start, EndDate: &end, Status: &scheduled}, now); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.Status != StatusScheduled {
		t.Fatalf("status = %s", p.Status)
	}

	open := StatusOpen
	if err := p.Apply(Update{Status: &open}, now); !errors.Is(err, ballot_errors.ErrInvalidTransition) {
		t.Fatalf("open before start: got %v", err)
	}
	if p.Status != StatusScheduled {
		t.Fatalf("status changed on failed apply: %s", p.Status)
	}
}

func TestCanDelete(t *testing.T) {
	if err := newElection(StatusDraft, day(0), day(1)).CanDelete(); err != nil {
		t.Fatalf("draft delete: %v", err)
	}
	for _, s := range []Status{StatusScheduled, StatusOpen, StatusClosed} {
		if err := newElection(s, day(0), day(1)).CanDelete(); !errors.Is(err, ballot_errors.ErrNotDraft) {
			t.Fatalf("%s delete: got %v", s, err)
		}
	}
}

func TestCanEditChoices(t *testing.T) {
	survey := &Poll{Kind: KindSurveyQuestion, Status: StatusScheduled}
	if err := survey.CanEditChoices(); err != nil {
		t.Fatalf("scheduled survey: %v", err)
	}
	survey.Status = StatusOpen
	if err := survey.CanEditChoices(); !errors.Is(err, ballot_errors.ErrImmutableField) {
		t.Fatalf("open survey: got %v", err)
	}
	election := newElection(StatusScheduled, day(0), day(1))
	if err := election.CanEditChoices(); !errors.Is(err, ballot_errors.ErrImmutableField) {
		t.Fatalf("scheduled election: got %v", err)
	}
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Page: -1, Size: 1000}.Normalize()
	if f.Page != 0 || f.Size != 100 {
		t.Fatalf("normalize = %+v", f)
	}
	f = Filter{Page: 2}.Normalize()
	if f.Size != 20 || f.Offset() != 40 {
		t.Fatalf("normalize = %+v offset %d", f, f.Offset())
	}
}
