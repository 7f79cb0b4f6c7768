package poll

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the poll variant.
type Kind string

const (
	KindElection       Kind = "ELECTION"
	KindReferendum     Kind = "REFERENDUM"
	KindSurveyQuestion Kind = "SURVEY_QUESTION"
)

func (k Kind) Valid() bool {
	switch k {
	case KindElection, KindReferendum, KindSurveyQuestion:
		return true
	}
	return false
}

// Status is the lifecycle state of a poll.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusOpen      Status = "OPEN"
	StatusClosed    Status = "CLOSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusOpen, StatusClosed:
		return true
	}
	return false
}

// ElectionType only applies to elections and is frozen with the dates.
type ElectionType string

const (
	ElectionPresidential  ElectionType = "PRESIDENTIAL"
	ElectionParliamentary ElectionType = "PARLIAMENTARY"
	ElectionLocal         ElectionType = "LOCAL"
)

func (t ElectionType) Valid() bool {
	switch t {
	case ElectionPresidential, ElectionParliamentary, ElectionLocal:
		return true
	}
	return false
}

// ChoiceKind tells which selection field targets a choice.
type ChoiceKind string

const (
	ChoiceCandidate ChoiceKind = "CANDIDATE"
	ChoiceParty     ChoiceKind = "PARTY"
	ChoiceOption    ChoiceKind = "OPTION"
)

// Poll represents polls
type Poll struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Kind         Kind          `gorm:"type:varchar(20);not null;index:idx_polls_kind_status,priority:1"`
	Status       Status        `gorm:"type:varchar(20);not null;index:idx_polls_kind_status,priority:2"`
	Title        string        `gorm:"type:varchar(200);not null"`
	Description  string        `gorm:"type:text"`
	ElectionType ElectionType  `gorm:"type:varchar(20)"`
	Question     string        `gorm:"type:text"`
	SurveyID     uuid.NullUUID `gorm:"type:uuid;index"`
	StartDate    time.Time     `gorm:"type:date;not null"`
	EndDate      time.Time     `gorm:"type:date;not null"`
	CreatedBy    uuid.NullUUID `gorm:"type:uuid"`
	CreatedAt    time.Time     `gorm:"not null;default:now()"`
	UpdatedAt    time.Time     `gorm:"not null;default:now()"`

	Choices []Choice `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
}

// Choice represents poll_choices. A candidate may point at a party choice of the same poll.
type Choice struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	PollID    uuid.UUID     `gorm:"type:uuid;not null;index"`
	Kind      ChoiceKind    `gorm:"type:varchar(20);not null"`
	Label     string        `gorm:"type:varchar(200);not null"`
	PartyID   uuid.NullUUID `gorm:"type:uuid"`
	Position  int           `gorm:"not null;default:0"`
	VoteCount int64         `gorm:"not null;default:0;check:vote_count >= 0"`
	CreatedAt time.Time     `gorm:"not null;default:now()"`
}

func (Poll) TableName() string {
	return "polls"
}

func (Choice) TableName() string {
	return "poll_choices"
}

// FindChoice returns the choice with the given id if it belongs to the poll.
func (p *Poll) FindChoice(id uuid.UUID) (*Choice, bool) {
	for i := range p.Choices {
		if p.Choices[i].ID == id {
			return &p.Choices[i], true
		}
	}
	return nil, false
}

// Filter narrows poll listings. Zero values match everything.
type Filter struct {
	Kind     Kind
	Status   Status
	SurveyID uuid.NullUUID
	Page     int
	Size     int
}

// Normalize clamps paging to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Size <= 0 {
		f.Size = 20
	}
	if f.Size > 100 {
		f.Size = 100
	}
	return f
}

func (f Filter) Offset() int {
	return f.Page * f.Size
}
