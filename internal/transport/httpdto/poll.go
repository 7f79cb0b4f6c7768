package httpdto

import (
	"fmt"
	"time"

	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/services"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

type ChoiceRequest struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	PartyID  string `json:"party_id"`
	Position int    `json:"position"`
}

type CreatePollRequest struct {
	Kind         string          `json:"kind" binding:"required"`
	Status       string          `json:"status"`
	Title        string          `json:"title" binding:"required"`
	Description  string          `json:"description"`
	ElectionType string          `json:"election_type"`
	Question     string          `json:"question"`
	SurveyID     string          `json:"survey_id"`
	StartDate    string          `json:"start_date" binding:"required"`
	EndDate      string          `json:"end_date" binding:"required"`
	Choices      []ChoiceRequest `json:"choices"`
}

type UpdatePollRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Question     *string `json:"question"`
	ElectionType *string `json:"election_type"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	Status       *string `json:"status"`
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

func (r ChoiceRequest) ToInput() (services.ChoiceInput, error) {
	in := services.ChoiceInput{
		Kind:     poll.ChoiceKind(r.Kind),
		Label:    r.Label,
		Position: r.Position,
	}
	id, err := parseOptionalUUID(r.ID)
	if err != nil {
		return in, fmt.Errorf("invalid choice id")
	}
	in.ID = id
	party, err := parseOptionalUUID(r.PartyID)
	if err != nil {
		return in, fmt.Errorf("invalid party id")
	}
	in.PartyID = party
	return in, nil
}

func (r CreatePollRequest) ToInput() (services.CreatePollInput, error) {
	in := services.CreatePollInput{
		Kind:         poll.Kind(r.Kind),
		Status:       poll.Status(r.Status),
		Title:        r.Title,
		Description:  r.Description,
		ElectionType: poll.ElectionType(r.ElectionType),
		Question:     r.Question,
	}
	if in.Status == "" {
		in.Status = poll.StatusDraft
	}
	survey, err := parseOptionalUUID(r.SurveyID)
	if err != nil {
		return in, fmt.Errorf("invalid survey id")
	}
	in.SurveyID = survey
	if in.StartDate, err = ParseDate(r.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = ParseDate(r.EndDate); err != nil {
		return in, err
	}
	for _, c := range r.Choices {
		ci, err := c.ToInput()
		if err != nil {
			return in, err
		}
		in.Choices = append(in.Choices, ci)
	}
	return in, nil
}

func (r UpdatePollRequest) ToUpdate() (poll.Update, error) {
	u := poll.Update{
		Title:       r.Title,
		Description: r.Description,
		Question:    r.Question,
	}
	if r.ElectionType != nil {
		et := poll.ElectionType(*r.ElectionType)
		u.ElectionType = &et
	}
	if r.Status != nil {
		st := poll.Status(*r.Status)
		u.Status = &st
	}
	if r.StartDate != nil {
		t, err := ParseDate(*r.StartDate)
		if err != nil {
			return u, err
		}
		u.StartDate = &t
	}
	if r.EndDate != nil {
		t, err := ParseDate(*r.EndDate)
		if err != nil {
			return u, err
		}
		u.EndDate = &t
	}
	return u, nil
}

type ChoiceResponse struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	PartyID  string `json:"party_id,omitempty"`
	Position int    `json:"position"`
}

type PollResponse struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Status       string           `json:"status"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	ElectionType string           `json:"election_type,omitempty"`
	Question     string           `json:"question,omitempty"`
	SurveyID     string           `json:"survey_id,omitempty"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Choices      []ChoiceResponse `json:"choices"`
}

func FromChoice(c *poll.Choice) ChoiceResponse {
	out := ChoiceResponse{
		ID:       c.ID.String(),
		Kind:     string(c.Kind),
		Label:    c.Label,
		Position: c.Position,
	}
	if c.PartyID.Valid {
		out.PartyID = c.PartyID.UUID.String()
	}
	return out
}

// FromPoll leaves vote counters out; results have their own endpoint.
func FromPoll(p *poll.Poll) PollResponse {
	out := PollResponse{
		ID:           p.ID.String(),
		Kind:         string(p.Kind),
		Status:       string(p.Status),
		Title:        p.Title,
		Description:  p.Description,
		ElectionType: string(p.ElectionType),
		Question:     p.Question,
		StartDate:    p.StartDate.UTC().Format(DateLayout),
		EndDate:      p.EndDate.UTC().Format(DateLayout),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Choices:      make([]ChoiceResponse, 0, len(p.Choices)),
	}
	if p.SurveyID.Valid {
		out.SurveyID = p.SurveyID.UUID.String()
	}
	for i := range p.Choices {
		out.Choices = append(out.Choices, FromChoice(&p.Choices[i]))
	}
	return out
}

func FromPollSlice(items []poll.Poll) []PollResponse {
	out := make([]PollResponse, 0, len(items))
	for i := range items {
		out = append(out, FromPoll(&items[i]))
	}
	return out
}
