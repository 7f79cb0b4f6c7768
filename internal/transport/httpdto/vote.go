package httpdto

import (
	"fmt"
	"time"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/poll"
)

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
	PartyID     string `json:"party_id"`
	OptionID    string `json:"option_id"`
}

func (r CastVoteRequest) ToSelection() (ballot.Selection, error) {
	var sel ballot.Selection
	var err error
	if sel.CandidateID, err = parseOptionalUUID(r.CandidateID); err != nil {
		return sel, fmt.Errorf("invalid candidate id")
	}
	if sel.PartyID, err = parseOptionalUUID(r.PartyID); err != nil {
		return sel, fmt.Errorf("invalid party id")
	}
	if sel.OptionID, err = parseOptionalUUID(r.OptionID); err != nil {
		return sel, fmt.Errorf("invalid option id")
	}
	return sel, nil
}

// BallotResponse confirms a recorded vote to its owner.
type BallotResponse struct {
	ID       string    `json:"id"`
	PollID   string    `json:"poll_id"`
	ChoiceID string    `json:"choice_id"`
	CastAt   time.Time `json:"cast_at"`
}

func FromBallot(r *ballot.Record) BallotResponse {
	return BallotResponse{
		ID:       r.ID.String(),
		PollID:   r.PollID.String(),
		ChoiceID: r.ChoiceID.String(),
		CastAt:   r.CastAt,
	}
}

// ResultsResponse is the ledger tally; elections split candidates from parties.
type ResultsResponse struct {
	*poll.Results
	CandidateResults []poll.ChoiceResult `json:"candidate_results,omitempty"`
	PartyResults     []poll.ChoiceResult `json:"party_results,omitempty"`
}

func FromResults(r *poll.Results) ResultsResponse {
	out := ResultsResponse{Results: r}
	if r.Kind == poll.KindElection {
		out.CandidateResults = r.Candidates()
		out.PartyResults = r.Parties()
	}
	return out
}
