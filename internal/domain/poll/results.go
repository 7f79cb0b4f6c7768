package poll

import "github.com/google/uuid"

// ChoiceResult is one ledger counter.
type ChoiceResult struct {
	ChoiceID uuid.UUID     `json:"choice_id"`
	Kind     ChoiceKind    `json:"kind"`
	Label    string        `json:"label"`
	PartyID  uuid.NullUUID `json:"party_id"`
	Votes    int64         `json:"votes"`
}

// Results is the tally read from the ballot ledger.
type Results struct {
	PollID       uuid.UUID      `json:"poll_id"`
	Kind         Kind           `json:"kind"`
	Status       Status         `json:"status"`
	TotalBallots int64          `json:"total_ballots"`
	Choices      []ChoiceResult `json:"choices"`
}

// Candidates and Parties split election results the way reports present them.
func (r *Results) Candidates() []ChoiceResult { return r.byKind(ChoiceCandidate) }

func (r *Results) Parties() []ChoiceResult { return r.byKind(ChoiceParty) }

func (r *Results) byKind(kind ChoiceKind) []ChoiceResult {
	out := []ChoiceResult{}
	for _, c := range r.Choices {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// BuildResults assembles results from a poll header and its counters.
func BuildResults(p *Poll, choices []Choice, ballots int64) *Results {
	res := &Results{
		PollID:       p.ID,
		Kind:         p.Kind,
		Status:       p.Status,
		TotalBallots: ballots,
		Choices:      make([]ChoiceResult, 0, len(choices)),
	}
	for _, c := range choices {
		res.Choices = append(res.Choices, ChoiceResult{
			ChoiceID: c.ID,
			Kind:     c.Kind,
			Label:    c.Label,
			PartyID:  c.PartyID,
			Votes:    c.VoteCount,
		})
	}
	return res
}
