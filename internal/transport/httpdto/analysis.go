package httpdto

import (
	"ballot-engine/internal/aggregation"

	"github.com/google/uuid"
)

type AnomaliesResponse struct {
	PollID    uuid.UUID             `json:"poll_id"`
	Anomalies []aggregation.Anomaly `json:"anomalies"`
}

type TrendsResponse struct {
	PollID uuid.UUID           `json:"poll_id"`
	Trends []aggregation.Trend `json:"trends"`
}

type LiveResultsResponse struct {
	PollID  uuid.UUID                 `json:"poll_id"`
	Total   int64                     `json:"total"`
	Results []aggregation.ChoiceCount `json:"results"`
}

func NewLiveResults(pollID uuid.UUID, results []aggregation.ChoiceCount) LiveResultsResponse {
	out := LiveResultsResponse{PollID: pollID, Results: results}
	for _, r := range results {
		out.Total += r.Count
	}
	return out
}

type ArchiveResponse struct {
	PollID string `json:"poll_id"`
	Key    string `json:"key"`
	URL    string `json:"url,omitempty"`
}
