package aggregation

import "github.com/google/uuid"

// BuildFeatureVector returns [total, count_1, ..., count_n] in first-seen choice order.
// An unknown poll yields [0].
func (e *Engine) BuildFeatureVector(pollID uuid.UUID) []float64 {
	vec, _ := e.Features(pollID)
	return vec
}

// Features returns the feature vector together with the choice keys behind positions 1..n,
// both read from the same point in time.
func (e *Engine) Features(pollID uuid.UUID) ([]float64, []string) {
	results := e.Results(pollID)
	vec := make([]float64, 1, len(results)+1)
	keys := make([]string, 0, len(results))
	var total int64
	for _, r := range results {
		total += r.Count
		vec = append(vec, float64(r.Count))
		keys = append(keys, r.Key)
	}
	vec[0] = float64(total)
	return vec, keys
}
