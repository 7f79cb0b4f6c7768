package prediction

import "context"

// Prediction holds the two model outputs: winner probabilities aligned with the
// feature vector's choice positions, and the expected final turnout.
type Prediction struct {
	WinProbabilities []float64 `json:"win_probabilities"`
	Turnout          float64   `json:"turnout"`
}

// Predictor turns a feature vector [total, count_1, ..., count_n] into a prediction.
type Predictor interface {
	Predict(ctx context.Context, features []float64) (*Prediction, error)
}
