package services

import (
	"context"
	"fmt"
	"time"

	"ballot-engine/internal/aggregation"
	"ballot-engine/internal/prediction"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalyticsService answers read-side queries from the aggregation engine.
// Prediction calls work on a copied feature vector and never hold engine locks.
type AnalyticsService struct {
	engine    *aggregation.Engine
	predictor prediction.Predictor
	timeout   time.Duration
	logger    *logger.Logger
}

func NewAnalyticsService(engine *aggregation.Engine, predictor prediction.Predictor, timeout time.Duration, l *logger.Logger) *AnalyticsService {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &AnalyticsService{engine: engine, predictor: predictor, timeout: timeout, logger: l}
}

type FeatureVector struct {
	PollID uuid.UUID `json:"poll_id"`
	Keys   []string  `json:"keys"`
	Values []float64 `json:"values"`
}

type WinProbability struct {
	Key         string  `json:"key"`
	Probability float64 `json:"probability"`
}

type Forecast struct {
	PollID        uuid.UUID        `json:"poll_id"`
	TotalVotes    int64            `json:"total_votes"`
	Probabilities []WinProbability `json:"probabilities"`
}

type TurnoutEstimate struct {
	PollID     uuid.UUID `json:"poll_id"`
	TotalVotes int64     `json:"total_votes"`
	Turnout    float64   `json:"turnout"`
}

func (s *AnalyticsService) Anomalies(ctx context.Context, pollID uuid.UUID) []aggregation.Anomaly {
	out := s.engine.DetectAnomalies(pollID)
	s.logger.FromContext(ctx).Logger.Debug("anomaly detection",
		zap.String("poll_id", pollID.String()), zap.Int("found", len(out)))
	return out
}

func (s *AnalyticsService) Trends(ctx context.Context, pollID uuid.UUID) []aggregation.Trend {
	out := s.engine.DetectTrends(pollID)
	s.logger.FromContext(ctx).Logger.Debug("trend detection",
		zap.String("poll_id", pollID.String()), zap.Int("found", len(out)))
	return out
}

func (s *AnalyticsService) Features(pollID uuid.UUID) FeatureVector {
	values, keys := s.engine.Features(pollID)
	return FeatureVector{PollID: pollID, Keys: keys, Values: values}
}

// LiveResults reads the running counts of the aggregation engine.
func (s *AnalyticsService) LiveResults(pollID uuid.UUID) []aggregation.ChoiceCount {
	return s.engine.Results(pollID)
}

func (s *AnalyticsService) predict(ctx context.Context, pollID uuid.UUID) (*prediction.Prediction, FeatureVector, error) {
	fv := s.Features(pollID)
	if s.predictor == nil {
		return nil, fv, fmt.Errorf("no predictor configured: %w", ballot_errors.ErrServiceUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.predictor.Predict(ctx, fv.Values)
	if err != nil {
		s.logger.FromContext(ctx).Logger.Warn("prediction failed", zap.String("poll_id", pollID.String()), zap.Error(err))
		return nil, fv, fmt.Errorf("%v: %w", err, ballot_errors.ErrServiceUnavailable)
	}
	return p, fv, nil
}

func (s *AnalyticsService) Forecast(ctx context.Context, pollID uuid.UUID) (*Forecast, error) {
	p, fv, err := s.predict(ctx, pollID)
	if err != nil {
		return nil, err
	}
	out := &Forecast{PollID: pollID, TotalVotes: int64(fv.Values[0]), Probabilities: []WinProbability{}}
	for i, prob := range p.WinProbabilities {
		key := fmt.Sprintf("#%d", i)
		if i < len(fv.Keys) {
			key = fv.Keys[i]
		}
		out.Probabilities = append(out.Probabilities, WinProbability{Key: key, Probability: prob})
	}
	return out, nil
}

func (s *AnalyticsService) Turnout(ctx context.Context, pollID uuid.UUID) (*TurnoutEstimate, error) {
	p, fv, err := s.predict(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return &TurnoutEstimate{PollID: pollID, TotalVotes: int64(fv.Values[0]), Turnout: p.Turnout}, nil
}
