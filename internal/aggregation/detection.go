package aggregation

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

type Anomaly struct {
	Key         string  `json:"key"`
	Delta       int64   `json:"delta"`
	AvgIncrease float64 `json:"avg_increase"`
	Message     string  `json:"message"`
}

type Trend struct {
	Key       string  `json:"key"`
	SharePrev float64 `json:"share_prev"`
	ShareNew  float64 `json:"share_new"`
	Change    float64 `json:"change"`
	Message   string  `json:"message"`
}

// DetectAnomalies compares the last two snapshots. Fewer than two yields an empty result.
func (e *Engine) DetectAnomalies(pollID uuid.UUID) []Anomaly {
	prev, newest, ok := e.lastTwo(pollID)
	if !ok {
		return []Anomaly{}
	}
	return compareAnomalies(prev, newest, e.cfg.AnomalyThresholdMultiplier)
}

// DetectTrends compares vote shares of the last two snapshots. Fewer than two yields an empty result.
func (e *Engine) DetectTrends(pollID uuid.UUID) []Trend {
	prev, newest, ok := e.lastTwo(pollID)
	if !ok {
		return []Trend{}
	}
	return compareTrends(prev, newest, e.cfg.TrendThreshold)
}

// compareAnomalies flags keys whose increase is strictly above multiplier times the mean increase
// across the keys of newest. Keys missing from prev had zero votes.
func compareAnomalies(prev, newest *Snapshot, multiplier float64) []Anomaly {
	out := []Anomaly{}
	if len(newest.keys) == 0 {
		return out
	}
	deltas := make([]int64, len(newest.keys))
	var sum int64
	for i, k := range newest.keys {
		deltas[i] = newest.counts[k] - prev.counts[k]
		sum += deltas[i]
	}
	avg := float64(sum) / float64(len(newest.keys))
	limit := avg * multiplier

	for i, k := range newest.keys {
		if float64(deltas[i]) > limit {
			out = append(out, Anomaly{
				Key:         k,
				Delta:       deltas[i],
				AvgIncrease: avg,
				Message:     fmt.Sprintf("Candidate %s spike: %d votes", k, deltas[i]),
			})
		}
	}
	return out
}

func compareTrends(prev, newest *Snapshot, threshold float64) []Trend {
	out := []Trend{}
	totalNew := float64(newest.total)
	if totalNew == 0 {
		totalNew = 1
	}
	totalPrev := float64(prev.total)
	if totalPrev == 0 {
		totalPrev = 1
	}
	for _, k := range newest.keys {
		shareNew := float64(newest.counts[k]) / totalNew
		sharePrev := float64(prev.counts[k]) / totalPrev
		change := shareNew - sharePrev
		if math.Abs(change) > threshold {
			out = append(out, Trend{
				Key:       k,
				SharePrev: sharePrev,
				ShareNew:  shareNew,
				Change:    change,
				Message:   fmt.Sprintf("Candidate %s trend change: %.2f%%", k, change*100),
			})
		}
	}
	return out
}
