package aggregation

import (
	"context"
	"sync"
	"time"

	"ballot-engine/internal/domain/ballot"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stripeCount = 64

type Config struct {
	AnomalyThresholdMultiplier float64
	TrendThreshold             float64
	// MaxSnapshots bounds history per poll. Zero keeps everything.
	MaxSnapshots int
}

func DefaultConfig() Config {
	return Config{
		AnomalyThresholdMultiplier: 2.0,
		TrendThreshold:             0.05,
	}
}

type pollState struct {
	mu      sync.RWMutex
	counts  map[string]int64
	keys    []string
	history []*Snapshot
}

type stripe struct {
	mu    sync.RWMutex
	polls map[uuid.UUID]*pollState
}

// Engine keeps running counts and snapshot history per poll.
// Writers for one poll are serialized on that poll's lock; polls on different stripes never contend.
type Engine struct {
	cfg     Config
	clock   func() time.Time
	logger  *logger.Logger
	stripes [stripeCount]stripe
}

func NewEngine(cfg Config, l *logger.Logger) *Engine {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	e := &Engine{cfg: cfg, clock: time.Now, logger: l}
	for i := range e.stripes {
		e.stripes[i].polls = make(map[uuid.UUID]*pollState)
	}
	return e
}

// WithClock replaces the snapshot clock. Used by tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

func (e *Engine) stripeFor(pollID uuid.UUID) *stripe {
	return &e.stripes[xxhash.Sum64(pollID[:])%stripeCount]
}

func (e *Engine) state(pollID uuid.UUID) *pollState {
	s := e.stripeFor(pollID)
	s.mu.RLock()
	st := s.polls[pollID]
	s.mu.RUnlock()
	return st
}

func (e *Engine) stateOrCreate(pollID uuid.UUID) *pollState {
	s := e.stripeFor(pollID)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.polls[pollID]
	if !ok {
		st = &pollState{counts: make(map[string]int64)}
		s.polls[pollID] = st
	}
	return st
}

// Ingest counts one vote event and appends a snapshot.
// Malformed events are logged and dropped. Duplicates are counted again.
func (e *Engine) Ingest(ctx context.Context, ev ballot.VoteEvent) {
	if err := ev.Validate(); err != nil {
		e.logger.FromContext(ctx).Logger.Warn("dropping vote event",
			zap.String("error_kind", string(ballot_errors.KindOf(err))),
			zap.Error(err),
		)
		return
	}
	key, _ := ev.Key()

	st := e.stateOrCreate(ev.PollID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.counts[key]; !ok {
		st.keys = append(st.keys, key)
	}
	st.counts[key]++

	at := e.clock().UTC()
	if n := len(st.history); n > 0 && at.Before(st.history[n-1].at) {
		at = st.history[n-1].at
	}
	st.history = append(st.history, newSnapshot(at, st.counts, st.keys))

	if keep := e.cfg.MaxSnapshots; keep > 0 && len(st.history) > 2*keep {
		st.history = append([]*Snapshot(nil), st.history[len(st.history)-keep:]...)
	}
}

// IngestPayload decodes a wire event and ingests it.
func (e *Engine) IngestPayload(ctx context.Context, payload []byte) {
	ev, err := ballot.DecodeVoteEvent(payload)
	if err != nil {
		e.logger.FromContext(ctx).Logger.Warn("dropping vote event",
			zap.String("error_kind", string(ballot_errors.KindOf(err))),
			zap.Error(err),
		)
		return
	}
	e.Ingest(ctx, ev)
}

// Results reads the running counts in first-seen order.
func (e *Engine) Results(pollID uuid.UUID) []ChoiceCount {
	st := e.state(pollID)
	if st == nil {
		return []ChoiceCount{}
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]ChoiceCount, 0, len(st.keys))
	for _, k := range st.keys {
		out = append(out, ChoiceCount{Key: k, Count: st.counts[k]})
	}
	return out
}

// History returns the retained snapshots, oldest first.
func (e *Engine) History(pollID uuid.UUID) []*Snapshot {
	st := e.state(pollID)
	if st == nil {
		return nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Snapshot, len(st.history))
	copy(out, st.history)
	return out
}

// SnapshotCount reports how many snapshots are retained for a poll.
func (e *Engine) SnapshotCount(pollID uuid.UUID) int {
	st := e.state(pollID)
	if st == nil {
		return 0
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.history)
}

func (e *Engine) lastTwo(pollID uuid.UUID) (prev, newest *Snapshot, ok bool) {
	st := e.state(pollID)
	if st == nil {
		return nil, nil, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	n := len(st.history)
	if n < 2 {
		return nil, nil, false
	}
	return st.history[n-2], st.history[n-1], true
}

// Forget drops all state for a poll.
func (e *Engine) Forget(pollID uuid.UUID) {
	s := e.stripeFor(pollID)
	s.mu.Lock()
	delete(s.polls, pollID)
	s.mu.Unlock()
}
