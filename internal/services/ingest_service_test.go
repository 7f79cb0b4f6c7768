package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ballot-engine/internal/aggregation"
	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/events"
	"ballot-engine/internal/prediction"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryObjects) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = body
	return nil
}

type capturePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (c *capturePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append(c.channels, channel)
	c.payloads = append(c.payloads, payload)
	return nil
}

func voteEnvelope(t *testing.T, ev ballot.VoteEvent) events.Envelope {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return events.Envelope{
		ID:            uuid.NewString(),
		EventType:     events.EventTypeVoteCast,
		AggregateType: events.AggregateTypePoll,
		AggregateID:   ev.PollID.String(),
		OccurredAt:    ev.Timestamp,
		Payload:       payload,
	}
}

func TestIngestFeedsEngineAndLiveChannel(t *testing.T) {
	engine := aggregation.NewEngine(aggregation.DefaultConfig(), logger.NewNop())
	live := &capturePublisher{}
	svc := NewIngestService(engine, nil, live, logger.NewNop())
	ctx := context.Background()

	pollID, a, b := uuid.New(), uuid.New(), uuid.New()
	for _, opt := range []uuid.UUID{a, a, b} {
		opt := opt
		svc.Handle(ctx, voteEnvelope(t, ballot.VoteEvent{PollID: pollID, OptionID: &opt, Timestamp: testNow}))
	}
	svc.Handle(ctx, events.Envelope{EventType: events.EventTypeVoteCast, AggregateID: pollID.String(), Payload: json.RawMessage(`{"poll_id":"nope"}`)})
	svc.Handle(ctx, events.Envelope{EventType: events.EventTypePollCreated, AggregateID: pollID.String()})

	got := engine.Results(pollID)
	if len(got) != 2 || got[0].Key != a.String() || got[0].Count != 2 || got[1].Count != 1 {
		t.Fatalf("results = %+v", got)
	}
	if engine.SnapshotCount(pollID) != 3 {
		t.Fatalf("snapshots = %d", engine.SnapshotCount(pollID))
	}

	if len(live.channels) < 3 || live.channels[0] != events.PollChannel(pollID.String()) {
		t.Fatalf("live channels = %v", live.channels)
	}
	var update LiveUpdate
	_ = json.Unmarshal(live.payloads[2], &update)
	if update.Total != 3 || update.PollID != pollID {
		t.Fatalf("last update = %+v", update)
	}
}

func TestPollClosedEventArchives(t *testing.T) {
	f := newFixture(t)
	p, yes, no := f.openReferendum(t)
	ctx := context.Background()
	for _, opt := range []uuid.UUID{yes, yes, no} {
		opt := opt
		if _, err := f.tally.CastVote(ctx, uuid.New(), p.ID, ballot.Selection{OptionID: &opt}); err != nil {
			t.Fatal(err)
		}
	}

	engine := aggregation.NewEngine(aggregation.DefaultConfig(), logger.NewNop())
	objects := &memoryObjects{}
	archiver := NewArchiveService(objects, f.tally, engine, logger.NewNop())
	svc := NewIngestService(engine, archiver, nil, logger.NewNop())

	for _, e := range f.store.Outbox().Events() {
		svc.Handle(ctx, events.Envelope{
			ID: e.ID.String(), EventType: e.EventType, AggregateType: e.AggregateType,
			AggregateID: e.AggregateID, OccurredAt: e.CreatedAt, Payload: e.Payload,
		})
	}
	svc.Handle(ctx, events.Envelope{EventType: events.EventTypePollClosed, AggregateID: p.ID.String(), Payload: json.RawMessage(`{}`)})

	body, ok := objects.objects[ArchiveKey(p.ID)]
	if !ok {
		t.Fatalf("no archive under %s", ArchiveKey(p.ID))
	}
	var doc PollArchive
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Results.TotalBallots != 3 || len(doc.Snapshots) != 3 || len(doc.LiveResults) != 2 {
		t.Fatalf("archive = ballots %d snapshots %d live %d", doc.Results.TotalBallots, len(doc.Snapshots), len(doc.LiveResults))
	}
	if doc.Poll.ID != p.ID || doc.Poll.Status != poll.StatusOpen {
		t.Fatalf("archived poll = %+v", doc.Poll)
	}
}

type stalledObjects struct {
	got chan error
}

func (s *stalledObjects) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	<-ctx.Done()
	s.got <- ctx.Err()
	return ctx.Err()
}

func TestArchiveUploadIsBounded(t *testing.T) {
	f := newFixture(t)
	p, _, _ := f.openReferendum(t)

	engine := aggregation.NewEngine(aggregation.DefaultConfig(), logger.NewNop())
	objects := &stalledObjects{got: make(chan error, 1)}
	archiver := NewArchiveService(objects, f.tally, engine, logger.NewNop())
	svc := NewIngestService(engine, archiver, nil, logger.NewNop()).WithArchiveTimeout(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		svc.Handle(context.Background(), events.Envelope{EventType: events.EventTypePollClosed, AggregateID: p.ID.String(), Payload: json.RawMessage(`{}`)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll.closed handling did not return while the object store stalled")
	}
	if err := <-objects.got; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("upload context ended with %v", err)
	}
}

type stubPredictor struct {
	out *prediction.Prediction
	err error
	got []float64
}

func (s *stubPredictor) Predict(ctx context.Context, features []float64) (*prediction.Prediction, error) {
	s.got = features
	return s.out, s.err
}

func TestAnalyticsForecastAndTurnout(t *testing.T) {
	engine := aggregation.NewEngine(aggregation.DefaultConfig(), logger.NewNop())
	pollID, a, b := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()
	for _, opt := range []uuid.UUID{a, b, b} {
		opt := opt
		engine.Ingest(ctx, ballot.VoteEvent{PollID: pollID, OptionID: &opt, Timestamp: testNow})
	}

	pred := &stubPredictor{out: &prediction.Prediction{WinProbabilities: []float64{0.3, 0.7}, Turnout: 0.42}}
	svc := NewAnalyticsService(engine, pred, time.Second, logger.NewNop())

	fc, err := svc.Forecast(ctx, pollID)
	if err != nil {
		t.Fatal(err)
	}
	if fc.TotalVotes != 3 || len(fc.Probabilities) != 2 || fc.Probabilities[1].Key != b.String() || fc.Probabilities[1].Probability != 0.7 {
		t.Fatalf("forecast = %+v", fc)
	}
	if len(pred.got) != 3 || pred.got[0] != 3 || pred.got[1] != 1 || pred.got[2] != 2 {
		t.Fatalf("features sent = %v", pred.got)
	}

	to, err := svc.Turnout(ctx, pollID)
	if err != nil || to.Turnout != 0.42 {
		t.Fatalf("turnout = %+v, %v", to, err)
	}

	pred.err = errors.New("model down")
	if _, err := svc.Forecast(ctx, pollID); !errors.Is(err, ballot_errors.ErrServiceUnavailable) {
		t.Fatalf("failing predictor: %v", err)
	}
	none := NewAnalyticsService(engine, nil, time.Second, logger.NewNop())
	if _, err := none.Turnout(ctx, pollID); !errors.Is(err, ballot_errors.ErrServiceUnavailable) {
		t.Fatalf("no predictor: %v", err)
	}

	fv := svc.Features(pollID)
	if len(fv.Values) != 3 || len(fv.Keys) != 2 {
		t.Fatalf("features = %+v", fv)
	}
	if got := svc.Anomalies(ctx, pollID); got == nil {
		t.Fatal("anomalies must be an empty slice, not nil")
	}
}
