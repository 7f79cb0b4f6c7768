package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/events"
	"ballot-engine/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestStreamRoundTrip(t *testing.T) {
	_, c := newTestClient(t)
	ctx := context.Background()
	stream := "stream:votes:0"

	var mu sync.Mutex
	var got []events.Envelope
	consumer := NewStreamConsumer(c, StreamConsumerConfig{
		Group:    "voting-analytics-group",
		Consumer: "test",
		Streams:  []string{stream},
		Block:    -1,
	}, func(ctx context.Context, env events.Envelope) {
		mu.Lock()
		got = append(got, env)
		mu.Unlock()
	}, logger.NewNop())

	if err := consumer.EnsureGroups(ctx); err != nil {
		t.Fatal(err)
	}
	if err := consumer.EnsureGroups(ctx); err != nil {
		t.Fatalf("second EnsureGroups: %v", err)
	}

	pub := NewStreamPublisher(c, 1000)
	pollID := uuid.NewString()
	for i := 0; i < 3; i++ {
		body := []byte(`{"id":"e","event_type":"vote.cast","aggregate_type":"poll","aggregate_id":"` + pollID + `","payload":{}}`)
		if err := pub.Publish(ctx, stream, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := pub.Publish(ctx, stream, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	n, err := consumer.ReadOnce(ctx, stream, ">")
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("read %d entries", n)
	}
	if len(got) != 3 {
		t.Fatalf("handled %d envelopes, malformed entry should be dropped", len(got))
	}
	for _, env := range got {
		if env.AggregateID != pollID || env.EventType != events.EventTypeVoteCast {
			t.Fatalf("envelope = %+v", env)
		}
	}

	pending, err := c.XPending(ctx, stream, "voting-analytics-group").Result()
	if err != nil {
		t.Fatal(err)
	}
	if pending.Count != 0 {
		t.Fatalf("pending = %d, every entry should be acked", pending.Count)
	}

	n, err = consumer.ReadOnce(ctx, stream, ">")
	if err != nil || n != 0 {
		t.Fatalf("empty read = %d, %v", n, err)
	}
}

func TestResultsCache(t *testing.T) {
	mr, c := newTestClient(t)
	ctx := context.Background()
	cache := NewResultsCache(c, time.Minute)
	pollID := uuid.New()

	res, err := cache.GetResults(ctx, pollID)
	if err != nil || res != nil {
		t.Fatalf("miss = %v, %v", res, err)
	}

	want := &poll.Results{PollID: pollID, Kind: poll.KindReferendum, Status: poll.StatusOpen, TotalBallots: 7}
	if err := cache.SetResults(ctx, want); err != nil {
		t.Fatal(err)
	}
	res, err = cache.GetResults(ctx, pollID)
	if err != nil || res == nil || res.TotalBallots != 7 {
		t.Fatalf("hit = %+v, %v", res, err)
	}

	if err := cache.InvalidateResults(ctx, pollID); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(resultsKey(pollID)) {
		t.Fatal("key survived invalidation")
	}
}

func TestResultsCacheExpires(t *testing.T) {
	mr, c := newTestClient(t)
	ctx := context.Background()
	cache := NewResultsCache(c, 5*time.Second)
	pollID := uuid.New()
	_ = cache.SetResults(ctx, &poll.Results{PollID: pollID})

	mr.FastForward(6 * time.Second)
	res, err := cache.GetResults(ctx, pollID)
	if err != nil || res != nil {
		t.Fatalf("expired entry returned: %+v, %v", res, err)
	}
}

func TestAllowVote(t *testing.T) {
	mr, c := newTestClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c, RateLimitConfig{VoteLimit: 2, VoteWindow: time.Minute})

	for i := 0; i < 2; i++ {
		res, err := rl.AllowVote(ctx, "p1")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d rejected", i+1)
		}
	}
	res, err := rl.AllowVote(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("third attempt allowed")
	}

	other, _ := rl.AllowVote(ctx, "p2")
	if !other.Allowed {
		t.Fatal("limit leaked across participants")
	}

	mr.FastForward(61 * time.Second)
	res, _ = rl.AllowVote(ctx, "p1")
	if !res.Allowed {
		t.Fatal("window did not reset")
	}
}

func TestPublisherDelivers(t *testing.T) {
	_, c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	sub := NewSubscriber(c)
	go func() {
		_ = sub.Subscribe(ctx, []string{events.ChannelPollAll}, func(channel string, payload []byte) {
			received <- channel + "|" + string(payload)
		})
	}()

	pub := NewPublisher(c)
	channel := events.PollChannel("abc")
	deadline := time.After(2 * time.Second)
	for {
		_ = pub.Publish(ctx, channel, []byte("hi"))
		select {
		case msg := <-received:
			if msg != channel+"|hi" {
				t.Fatalf("message = %q", msg)
			}
			return
		case <-deadline:
			t.Fatal("no message received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
