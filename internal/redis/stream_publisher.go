package redis

import (
	"context"
	"fmt"

	"ballot-engine/internal/events"

	goredis "github.com/redis/go-redis/v9"
)

// StreamPublisher appends envelopes to a vote stream with XADD.
type StreamPublisher struct {
	client *goredis.Client
	maxLen int64
}

// NewStreamPublisher trims each stream to roughly maxLen entries; zero disables trimming.
func NewStreamPublisher(client *goredis.Client, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, stream string, payload []byte) error {
	args := &goredis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{events.StreamFieldEnvelope: payload},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}
