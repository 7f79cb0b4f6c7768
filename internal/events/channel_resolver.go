package events

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// StreamResolver maps an aggregate to one of a fixed set of vote streams.
// Every event of a poll lands on the same stream, which is what keeps per-poll order.
type StreamResolver struct {
	prefix string
	shards int
}

func NewStreamResolver(prefix string, shards int) *StreamResolver {
	if shards <= 0 {
		shards = 1
	}
	return &StreamResolver{prefix: prefix, shards: shards}
}

// Shard returns the shard index for an aggregate id.
func (r *StreamResolver) Shard(aggregateID string) int {
	return int(xxhash.Sum64String(aggregateID) % uint64(r.shards))
}

// Resolve returns the stream key for an envelope.
func (r *StreamResolver) Resolve(env Envelope) string {
	return r.StreamFor(env.AggregateID)
}

func (r *StreamResolver) StreamFor(aggregateID string) string {
	return fmt.Sprintf("%s%d", r.prefix, r.Shard(aggregateID))
}

// Streams lists every shard stream, in shard order.
func (r *StreamResolver) Streams() []string {
	streams := make([]string, r.shards)
	for i := range streams {
		streams[i] = fmt.Sprintf("%s%d", r.prefix, i)
	}
	return streams
}

// PollChannel is the pub/sub channel carrying live results for a poll.
func PollChannel(pollID string) string {
	return ChannelPrefixPoll + pollID
}
