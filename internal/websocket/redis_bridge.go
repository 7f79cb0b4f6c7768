package websocket

import (
	"context"

	"ballot-engine/internal/events"
)

// RedisBridge forwards live updates from pub/sub to the local hub.
// Every API instance runs one, so clients see updates whichever node ingested the vote.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{events.ChannelPollAll}, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
