package events

import "context"

// Loopback delivers published envelopes straight to a handler in the same process.
// It replaces the vote streams when the service runs without Redis.
type Loopback struct {
	handler func(ctx context.Context, env Envelope)
}

func NewLoopback(handler func(ctx context.Context, env Envelope)) *Loopback {
	return &Loopback{handler: handler}
}

func (l *Loopback) Publish(ctx context.Context, stream string, payload []byte) error {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		return err
	}
	l.handler(ctx, env)
	return nil
}
