package events

import "context"

// Publisher appends an encoded envelope to a stream.
type Publisher interface {
	Publish(ctx context.Context, stream string, payload []byte) error
}
