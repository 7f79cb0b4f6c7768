package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ballot-engine/internal/events"
	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EnvelopeHandler processes one decoded stream entry.
type EnvelopeHandler func(ctx context.Context, env events.Envelope)

// StreamConsumer reads the vote streams through a consumer group.
// Each stream gets one goroutine so entries of a shard are handled in order.
type StreamConsumer struct {
	client   *goredis.Client
	group    string
	consumer string
	streams  []string
	block    time.Duration
	count    int64
	handler  EnvelopeHandler
	logger   *logger.Logger
}

type StreamConsumerConfig struct {
	Group    string
	Consumer string
	Streams  []string
	// Block is the XREADGROUP wait; a negative value polls without blocking.
	Block time.Duration
	Count int64
}

func NewStreamConsumer(client *goredis.Client, cfg StreamConsumerConfig, handler EnvelopeHandler, l *logger.Logger) *StreamConsumer {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	if cfg.Count <= 0 {
		cfg.Count = 100
	}
	return &StreamConsumer{
		client:   client,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		streams:  cfg.Streams,
		block:    cfg.Block,
		count:    cfg.Count,
		handler:  handler,
		logger:   l,
	}
}

// EnsureGroups creates the consumer group on every stream, creating streams as needed.
func (c *StreamConsumer) EnsureGroups(ctx context.Context) error {
	for _, stream := range c.streams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create group %s on %s: %w", c.group, stream, err)
		}
	}
	return nil
}

// Run consumes until ctx is cancelled. Entries left pending by a previous run are handled first.
func (c *StreamConsumer) Run(ctx context.Context) error {
	if err := c.EnsureGroups(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, stream := range c.streams {
		wg.Add(1)
		go func(stream string) {
			defer wg.Done()
			c.consume(ctx, stream)
		}(stream)
	}
	wg.Wait()
	return nil
}

func (c *StreamConsumer) consume(ctx context.Context, stream string) {
	for {
		n, err := c.ReadOnce(ctx, stream, "0")
		if err != nil || n == 0 {
			break
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.ReadOnce(ctx, stream, ">"); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Logger.Warn("stream read failed",
				zap.String("stream", stream),
				zap.String("error_kind", string(ballot_errors.KindChannel)),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// ReadOnce reads one batch from stream starting at id (">" for new entries, "0" for this
// consumer's pending ones), handles and acknowledges every entry, and returns how many it read.
func (c *StreamConsumer) ReadOnce(ctx context.Context, stream, id string) (int, error) {
	res, err := c.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{stream, id},
		Count:    c.count,
		Block:    c.block,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	read := 0
	for _, s := range res {
		for _, msg := range s.Messages {
			read++
			c.handleMessage(ctx, s.Stream, msg)
			if err := c.client.XAck(ctx, s.Stream, c.group, msg.ID).Err(); err != nil {
				c.logger.Logger.Warn("stream ack failed", zap.String("stream", s.Stream), zap.String("entry_id", msg.ID), zap.Error(err))
			}
		}
	}
	return read, nil
}

func (c *StreamConsumer) handleMessage(ctx context.Context, stream string, msg goredis.XMessage) {
	raw, ok := msg.Values[events.StreamFieldEnvelope].(string)
	if !ok {
		c.logger.Logger.Warn("dropping stream entry without envelope",
			zap.String("stream", stream),
			zap.String("entry_id", msg.ID),
			zap.String("error_kind", string(ballot_errors.KindIngestion)),
		)
		return
	}
	env, err := events.DecodeEnvelope([]byte(raw))
	if err != nil {
		c.logger.Logger.Warn("dropping malformed stream entry",
			zap.String("stream", stream),
			zap.String("entry_id", msg.ID),
			zap.String("error_kind", string(ballot_errors.KindIngestion)),
			zap.Error(err),
		)
		return
	}
	c.handler(ctx, env)
}
