package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ballot-engine/internal/domain/poll"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ResultsCache keeps ledger results under results:{poll_id} for a short TTL.
// Every accepted vote invalidates the key.
type ResultsCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewResultsCache(client *goredis.Client, ttl time.Duration) *ResultsCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &ResultsCache{client: client, ttl: ttl}
}

func resultsKey(pollID uuid.UUID) string {
	return fmt.Sprintf("results:%s", pollID.String())
}

// GetResults returns nil, nil on a miss.
func (c *ResultsCache) GetResults(ctx context.Context, pollID uuid.UUID) (*poll.Results, error) {
	data, err := c.client.Get(ctx, resultsKey(pollID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var res poll.Results
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *ResultsCache) SetResults(ctx context.Context, res *poll.Results) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, resultsKey(res.PollID), data, c.ttl).Err()
}

func (c *ResultsCache) InvalidateResults(ctx context.Context, pollID uuid.UUID) error {
	return c.client.Del(ctx, resultsKey(pollID)).Err()
}
