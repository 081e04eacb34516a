package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// DateCache is the shared, cross-instance implementation of the engine's
// pool cache.  Dates are stored as a JSON array of "2006-01-02" strings.
// Every cache failure is treated as a miss so Redis outages degrade to
// recomputation, never to scheduling errors.
type DateCache struct {
	client *Client
	logger logging.Logger
}

// NewDateCache builds a DateCache over the shared client.
func NewDateCache(client *Client, log logging.Logger) *DateCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DateCache{client: client, logger: log}
}

var _ domain.DateCache = (*DateCache)(nil)

func (c *DateCache) Get(ctx context.Context, key string) ([]time.Time, bool) {
	raw, err := c.client.rdb.Get(ctx, c.client.Key(key)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.logger.Warn("Date cache read failed, treating as miss",
				logging.String("key", key), logging.Err(err))
		}
		return nil, false
	}

	var encoded []string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		c.logger.Warn("Date cache entry is corrupt, treating as miss",
			logging.String("key", key), logging.Err(err))
		return nil, false
	}

	dates := make([]time.Time, 0, len(encoded))
	for _, s := range encoded {
		d, err := time.Parse(domain.DateFormat, s)
		if err != nil {
			c.logger.Warn("Date cache entry is corrupt, treating as miss",
				logging.String("key", key), logging.Err(err))
			return nil, false
		}
		dates = append(dates, d)
	}
	return dates, true
}

func (c *DateCache) Set(ctx context.Context, key string, dates []time.Time, ttl time.Duration) {
	encoded := make([]string, 0, len(dates))
	for _, d := range dates {
		encoded = append(encoded, d.Format(domain.DateFormat))
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		c.logger.Warn("Failed to encode date cache entry", logging.String("key", key), logging.Err(err))
		return
	}

	if err := c.client.rdb.Set(ctx, c.client.Key(key), raw, ttl).Err(); err != nil {
		c.logger.Warn("Date cache write failed", logging.String("key", key), logging.Err(err))
	}
}

// Purge drops every cached date pool.  Called after a new reference
// snapshot is published so stale pools do not outlive their definitions.
func (c *DateCache) Purge(ctx context.Context) error {
	pattern := c.client.Key("datetype:*")
	iter := c.client.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.rdb.Del(ctx, keys...).Err()
}
