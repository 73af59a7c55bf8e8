package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cached wraps a Store with a Redis read-through cache of positions.
// Writes go to the primary first and then drop the affected keys; a failed
// cache operation never fails the call.
type Cached struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	prefix  string
}

var _ Store = (*Cached)(nil)

func NewCached(primary Store, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{primary: primary, rdb: rdb, ttl: ttl, prefix: "scalper"}
}

func (c *Cached) RecordPosition(ctx context.Context, p Position) error {
	if err := c.primary.RecordPosition(ctx, p); err != nil {
		return err
	}
	c.rdb.Del(ctx, c.positionKey(p.ID), c.openKey())
	return nil
}

func (c *Cached) RecordTrade(ctx context.Context, t Trade) error {
	return c.primary.RecordTrade(ctx, t)
}

func (c *Cached) ClosePosition(ctx context.Context, id string, exitPrice float64, closedAt time.Time) error {
	if err := c.primary.ClosePosition(ctx, id, exitPrice, closedAt); err != nil {
		return err
	}
	c.rdb.Del(ctx, c.positionKey(id), c.openKey())
	return nil
}

// Close closes the primary only. The redis client is owned by the caller.
func (c *Cached) Close() error {
	return c.primary.Close()
}

func (c *Cached) Position(ctx context.Context, id string) (Position, error) {
	if data, err := c.rdb.Get(ctx, c.positionKey(id)).Bytes(); err == nil {
		var p Position
		if json.Unmarshal(data, &p) == nil {
			return p, nil
		}
	}

	p, err := c.primary.Position(ctx, id)
	if err != nil {
		return Position{}, err
	}
	c.set(ctx, c.positionKey(id), p)
	return p, nil
}

func (c *Cached) OpenPositions(ctx context.Context) ([]Position, error) {
	if data, err := c.rdb.Get(ctx, c.openKey()).Bytes(); err == nil {
		var out []Position
		if json.Unmarshal(data, &out) == nil {
			return out, nil
		}
	}

	out, err := c.primary.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, c.openKey(), out)
	return out, nil
}

// RecentWinRate is not cached.
func (c *Cached) RecentWinRate(ctx context.Context, n int) (float64, bool, error) {
	return c.primary.RecentWinRate(ctx, n)
}

func (c *Cached) set(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		c.rdb.Set(ctx, key, data, c.ttl)
	}
}

func (c *Cached) positionKey(id string) string { return fmt.Sprintf("%s:position:%s", c.prefix, id) }
func (c *Cached) openKey() string              { return fmt.Sprintf("%s:positions:open", c.prefix) }
