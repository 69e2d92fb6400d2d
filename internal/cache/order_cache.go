// Package cache provides an optional Redis read-through cache for order
// aggregates. It is strictly best-effort: every failure degrades to a miss
// and is logged at debug level, never surfaced to callers.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/sdk/zctx"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hanpos/hanpos/internal/domain/order"
)

// OrderCache caches order aggregates keyed by (storeID, orderID). Mutating
// operations invalidate eagerly; the TTL is a backstop against missed
// invalidations, not the primary consistency mechanism.
type OrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ order.Cache = (*OrderCache)(nil)

// NewOrderCache connects a Redis-backed order cache.
func NewOrderCache(addr, password string, db int, ttl time.Duration) *OrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &OrderCache{client: client, ttl: ttl}
}

// Ping checks Redis connectivity, for readiness probes.
func (c *OrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *OrderCache) Close() error {
	return c.client.Close()
}

func key(storeID, orderID string) string {
	return "order:" + storeID + ":" + orderID
}

// GetOrder returns the cached aggregate, or a miss.
func (c *OrderCache) GetOrder(ctx context.Context, storeID, id string) (*order.Order, bool) {
	val, err := c.client.Get(ctx, key(storeID, id)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		zctx.From(ctx).Debug("order cache get failed", zap.Error(err))
		return nil, false
	}

	var o order.Order
	if err := json.Unmarshal(val, &o); err != nil {
		zctx.From(ctx).Debug("order cache decode failed", zap.Error(err))
		return nil, false
	}
	return &o, true
}

// SetOrder stores the aggregate with the configured TTL.
func (c *OrderCache) SetOrder(ctx context.Context, o *order.Order) {
	if o == nil {
		return
	}
	payload, err := json.Marshal(o)
	if err != nil {
		zctx.From(ctx).Debug("order cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key(o.StoreID, o.ID), payload, c.ttl).Err(); err != nil {
		zctx.From(ctx).Debug("order cache set failed", zap.Error(err))
	}
}

// Invalidate drops the cached aggregate after a mutation.
func (c *OrderCache) Invalidate(ctx context.Context, storeID, id string) {
	if err := c.client.Del(ctx, key(storeID, id)).Err(); err != nil {
		zctx.From(ctx).Debug("order cache invalidate failed", zap.Error(err))
	}
}
