package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arpit8955/ecommerce/internal/orders"
)

// OrderCache is a read-through cache of order documents. Failures degrade to a miss.
type OrderCache struct {
	rdb redis.UniversalClient
	log *zap.Logger
}

func NewOrderCache(rdb redis.UniversalClient, log *zap.Logger) *OrderCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderCache{rdb: rdb, log: log}
}

func (c *OrderCache) GetOrder(ctx context.Context, orderID string) (*orders.Order, bool) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrder, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("order cache get", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, false
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		c.log.Warn("order cache decode", zap.String("order_id", orderID), zap.Error(err))
		return nil, false
	}
	return &o, true
}

func (c *OrderCache) PutOrder(ctx context.Context, o *orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache).Err(); err != nil {
		c.log.Warn("order cache put", zap.String("order_id", o.ID), zap.Error(err))
	}
}
