package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Cache holds serialized order bodies so GET /orders/{id} can skip the DB.
// Writers of order status invalidate entries rather than refresh them.
type Cache struct{ RDB *redis.Client }

func NewCache(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

func (c *Cache) GetOrder(ctx context.Context, orderID int64) ([]byte, bool, error) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *Cache) SetOrder(ctx context.Context, orderID int64, body []byte) error {
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), body, TTLStatusCache).Err()
}

func (c *Cache) Invalidate(ctx context.Context, orderID int64) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
