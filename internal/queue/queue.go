// Package queue is the durable work queue between the order API and the
// reservation worker: Redis lists, LPUSH to publish and BRPOP to consume.
// Delivery is at-least-once and payloads carry only the order id, so the
// worker's handlers must be idempotent from order state alone.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TopicReserve = "queue:reserve_stock"
	TopicCancel  = "queue:cancel_order"
)

// ErrNoEvent is returned by ConsumeAny when the wait times out.
var ErrNoEvent = errors.New("queue: no event")

type Event struct {
	OrderID int64 `json:"order_id"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

type Consumer interface {
	ConsumeAny(ctx context.Context, timeout time.Duration) (string, Event, error)
}

type Client struct{ rdb *redis.Client }

func NewClient(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

func (c *Client) Publish(ctx context.Context, topic string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := c.rdb.LPush(ctx, topic, b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// ConsumeAny blocks up to timeout for an event on either topic. There is no
// acknowledgment round-trip: a popped event that is not processed is lost.
func (c *Client) ConsumeAny(ctx context.Context, timeout time.Duration) (string, Event, error) {
	res, err := c.rdb.BRPop(ctx, timeout, TopicReserve, TopicCancel).Result()
	if errors.Is(err, redis.Nil) {
		return "", Event{}, ErrNoEvent
	}
	if err != nil {
		return "", Event{}, err
	}
	var ev Event
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return res[0], Event{}, fmt.Errorf("decode event on %s: %w", res[0], err)
	}
	return res[0], ev, nil
}
