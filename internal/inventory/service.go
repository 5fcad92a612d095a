package inventory

import (
	"context"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ecommerce-labs/order-fulfillment/internal/kafka"
	"github.com/ecommerce-labs/order-fulfillment/internal/orders"
	"github.com/ecommerce-labs/order-fulfillment/internal/queue"
)

// Store is what the handlers need from persistence; *ReservationRepo
// implements it.
type Store interface {
	Reserve(ctx context.Context, orderID int64) (Result, error)
	Restock(ctx context.Context, orderID int64) (Result, error)
}

type StatusCache interface {
	Invalidate(ctx context.Context, orderID int64) error
}

// EventSink is where lifecycle notifications go; *kafkax.Producer
// implements it.
type EventSink interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service holds the two state-transition handlers the worker dispatches to.
// Both are idempotent from current order state: Reserve guards on PENDING,
// Restock on the one-time restock_pending flag, so redelivered events from
// the at-least-once queue are harmless.
type Service struct {
	Store        Store
	Cache        StatusCache
	SinkReserved EventSink
	SinkRejected EventSink
	SinkReleased EventSink
	ServiceName  string
	Log          zerolog.Logger
}

func (s *Service) HandleReserve(ctx context.Context, ev queue.Event) error {
	res, err := s.Store.Reserve(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	switch res.Outcome {
	case OutcomeReserved:
		s.invalidate(ctx, ev.OrderID)
		s.Log.Info().Int64("order_id", ev.OrderID).Msg("stock reserved")
		s.publish(s.SinkReserved, orders.EventStockReserved, ev.OrderID,
			orders.StockReservedPayload{OrderID: ev.OrderID, Items: res.Items})
	case OutcomeRejected:
		s.invalidate(ctx, ev.OrderID)
		s.Log.Info().Int64("order_id", ev.OrderID).Int("shortages", len(res.Shortages)).Msg("reservation rejected")
		s.publish(s.SinkRejected, orders.EventStockRejected, ev.OrderID,
			orders.StockRejectedPayload{OrderID: ev.OrderID, Reason: "OUT_OF_STOCK", Shortages: res.Shortages})
	case OutcomeSkipped:
		s.Log.Debug().Int64("order_id", ev.OrderID).Msg("reserve event skipped")
	}
	return nil
}

func (s *Service) HandleCancel(ctx context.Context, ev queue.Event) error {
	res, err := s.Store.Restock(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	switch res.Outcome {
	case OutcomeReleased:
		s.Log.Info().Int64("order_id", ev.OrderID).Msg("stock released")
		s.publish(s.SinkReleased, orders.EventStockReleased, ev.OrderID,
			orders.StockReleasedPayload{OrderID: ev.OrderID, Items: res.Items})
	case OutcomeSkipped:
		s.Log.Debug().Int64("order_id", ev.OrderID).Msg("cancel event skipped")
	}
	return nil
}

func (s *Service) publish(sink EventSink, eventType string, orderID int64, payload any) {
	if sink == nil {
		return
	}
	env := orders.NewEnvelope(eventType, s.ServiceName, orderID, kafkax.MustMarshal(payload))
	sink.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) invalidate(ctx context.Context, orderID int64) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, orderID); err != nil {
		s.Log.Warn().Err(err).Int64("order_id", orderID).Msg("invalidate status cache")
	}
}
