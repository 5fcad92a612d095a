package orders

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ecommerce-labs/order-fulfillment/internal/queue"
)

// Store is what the service needs from persistence; *Repo implements it.
type Store interface {
	CreateOrder(ctx context.Context, userID int64, items []ItemInput) (*Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]Order, error)
	MarkPaid(ctx context.Context, orderID int64) (*Order, error)
	CancelOrder(ctx context.Context, orderID int64) (*Order, bool, error)
}

// StatusCache invalidates cached order bodies after a status change.
type StatusCache interface {
	Invalidate(ctx context.Context, orderID int64) error
}

// Service is the synchronous half of order fulfillment: intake (create +
// enqueue reservation) and the pay/cancel status gateway. The asynchronous
// half lives in internal/inventory.
type Service struct {
	Store Store
	Queue queue.Publisher
	Cache StatusCache
	Log   zerolog.Logger
}

func NewService(store Store, q queue.Publisher, cache StatusCache, log zerolog.Logger) *Service {
	return &Service{Store: store, Queue: q, Cache: cache, Log: log}
}

// Create persists a priced PENDING order, then enqueues the reservation
// event. The publish is best-effort relative to the commit: a failure is
// logged, not returned, and the order stays PENDING until re-triggered.
func (s *Service) Create(ctx context.Context, userID int64, items []ItemInput) (*Order, error) {
	o, err := s.Store.CreateOrder(ctx, userID, items)
	if err != nil {
		return nil, err
	}
	if err := s.Queue.Publish(ctx, queue.TopicReserve, queue.Event{OrderID: o.ID}); err != nil {
		s.Log.Error().Err(err).Int64("order_id", o.ID).Msg("publish reserve event")
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID int64) (*Order, error) {
	return s.Store.GetOrder(ctx, orderID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Order, error) {
	return s.Store.ListOrders(ctx, limit, offset)
}

func (s *Service) Pay(ctx context.Context, orderID int64) (*Order, error) {
	o, err := s.Store.MarkPaid(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, orderID)
	return o, nil
}

// Cancel marks the order CANCELLED and, when stock was already committed,
// enqueues the compensation event. The status write and the restock are not
// atomic with each other: the ledger can transiently read "cancelled but not
// yet restocked" until the worker picks the event up.
func (s *Service) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	o, restock, err := s.Store.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, orderID)
	if restock {
		if err := s.Queue.Publish(ctx, queue.TopicCancel, queue.Event{OrderID: orderID}); err != nil {
			s.Log.Error().Err(err).Int64("order_id", orderID).Msg("publish cancel event")
		}
	}
	return o, nil
}

func (s *Service) invalidate(ctx context.Context, orderID int64) {
	if err := s.Cache.Invalidate(ctx, orderID); err != nil {
		s.Log.Warn().Err(err).Int64("order_id", orderID).Msg("invalidate status cache")
	}
}
