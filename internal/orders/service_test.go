package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ecommerce-labs/order-fulfillment/internal/queue"
)

type memStore struct {
	orders   map[int64]*Order
	products map[int64]Product
	nextID   int64
}

func newMemStore(products ...Product) *memStore {
	s := &memStore{orders: map[int64]*Order{}, products: map[int64]Product{}, nextID: 1}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) CreateOrder(_ context.Context, userID int64, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	lines, total, err := PriceItems(s.products, items)
	if err != nil {
		return nil, err
	}
	o := &Order{ID: s.nextID, UserID: userID, Status: StatusPending, TotalCents: total, Items: lines}
	s.nextID++
	s.orders[o.ID] = o
	return o, nil
}

func (s *memStore) GetOrder(_ context.Context, id int64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *memStore) ListOrders(_ context.Context, _, _ int) ([]Order, error) {
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *memStore) MarkPaid(_ context.Context, id int64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if !CanTransition(o.Status, StatusPaid) {
		return nil, fmt.Errorf("pay order %d in status %s: %w", id, o.Status, ErrInvalidTransition)
	}
	o.Status = StatusPaid
	return o, nil
}

func (s *memStore) CancelOrder(_ context.Context, id int64) (*Order, bool, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, false, ErrOrderNotFound
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, false, fmt.Errorf("cancel order %d in status %s: %w", id, o.Status, ErrInvalidTransition)
	}
	restock := o.Status.StockCommitted()
	o.Status = StatusCancelled
	return o, restock, nil
}

type fakePublisher struct {
	published []struct {
		Topic string
		Event queue.Event
	}
	fail error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, ev queue.Event) error {
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, struct {
		Topic string
		Event queue.Event
	}{topic, ev})
	return nil
}

type nopCache struct{ invalidated []int64 }

func (c *nopCache) Invalidate(_ context.Context, id int64) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}

func newTestService(store Store, pub queue.Publisher, cache StatusCache) *Service {
	return NewService(store, pub, cache, zerolog.Nop())
}

func TestCreateEnqueuesReserveEvent(t *testing.T) {
	store := newMemStore(Product{ID: 1, PriceCents: 500}, Product{ID: 2, PriceCents: 300})
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &nopCache{})

	o, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", o.Status)
	}
	if o.TotalCents != 1300 {
		t.Errorf("total = %d, want 1300", o.TotalCents)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	if got := pub.published[0]; got.Topic != queue.TopicReserve || got.Event.OrderID != o.ID {
		t.Errorf("published %+v, want reserve event for order %d", got, o.ID)
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	store := newMemStore(Product{ID: 1, PriceCents: 100})
	pub := &fakePublisher{fail: errors.New("redis down")}
	svc := newTestService(store, pub, &nopCache{})

	o, err := svc.Create(context.Background(), 1, []ItemInput{{ProductID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("create should not fail on publish error, got %v", err)
	}
	if o.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", o.Status)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := newTestService(newMemStore(Product{ID: 1, PriceCents: 100}), &fakePublisher{}, &nopCache{})

	if _, err := svc.Create(context.Background(), 1, nil); !errors.Is(err, ErrNoItems) {
		t.Errorf("empty items: err = %v, want ErrNoItems", err)
	}
	_, err := svc.Create(context.Background(), 1, []ItemInput{{ProductID: 1, Quantity: 0}})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero qty: err = %v, want ErrInvalidQuantity", err)
	}
	_, err = svc.Create(context.Background(), 1, []ItemInput{{ProductID: 42, Quantity: 1}})
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("unknown product: err = %v, want ErrProductNotFound", err)
	}
}

func TestPayFromReservedThenAgain(t *testing.T) {
	store := newMemStore()
	store.orders[10] = &Order{ID: 10, Status: StatusReserved}
	cache := &nopCache{}
	svc := newTestService(store, &fakePublisher{}, cache)

	o, err := svc.Pay(context.Background(), 10)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if o.Status != StatusPaid {
		t.Errorf("status = %s, want PAID", o.Status)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != 10 {
		t.Errorf("cache invalidations = %v, want [10]", cache.invalidated)
	}

	if _, err := svc.Pay(context.Background(), 10); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second pay: err = %v, want ErrInvalidTransition", err)
	}
}

func TestPayRejectsPending(t *testing.T) {
	store := newMemStore()
	store.orders[3] = &Order{ID: 3, Status: StatusPending}
	svc := newTestService(store, &fakePublisher{}, &nopCache{})

	if _, err := svc.Pay(context.Background(), 3); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Pay(context.Background(), 99); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("missing order: err = %v, want ErrOrderNotFound", err)
	}
}

func TestCancelReservedEnqueuesCompensation(t *testing.T) {
	store := newMemStore()
	store.orders[5] = &Order{ID: 5, Status: StatusReserved}
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &nopCache{})

	o, err := svc.Cancel(context.Background(), 5)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if o.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", o.Status)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	if got := pub.published[0]; got.Topic != queue.TopicCancel || got.Event.OrderID != 5 {
		t.Errorf("published %+v, want cancel event for order 5", got)
	}
}

func TestCancelPendingSkipsCompensation(t *testing.T) {
	store := newMemStore()
	store.orders[6] = &Order{ID: 6, Status: StatusPending}
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &nopCache{})

	o, err := svc.Cancel(context.Background(), 6)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if o.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", o.Status)
	}
	// no stock was committed for a PENDING order, nothing to restore
	if len(pub.published) != 0 {
		t.Errorf("published %d events, want 0", len(pub.published))
	}
}

func TestCancelFinalizedRejected(t *testing.T) {
	store := newMemStore()
	store.orders[1] = &Order{ID: 1, Status: StatusPaid}
	store.orders[2] = &Order{ID: 2, Status: StatusCancelled}
	svc := newTestService(store, &fakePublisher{}, &nopCache{})

	for _, id := range []int64{1, 2} {
		if _, err := svc.Cancel(context.Background(), id); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("order %d: err = %v, want ErrInvalidTransition", id, err)
		}
	}
}
