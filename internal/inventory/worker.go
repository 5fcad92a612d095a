package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecommerce-labs/order-fulfillment/internal/queue"
)

const defaultPoll = time.Second

// Worker is the single sequential consumer of the fulfillment queue. Each
// event is processed to completion before the next blocking pop; there is
// no cancellation of an in-flight reservation.
type Worker struct {
	Queue queue.Consumer
	Svc   *Service
	Poll  time.Duration
	Log   zerolog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	poll := w.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	w.Log.Info().Dur("poll", poll).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		topic, ev, err := w.Queue.ConsumeAny(ctx, poll)
		if errors.Is(err, queue.ErrNoEvent) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Log.Error().Err(err).Msg("consume")
			time.Sleep(200 * time.Millisecond)
			continue
		}

		switch topic {
		case queue.TopicReserve:
			err = w.Svc.HandleReserve(ctx, ev)
		case queue.TopicCancel:
			err = w.Svc.HandleCancel(ctx, ev)
		default:
			w.Log.Warn().Str("topic", topic).Msg("unknown topic")
			continue
		}
		if err != nil {
			// no retry: the event is gone, the order keeps its last
			// committed status
			w.Log.Error().Err(err).Str("topic", topic).Int64("order_id", ev.OrderID).Msg("handle event")
		}
	}
}
