package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ecommerce-labs/order-fulfillment/internal/config"
	"github.com/ecommerce-labs/order-fulfillment/internal/inventory"
	kafkax "github.com/ecommerce-labs/order-fulfillment/internal/kafka"
	"github.com/ecommerce-labs/order-fulfillment/internal/orders"
	"github.com/ecommerce-labs/order-fulfillment/internal/postgres"
	"github.com/ecommerce-labs/order-fulfillment/internal/queue"
	"github.com/ecommerce-labs/order-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Str("service", cfg.ServiceName+"-worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// lifecycle notification producers, one per topic
	pReserved := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockReserved, 1024)
	pReserved.Start(ctx)
	pRejected := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockRejected, 1024)
	pRejected.Start(ctx)
	pReleased := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockReleased, 1024)
	pReleased.Start(ctx)

	svc := &inventory.Service{
		Store:        &inventory.ReservationRepo{DB: db},
		Cache:        redisx.NewCache(rdb),
		SinkReserved: pReserved,
		SinkRejected: pRejected,
		SinkReleased: pReleased,
		ServiceName:  cfg.ServiceName + "-worker",
		Log:          log,
	}
	w := &inventory.Worker{
		Queue: queue.NewClient(rdb),
		Svc:   svc,
		Poll:  cfg.WorkerPoll,
		Log:   log,
	}

	// The worker gets its own context so it can be drained before the
	// producers close their inboxes; an in-flight handler must never
	// publish into a closed producer.
	wctx, wcancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(wctx); err != nil {
			log.Error().Err(err).Msg("worker exit")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down worker...")
	case <-done:
	}
	wcancel()
	<-done
	cancel()
	pReserved.WaitClosed()
	pRejected.WaitClosed()
	pReleased.WaitClosed()
}
