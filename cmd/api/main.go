package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ecommerce-labs/order-fulfillment/internal/config"
	"github.com/ecommerce-labs/order-fulfillment/internal/httpx"
	"github.com/ecommerce-labs/order-fulfillment/internal/orders"
	"github.com/ecommerce-labs/order-fulfillment/internal/postgres"
	"github.com/ecommerce-labs/order-fulfillment/internal/queue"
	"github.com/ecommerce-labs/order-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	repo := &orders.Repo{DB: db}
	cache := redisx.NewCache(rdb)
	svc := orders.NewService(repo, queue.NewClient(rdb), cache, log)

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: svc, Cache: cache}).Register(router)
	(&httpx.ProductsHandler{Store: repo}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
}
