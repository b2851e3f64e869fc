package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/catalog"
	"github.com/quickbite/orderflow/internal/config"
	"github.com/quickbite/orderflow/internal/db"
	"github.com/quickbite/orderflow/internal/delivery"
	"github.com/quickbite/orderflow/internal/events"
	"github.com/quickbite/orderflow/internal/httpapi"
	"github.com/quickbite/orderflow/internal/order"
	"github.com/quickbite/orderflow/internal/payment"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "orderflow").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	rabbitConn, err := events.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect rabbitmq")
	}
	defer rabbitConn.Close()

	publisher, err := events.NewPublisher(rabbitConn)
	if err != nil {
		logger.Fatal().Err(err).Msg("init publisher")
	}

	var tokens payment.TokenCache = payment.NewMemoryTokenCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		tokens = payment.NewRedisTokenCache(rdb, logger)
	}

	cartRepo := cart.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)
	deliveryRepo := delivery.NewPostgresRepository(pool)
	paymentRepo := payment.NewPostgresRepository(pool)

	menu := catalog.NewClient(cfg.CatalogBaseURL)
	gateway := payment.NewClient(cfg.Payment, tokens, logger)

	orderSvc := order.NewService(orderRepo, cartRepo, menu, publisher, logger)
	deliverySvc := delivery.NewService(deliveryRepo, orderRepo, publisher, logger)
	paymentSvc := payment.NewService(paymentRepo, orderRepo, gateway, publisher, cfg.Payment, logger)

	router := httpapi.NewRouter(httpapi.Handlers{
		Cart:     httpapi.NewCartHandler(cartRepo, menu),
		Orders:   httpapi.NewOrderHandler(orderSvc),
		Delivery: httpapi.NewDeliveryHandler(deliverySvc),
		Payments: httpapi.NewPaymentHandler(paymentSvc, cfg.CallbackSecret),
	}, cfg.JWTSecret)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
