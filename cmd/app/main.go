package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TemirB/foodcart/internal/application/handler"
	"github.com/TemirB/foodcart/internal/application/places"
	"github.com/TemirB/foodcart/internal/application/service"
	"github.com/TemirB/foodcart/internal/cache"
	"github.com/TemirB/foodcart/internal/config"
	"github.com/TemirB/foodcart/internal/database"
	"github.com/TemirB/foodcart/internal/domain"
	"github.com/TemirB/foodcart/internal/geocoder"
	"github.com/TemirB/foodcart/internal/httpapi"
	"github.com/TemirB/foodcart/internal/kafka"
	"github.com/TemirB/foodcart/internal/observability"
	"github.com/TemirB/foodcart/internal/pkg/breaker"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("foodcart stopped with error", zap.Error(err))
	}
	logger.Info("foodcart stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics := observability.NewPrometheus()

	// Database
	pool, err := database.Connect(ctx, cfg.DSN(), logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger.Named("migrate")); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Caches
	orderCache, err := cache.New[int64, domain.Order](cfg.CacheCap, func(o domain.Order) int64 { return o.ID })
	if err != nil {
		return fmt.Errorf("order cache: %w", err)
	}
	placeCache, err := cache.New[string, domain.Place](cfg.CacheCap, func(p domain.Place) string { return p.Address })
	if err != nil {
		return fmt.Errorf("place cache: %w", err)
	}

	// Services
	placeSvc := places.NewService(
		database.NewPlaceRepo(pool),
		placeCache,
		clockwork.NewRealClock(),
		logger.Named("places"),
		metrics,
	)

	geoLogger := logger.Named("geocoder")
	resolver := geocoder.NewGuarded(
		geocoder.NewClient(cfg.Geocoder.APIKey, cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout, geoLogger),
		breaker.New(cfg.Breaker),
		cfg.Retry,
		geoLogger,
	)

	orderSvc := service.NewService(
		orderCache,
		database.NewOrderRepo(pool),
		placeSvc,
		resolver,
		cfg.Geocoder.Timeout,
		logger.Named("orders"),
		metrics,
	)

	if n, err := orderSvc.Warm(ctx); err != nil {
		logger.Warn("Order cache warm-up failed", zap.Error(err))
	} else {
		logger.Info("Order cache warmed", zap.Int("orders", n))
	}
	if n, err := placeSvc.Warm(ctx); err != nil {
		logger.Warn("Place cache warm-up failed", zap.Error(err))
	} else {
		logger.Info("Place cache warmed", zap.Int("places", n))
	}

	g, gctx := errgroup.WithContext(ctx)

	// Kafka intake
	if cfg.Kafka.Enabled() {
		kafkaLogger := logger.Named("kafka")
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, 1, kafkaLogger); err != nil {
			return fmt.Errorf("kafka topic: %w", err)
		}

		reader := kafka.NewReader(cfg.Kafka)
		defer reader.Close()

		h := handler.NewHandler(orderSvc, breaker.New(cfg.Breaker), cfg.Retry, kafkaLogger, metrics)
		consumer := kafka.NewConsumer(h, reader, cfg.Kafka.Workers, kafkaLogger)
		g.Go(func() error {
			consumer.Start(gctx)
			return nil
		})
	} else {
		logger.Info("KAFKA_BROKERS is empty, Kafka intake disabled")
	}

	// HTTP
	srv := httpapi.New(orderSvc, placeSvc, pool, logger.Named("http"), metrics)
	g.Go(func() error {
		if err := srv.ListenAndServe(gctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	return g.Wait()
}
