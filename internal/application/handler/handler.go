package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/foodcart/internal/config"
	"github.com/TemirB/foodcart/internal/domain"
	"github.com/TemirB/foodcart/internal/observability"
	"github.com/TemirB/foodcart/internal/pkg/retry"
)

//go:generate mockgen -source internal/application/handler/handler.go -destination=internal/application/handler/handler_mock_test.go -package=handler

var (
	ErrCreate      = errors.New("create order failed")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

type Service interface {
	CreateOrder(ctx context.Context, in domain.OrderInput) (*domain.Order, error)
}

type brk interface {
	Allow() error
	Success()
	Failure()
}

// Handler turns order submissions from Kafka into orders.
type Handler struct {
	service     Service
	breaker     brk
	retryPolicy config.Retry
	logger      *zap.Logger
	metrics     observability.Metrics
}

func NewHandler(service Service, breaker brk, retryPolicy config.Retry, logger *zap.Logger, metrics observability.Metrics) *Handler {
	return &Handler{
		service:     service,
		breaker:     breaker,
		retryPolicy: retryPolicy,
		logger:      logger,
		metrics:     metrics,
	}
}

// Handle processes a single message. A nil return lets the consumer commit
// the offset, so submissions that can never succeed return nil as well.
func (h *Handler) Handle(ctx context.Context, message kafkago.Message) (err error) {
	t0 := time.Now()
	defer func() {
		h.metrics.ObserveKafka(observability.Ms(time.Since(t0)), err == nil)
	}()

	fields := []zap.Field{
		zap.Int("partition", message.Partition),
		zap.Int64("offset", message.Offset),
	}

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open", append(fields, zap.Error(err))...)
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	var in domain.OrderInput
	if err := json.Unmarshal(message.Value, &in); err != nil {
		h.logger.Error("bad json format, message skipped", append(fields, zap.Error(err))...)
		return nil
	}

	var order *domain.Order
	err = retry.Do(ctx, h.retryPolicy, func() error {
		var err error
		order, err = h.service.CreateOrder(ctx, in)
		if domain.IsValidation(err) {
			return retry.Permanent(err)
		}
		return err
	})
	switch {
	case domain.IsValidation(err):
		h.breaker.Success()
		h.logger.Warn("invalid order, message skipped", append(fields, zap.Error(err))...)
		return nil
	case err != nil:
		h.breaker.Failure()
		h.logger.Error("create order failed after retries", append(fields, zap.Error(err))...)
		return fmt.Errorf("%w: %v", ErrCreate, err)
	}

	h.breaker.Success()
	h.logger.Info("successfully processed order",
		append(fields,
			zap.Int64("order_id", order.ID),
			zap.Int("key_bytes", len(message.Key)),
			zap.Int("value_bytes", len(message.Value)),
		)...,
	)
	return nil
}
