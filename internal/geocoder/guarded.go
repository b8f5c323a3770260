package geocoder

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/TemirB/foodcart/internal/config"
	"github.com/TemirB/foodcart/internal/domain"
	"github.com/TemirB/foodcart/internal/pkg/breaker"
	"github.com/TemirB/foodcart/internal/pkg/retry"
)

type Resolver interface {
	Resolve(ctx context.Context, address string) (domain.Coordinates, error)
}

// Guarded adds a retry policy and a circuit breaker in front of a Resolver.
// Only *ServiceError outcomes are retried and counted as breaker failures.
type Guarded struct {
	inner   Resolver
	breaker *breaker.Breaker
	policy  config.Retry
	logger  *zap.Logger
}

func NewGuarded(inner Resolver, brk *breaker.Breaker, policy config.Retry, logger *zap.Logger) *Guarded {
	return &Guarded{
		inner:   inner,
		breaker: brk,
		policy:  policy,
		logger:  logger,
	}
}

func (g *Guarded) Resolve(ctx context.Context, address string) (domain.Coordinates, error) {
	var coords domain.Coordinates
	attempt := 0

	err := retry.Do(ctx, g.policy, func() error {
		attempt++
		if err := g.breaker.Allow(); err != nil {
			return retry.Permanent(&ServiceError{Op: "breaker", Err: err})
		}

		c, err := g.inner.Resolve(ctx, address)
		var se *ServiceError
		switch {
		case err == nil:
			g.breaker.Success()
			coords = c
			return nil
		case errors.As(err, &se):
			g.breaker.Failure()
			g.logger.Warn("geocoder call failed",
				zap.String("address", address),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		default:
			// no match or a refused address: the service itself is healthy
			g.breaker.Success()
			return retry.Permanent(err)
		}
	})
	if err == nil {
		return coords, nil
	}

	var se *ServiceError
	if !errors.As(err, &se) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return domain.Coordinates{}, &ServiceError{Op: "request", Err: err}
	}
	return domain.Coordinates{}, err
}
