package places

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/TemirB/foodcart/internal/cache"
	"github.com/TemirB/foodcart/internal/domain"
	"github.com/TemirB/foodcart/internal/observability"
)

//go:generate mockgen -source internal/application/places/places.go -destination=internal/application/places/places_mock_test.go -package=places

type Storage interface {
	LookupOrCreate(ctx context.Context, address string, now time.Time) (domain.Place, bool, error)
	Store(ctx context.Context, address string, c domain.Coordinates, at time.Time) (domain.Place, error)
	GetByAddress(ctx context.Context, address string) (domain.Place, error)
	RecentResolved(ctx context.Context, limit int) ([]domain.Place, error)
}

// Cache holds resolved places keyed by normalized address.
type Cache interface {
	Get(address string) (domain.Place, bool)
	Set(p domain.Place)
	Warm(ctx context.Context, load cache.Loader[domain.Place]) (int, error)
}

// Service is the place cache: one persisted Place per normalized address,
// fronted by an in-memory LRU of resolved places.
type Service struct {
	storage Storage
	cache   Cache
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics observability.Metrics
}

func NewService(storage Storage, cache Cache, clock clockwork.Clock, logger *zap.Logger, metrics observability.Metrics) *Service {
	return &Service{
		storage: storage,
		cache:   cache,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// LookupOrCreate returns the place for address, creating an unresolved one if
// it does not exist yet. created is true for exactly one caller per address.
func (s *Service) LookupOrCreate(ctx context.Context, address string) (domain.Place, bool, error) {
	key, err := normalize(address)
	if err != nil {
		return domain.Place{}, false, err
	}

	if p, ok := s.cache.Get(key); ok {
		s.metrics.ObservePlace(false)
		return p, false, nil
	}

	p, created, err := s.storage.LookupOrCreate(ctx, key, s.clock.Now())
	if err != nil {
		s.logger.Error("Place lookup failed",
			zap.String("address", key),
			zap.Error(err),
		)
		return domain.Place{}, false, err
	}

	s.metrics.ObservePlace(created)
	if created {
		s.logger.Info("Place created", zap.Int64("place_id", p.ID), zap.String("address", key))
	} else if p.Resolved() {
		s.cache.Set(p)
	}
	return p, created, nil
}

// Store records coordinates for the place, rounded to domain.CoordinatePrecision.
func (s *Service) Store(ctx context.Context, place domain.Place, c domain.Coordinates) (domain.Place, error) {
	key, err := normalize(place.Address)
	if err != nil {
		return domain.Place{}, err
	}

	stored, err := s.storage.Store(ctx, key, domain.NewCoordinates(c.Longitude, c.Latitude), s.clock.Now())
	if err != nil {
		s.logger.Error("Place store failed",
			zap.String("address", key),
			zap.Error(err),
		)
		return domain.Place{}, err
	}

	s.cache.Set(stored)
	s.logger.Info("Place resolved",
		zap.Int64("place_id", stored.ID),
		zap.String("address", key),
		zap.String("lon", stored.Longitude.Decimal.String()),
		zap.String("lat", stored.Latitude.Decimal.String()),
	)
	return stored, nil
}

// Get reads a place through the cache. Unresolved places are not cached.
func (s *Service) Get(ctx context.Context, address string) (domain.Place, error) {
	key, err := normalize(address)
	if err != nil {
		return domain.Place{}, err
	}

	if p, ok := s.cache.Get(key); ok {
		return p, nil
	}

	p, err := s.storage.GetByAddress(ctx, key)
	if err != nil {
		return domain.Place{}, err
	}
	if p.Resolved() {
		s.cache.Set(p)
	}
	return p, nil
}

// Warm preloads the most recently resolved places.
func (s *Service) Warm(ctx context.Context) (int, error) {
	return s.cache.Warm(ctx, s.storage.RecentResolved)
}

func normalize(address string) (string, error) {
	key := domain.NormalizeAddress(address)
	if key == "" {
		return "", &domain.ValidationError{Reason: "empty address", Fields: []string{"address"}}
	}
	return key, nil
}
