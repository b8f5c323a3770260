package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/foodcart/internal/cache"
	"github.com/TemirB/foodcart/internal/domain"
	"github.com/TemirB/foodcart/internal/observability"
)

//go:generate mockgen -source internal/application/service/service.go -destination=internal/application/service/service_mock_test.go -package=service

type Cache interface {
	Set(domain.Order)
	Get(int64) (domain.Order, bool)
	Warm(context.Context, cache.Loader[domain.Order]) (int, error)
}

type Storage interface {
	CreateOrder(context.Context, domain.OrderInput) (*domain.Order, error)
	GetByID(context.Context, int64) (*domain.Order, error)
	RecentOrders(context.Context, int) ([]domain.Order, error)
}

type Places interface {
	LookupOrCreate(ctx context.Context, address string) (domain.Place, bool, error)
	Store(ctx context.Context, place domain.Place, c domain.Coordinates) (domain.Place, error)
}

type Resolver interface {
	Resolve(ctx context.Context, address string) (domain.Coordinates, error)
}

// storeTimeout bounds writing resolved coordinates. It does not share the
// geocode deadline, so a late resolve still gets persisted.
const storeTimeout = 3 * time.Second

type Service struct {
	cache          Cache
	storage        Storage
	places         Places
	resolver       Resolver
	geocodeTimeout time.Duration
	logger         *zap.Logger
	metrics        observability.Metrics
}

func NewService(
	cache Cache,
	storage Storage,
	places Places,
	resolver Resolver,
	geocodeTimeout time.Duration,
	logger *zap.Logger,
	metrics observability.Metrics,
) *Service {
	return &Service{
		cache:          cache,
		storage:        storage,
		places:         places,
		resolver:       resolver,
		geocodeTimeout: geocodeTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

func (s *Service) CreateOrder(ctx context.Context, in domain.OrderInput) (*domain.Order, error) {
	o, _, err := s.CreateOrderWithStats(ctx, in)
	return o, err
}

// CreateOrderWithStats persists the order, then makes sure its delivery
// address has a Place. Only validation and persistence errors are returned;
// place and geocoding failures are logged and counted.
func (s *Service) CreateOrderWithStats(ctx context.Context, in domain.OrderInput) (*domain.Order, CreateStats, error) {
	var st CreateStats

	if err := in.Validate(); err != nil {
		s.logger.Info("Order rejected", zap.Error(err))
		return nil, st, err
	}

	t0 := time.Now()
	order, err := s.storage.CreateOrder(ctx, in)
	if err != nil {
		s.logger.Error(
			"Error while creating order in db",
			zap.Error(err),
		)
		return nil, st, err
	}
	st.DBWriteMs = convertToMs(t0)
	s.metrics.ObserveCreate(st.DBWriteMs)

	s.cache.Set(*order)

	st.GeocodeOutcome, st.GeocodeMs = s.locate(ctx, order.ID, in.Address)
	s.metrics.ObserveGeocode(st.GeocodeOutcome, st.GeocodeMs)

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.Float64("db_write_ms", st.DBWriteMs),
		zap.String("geocode", st.GeocodeOutcome),
	)
	return order, st, nil
}

// locate ensures a Place exists for address and resolves it when this call
// created it. The order is already committed, so the work outlives caller
// cancellation; resolution is bounded by geocodeTimeout.
func (s *Service) locate(ctx context.Context, orderID int64, address string) (string, float64) {
	ctx = context.WithoutCancel(ctx)

	place, created, err := s.places.LookupOrCreate(ctx, address)
	if err != nil {
		s.logger.Warn("Place lookup failed, order kept without place",
			zap.Int64("order_id", orderID),
			zap.String("address", address),
			zap.Error(err),
		)
		return observability.GeocodePlaceError, 0
	}
	if !created {
		return observability.GeocodeSkipped, 0
	}

	rctx, cancel := context.WithTimeout(ctx, s.geocodeTimeout)
	defer cancel()

	t0 := time.Now()
	coords, err := s.resolver.Resolve(rctx, strings.TrimSpace(address))
	ms := convertToMs(t0)
	switch {
	case errors.Is(err, domain.ErrNoMatch):
		s.logger.Info("Address not found by geocoder",
			zap.Int64("order_id", orderID),
			zap.Int64("place_id", place.ID),
			zap.String("address", address),
		)
		return observability.GeocodeNoMatch, ms
	case err != nil:
		s.logger.Warn("Geocoding failed, place left unresolved",
			zap.Int64("order_id", orderID),
			zap.Int64("place_id", place.ID),
			zap.String("address", address),
			zap.Error(err),
		)
		return observability.GeocodeError, ms
	}

	sctx, scancel := context.WithTimeout(ctx, storeTimeout)
	defer scancel()

	if _, err := s.places.Store(sctx, place, coords); err != nil {
		s.logger.Warn("Storing coordinates failed",
			zap.Int64("order_id", orderID),
			zap.Int64("place_id", place.ID),
			zap.Error(err),
		)
		return observability.GeocodePlaceError, ms
	}
	return observability.GeocodeResolved, ms
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, _, err := s.GetByIDWithStats(ctx, id)
	return o, err
}

func (s *Service) GetByIDWithStats(ctx context.Context, id int64) (*domain.Order, LookupStats, error) {
	var st LookupStats

	// Try cache
	tCacheStart := time.Now()
	if order, ok := s.cache.Get(id); ok {
		st.Source = SourceCache
		st.CacheMs = convertToMs(tCacheStart)
		s.metrics.IncCacheHit()
		s.metrics.ObserveLookup(string(st.Source), st.CacheMs, 0)

		s.logger.Debug("Order fetched from cache",
			zap.Int64("order_id", id),
			zap.Float64("cache_ms", st.CacheMs),
		)
		return &order, st, nil
	}

	// Try DB
	s.metrics.IncCacheMiss()
	st.CacheMs = convertToMs(tCacheStart)

	tDbStart := time.Now()
	order, err := s.storage.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("Order not found", zap.Int64("order_id", id))
		} else {
			s.logger.Error("Can't fetch order",
				zap.Int64("order_id", id),
				zap.Error(err),
			)
		}
		return nil, st, err
	}

	st.Source = SourceDB
	st.DBMs = convertToMs(tDbStart)

	s.cache.Set(*order)

	s.metrics.ObserveLookup(string(st.Source), st.CacheMs, st.DBMs)
	s.logger.Debug("Order fetched from DB",
		zap.Int64("order_id", id),
		zap.Float64("cache_ms", st.CacheMs),
		zap.Float64("db_ms", st.DBMs),
	)
	return order, st, nil
}

// Warm preloads the most recent orders into the cache.
func (s *Service) Warm(ctx context.Context) (int, error) {
	return s.cache.Warm(ctx, s.storage.RecentOrders)
}
