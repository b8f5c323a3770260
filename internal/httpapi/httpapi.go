package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/TemirB/foodcart/internal/application/service"
	"github.com/TemirB/foodcart/internal/domain"
	"github.com/TemirB/foodcart/internal/observability"
)

//go:generate mockgen -source internal/httpapi/httpapi.go -destination=internal/httpapi/httpapi_mock_test.go -package=httpapi

type OrderService interface {
	CreateOrderWithStats(ctx context.Context, in domain.OrderInput) (*domain.Order, service.CreateStats, error)
	GetByIDWithStats(ctx context.Context, id int64) (*domain.Order, service.LookupStats, error)
}

type PlaceService interface {
	Get(ctx context.Context, address string) (domain.Place, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

type Server struct {
	orders  OrderService
	places  PlaceService
	ready   Pinger
	router  chi.Router
	logger  *zap.Logger
	metrics observability.Metrics
}

// New builds the router. When metrics can serve itself (the Prometheus
// backend does) it is mounted at /metrics. ready may be nil.
func New(orders OrderService, places PlaceService, ready Pinger, logger *zap.Logger, metrics observability.Metrics) *Server {
	s := &Server{
		orders:  orders,
		places:  places,
		ready:   ready,
		router:  chi.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		ServerTimingApp(s.metrics),
	)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/readyz", s.readyz)
	if h, ok := s.metrics.(interface{ Handler() http.Handler }); ok {
		s.router.Method(http.MethodGet, "/metrics", h.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/order", s.createOrder)
		r.Get("/order/{id}", s.getOrder)
		r.Get("/places", s.getPlace)
	})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	order, st, err := s.orders.GetByIDWithStats(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "no order with this id", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Service error", http.StatusInternalServerError)
		return
	}

	observability.AppendServerTiming(w, "cache", st.CacheMs, "")
	observability.AppendServerTiming(w, "db", st.DBMs, "")
	observability.AppendServerTiming(w, "source", 0, string(st.Source))
	w.Header().Set("X-Source", string(st.Source))
	observability.SetIfPos(w, "X-Cache-Time", st.CacheMs)
	observability.SetIfPos(w, "X-DB-Time", st.DBMs)

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var in domain.OrderInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&in); err != nil {
		s.logger.Info(
			"Error while decoding JSON",
			zap.Error(err),
		)
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	order, st, err := s.orders.CreateOrderWithStats(r.Context(), in)
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Service error", http.StatusInternalServerError)
		return
	}

	observability.AppendServerTiming(w, "db_write", st.DBWriteMs, "")
	observability.AppendServerTiming(w, "geocode", st.GeocodeMs, st.GeocodeOutcome)
	w.Header().Set("Location", "/api/order/"+strconv.FormatInt(order.ID, 10))

	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getPlace(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if strings.TrimSpace(address) == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}

	place, err := s.places.Get(r.Context(), address)
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "unknown address", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Service error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, place)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}

func (s *Server) Handler() http.Handler { return s.router }
