package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foodcart"

// Prometheus implements Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	lookups        *prometheus.HistogramVec // labels: source={cache,db}
	createDuration prometheus.Histogram
	geocodes       *prometheus.CounterVec   // labels: outcome={resolved,no_match,error,skipped}
	geocodeLatency *prometheus.HistogramVec // labels: outcome
	places         *prometheus.CounterVec   // labels: created={true,false}
	httpRequests   *prometheus.CounterVec   // labels: method, route, status
	httpDuration   *prometheus.HistogramVec // labels: method, route
	kafkaMessages  *prometheus.CounterVec   // labels: ok
	kafkaDuration  prometheus.Histogram
	cache          *prometheus.CounterVec // labels: result={hit,miss}
}

func NewPrometheus() *Prometheus {
	msBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_lookup_duration_ms",
			Help:      "Order lookup duration by source.",
			Buckets:   msBuckets,
		}, []string{"source"}),
		createDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_create_db_duration_ms",
			Help:      "Duration of the order + items insert transaction.",
			Buckets:   msBuckets,
		}),
		geocodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Address resolutions by outcome.",
		}, []string{"outcome"}),
		geocodeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_duration_ms",
			Help:      "Geocoder call duration.",
			Buckets:   msBuckets,
		}, []string{"outcome"}),
		places: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_lookups_total",
			Help:      "Place lookup-or-create calls by whether a new place was created.",
		}, []string{"created"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request duration.",
			Buckets:   msBuckets,
		}, []string{"method", "route"}),
		kafkaMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_total",
			Help:      "Consumed order submissions by result.",
		}, []string{"ok"}),
		kafkaDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_message_duration_ms",
			Help:      "Order submission processing duration.",
			Buckets:   msBuckets,
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_cache_total",
			Help:      "Order cache lookups by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.lookups,
		m.createDuration,
		m.geocodes,
		m.geocodeLatency,
		m.places,
		m.httpRequests,
		m.httpDuration,
		m.kafkaMessages,
		m.kafkaDuration,
		m.cache,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }

func (m *Prometheus) ObserveLookup(source string, cacheMs, dbMs float64) {
	m.lookups.WithLabelValues(source).Observe(cacheMs + dbMs)
}

func (m *Prometheus) ObserveCreate(dbWriteMs float64) {
	m.createDuration.Observe(dbWriteMs)
}

func (m *Prometheus) ObserveGeocode(outcome string, durMs float64) {
	m.geocodes.WithLabelValues(outcome).Inc()
	if durMs > 0 {
		m.geocodeLatency.WithLabelValues(outcome).Observe(durMs)
	}
}

func (m *Prometheus) ObservePlace(created bool) {
	m.places.WithLabelValues(strconv.FormatBool(created)).Inc()
}

func (m *Prometheus) ObserveHTTP(method, route string, status int, durMs float64) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(durMs)
}

func (m *Prometheus) ObserveKafka(processMs float64, ok bool) {
	m.kafkaMessages.WithLabelValues(strconv.FormatBool(ok)).Inc()
	m.kafkaDuration.Observe(processMs)
}

func (m *Prometheus) IncCacheHit()  { m.cache.WithLabelValues("hit").Inc() }
func (m *Prometheus) IncCacheMiss() { m.cache.WithLabelValues("miss").Inc() }
