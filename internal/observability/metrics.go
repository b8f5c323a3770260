package observability

type Metrics interface {
	ObserveLookup(source string, cacheMs, dbMs float64)
	ObserveCreate(dbWriteMs float64)
	ObserveGeocode(outcome string, durMs float64)
	ObservePlace(created bool)
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveKafka(processMs float64, ok bool)
	IncCacheHit()
	IncCacheMiss()
}

// Geocode outcomes reported through ObserveGeocode.
const (
	GeocodeResolved = "resolved"
	GeocodeNoMatch  = "no_match"
	GeocodeError    = "error"
	GeocodeSkipped  = "skipped"
	// GeocodePlaceError means the place itself could not be read or stored.
	GeocodePlaceError = "place_error"
)

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObserveLookup(string, float64, float64)   {}
func (Noop) ObserveCreate(float64)                    {}
func (Noop) ObserveGeocode(string, float64)           {}
func (Noop) ObservePlace(bool)                        {}
func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) ObserveKafka(float64, bool)               {}
func (Noop) IncCacheHit()                             {}
func (Noop) IncCacheMiss()                            {}
