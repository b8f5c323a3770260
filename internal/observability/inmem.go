package observability

import (
	"strconv"
	"sync"
)

type observe struct {
	Kind    string
	Label   string
	Status  int
	Ms      float64
	DbMs    float64
	Outcome string
}

// Inmem keeps the last max observations and cache totals in memory.
type Inmem struct {
	mu     sync.Mutex
	last   []*observe
	max    int
	totals struct {
		cacheHits, cacheMiss int
	}
}

func NewInmem(max int) *Inmem {
	return &Inmem{
		max: max,
	}
}

func (m *Inmem) push(v *observe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = append(m.last, v)
	if len(m.last) > m.max {
		m.last = m.last[1:]
	}
}

// Count returns how many retained observations have the given kind and outcome.
// An empty outcome matches any.
func (m *Inmem) Count(kind, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.last {
		if o.Kind == kind && (outcome == "" || o.Outcome == outcome) {
			n++
		}
	}
	return n
}

func (m *Inmem) CacheTotals() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals.cacheHits, m.totals.cacheMiss
}

func (m *Inmem) ObserveLookup(source string, cacheMs, dbMs float64) {
	m.push(&observe{Kind: "lookup", Outcome: source, Ms: cacheMs, DbMs: dbMs})
}

func (m *Inmem) ObserveCreate(dbWriteMs float64) {
	m.push(&observe{Kind: "create", DbMs: dbWriteMs})
}

func (m *Inmem) ObserveGeocode(outcome string, durMs float64) {
	m.push(&observe{Kind: "geocode", Outcome: outcome, Ms: durMs})
}

func (m *Inmem) ObservePlace(created bool) {
	m.push(&observe{Kind: "place", Outcome: strconv.FormatBool(created)})
}

func (m *Inmem) ObserveHTTP(method, route string, status int, durMs float64) {
	m.push(&observe{Kind: "http", Label: method + " " + route, Status: status, Ms: durMs})
}

func (m *Inmem) ObserveKafka(processMs float64, ok bool) {
	m.push(&observe{Kind: "kafka", Outcome: strconv.FormatBool(ok), Ms: processMs})
}

func (m *Inmem) IncCacheHit() {
	m.mu.Lock()
	m.totals.cacheHits++
	m.mu.Unlock()
}

func (m *Inmem) IncCacheMiss() {
	m.mu.Lock()
	m.totals.cacheMiss++
	m.mu.Unlock()
}
