package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CoordinatePrecision is the number of decimal places kept for stored coordinates.
const CoordinatePrecision = 2

type Coordinates struct {
	Longitude decimal.Decimal `json:"lon"`
	Latitude  decimal.Decimal `json:"lat"`
}

// NewCoordinates rounds both components to CoordinatePrecision.
func NewCoordinates(lon, lat decimal.Decimal) Coordinates {
	return Coordinates{
		Longitude: lon.Round(CoordinatePrecision),
		Latitude:  lat.Round(CoordinatePrecision),
	}
}

// Place caches the geocoding result for one normalized delivery address.
// Null coordinates mean the address is known but was never resolved.
type Place struct {
	ID         int64               `json:"id"`
	Address    string              `json:"address"`
	Longitude  decimal.NullDecimal `json:"lon"`
	Latitude   decimal.NullDecimal `json:"lat"`
	ResolvedAt time.Time           `json:"resolved_at"`
}

func (p Place) Resolved() bool {
	return p.Longitude.Valid && p.Latitude.Valid
}

func (p Place) Coordinates() (Coordinates, bool) {
	if !p.Resolved() {
		return Coordinates{}, false
	}
	return Coordinates{Longitude: p.Longitude.Decimal, Latitude: p.Latitude.Decimal}, true
}

// NormalizeAddress builds the Place key: trimmed, inner whitespace collapsed
// to single spaces, lower-cased.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
