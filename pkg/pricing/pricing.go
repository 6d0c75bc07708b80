// Package pricing holds the deterministic transformations applied to every
// displayed price: per-passenger scaling, one-way halving and the cabin
// multiplier table.
package pricing

import (
	"math"

	"github.com/siriwat/flight-season-api/db"
)

// Passengers is the passenger mix of a request.
type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// Total returns the number of travellers in the mix.
func (p Passengers) Total() int {
	return p.Adults + p.Children + p.Infants
}

// Normalize guarantees at least one adult and no negative counts.
func (p Passengers) Normalize() Passengers {
	if p.Adults < 1 {
		p.Adults = 1
	}
	if p.Children < 0 {
		p.Children = 0
	}
	if p.Infants < 0 {
		p.Infants = 0
	}
	return p
}

// Cabin multipliers. Storage rows are cabin-specific and filtered at query
// time, so Display does not apply these; they are exposed for callers whose
// source data is not already cabin-filtered.
const (
	BusinessMultiplier = 2.5
	FirstMultiplier    = 4.0
)

// CabinMultiplier returns the price multiplier for a cabin class.
func CabinMultiplier(cabin db.CabinClass) float64 {
	switch cabin {
	case db.CabinBusiness:
		return BusinessMultiplier
	case db.CabinFirst:
		return FirstMultiplier
	default:
		return 1.0
	}
}

// Rules carries the request-scoped pricing parameters.
type Rules struct {
	Passengers Passengers
	TripType   db.TripType
}

// NewRules builds pricing rules for a request, normalizing the mix.
func NewRules(passengers Passengers, tripType db.TripType) Rules {
	return Rules{Passengers: passengers.Normalize(), TripType: tripType}
}

// Display converts a stored price into the displayed total:
// round(A*p + 0.75*C*p + 0.1*I*p), halved for one-way trips because stored
// prices are round-trip fares.
func (r Rules) Display(price float64) int {
	mix := r.Passengers
	total := float64(mix.Adults)*price + 0.75*float64(mix.Children)*price + 0.1*float64(mix.Infants)*price
	if r.TripType == db.TripOneWay {
		total /= 2
	}
	return int(math.Round(total))
}

// DisplayFloat is Display without the final integer rounding. The price
// comparison derives its percentage deltas from these totals.
func (r Rules) DisplayFloat(price float64) float64 {
	mix := r.Passengers
	total := float64(mix.Adults)*price + 0.75*float64(mix.Children)*price + 0.1*float64(mix.Infants)*price
	if r.TripType == db.TripOneWay {
		total /= 2
	}
	return total
}
