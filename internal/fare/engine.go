// Package fare computes the tiered municipal fare for an estimated distance.
package fare

import (
	"errors"
	"fmt"
	"math"

	"basey-transport/internal/models"
)

// ErrInvalidDistance is returned for negative or non-finite distances. It
// indicates an integration defect upstream, not a user error.
var ErrInvalidDistance = errors.New("invalid distance")

// Rates are the tariff constants. Additional distance is always rounded up
// to the next whole kilometer before RatePerKm is applied.
type Rates struct {
	BaseFare       float64 `toml:"base_fare" json:"base_fare"`
	BaseDistanceKm float64 `toml:"base_distance_km" json:"base_distance_km"`
	RatePerKm      float64 `toml:"rate_per_km" json:"rate_per_km"`
}

// DefaultRates returns the current tariff: PHP 15 for the first 3 km, PHP 3 per started km after.
func DefaultRates() Rates {
	return Rates{
		BaseFare:       15,
		BaseDistanceKm: 3,
		RatePerKm:      3,
	}
}

// Validate checks the tariff is usable
func (r Rates) Validate() error {
	switch {
	case r.BaseFare < 0:
		return errors.New("base_fare cannot be negative")
	case r.BaseDistanceKm < 0:
		return errors.New("base_distance_km cannot be negative")
	case r.RatePerKm < 0:
		return errors.New("rate_per_km cannot be negative")
	}
	return nil
}

// Engine applies a tariff. It is stateless and safe for concurrent use.
type Engine struct {
	rates Rates
}

// NewEngine creates a fare engine for rates
func NewEngine(rates Rates) *Engine {
	return &Engine{rates: rates}
}

// Rates returns the tariff in use
func (e *Engine) Rates() Rates {
	return e.rates
}

// Compute returns the fare breakdown for kilometers.
func (e *Engine) Compute(kilometers float64) (models.FareBreakdown, error) {
	if kilometers < 0 || math.IsNaN(kilometers) || math.IsInf(kilometers, 0) {
		return models.FareBreakdown{}, fmt.Errorf("%w: %v km", ErrInvalidDistance, kilometers)
	}

	b := models.FareBreakdown{
		DistanceKM: kilometers,
		BaseFare:   e.rates.BaseFare,
	}
	if kilometers > e.rates.BaseDistanceKm {
		b.AdditionalDistanceKM = kilometers - e.rates.BaseDistanceKm
		b.AdditionalFare = math.Ceil(b.AdditionalDistanceKM) * e.rates.RatePerKm
	}
	b.TotalFare = b.BaseFare + b.AdditionalFare
	return b, nil
}
