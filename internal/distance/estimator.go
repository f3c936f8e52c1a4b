// Package distance approximates road distance between registry places.
//
// There is no road graph: the great-circle distance is corrected by a
// Ruleset calibrated against known routes.
package distance

import (
	"basey-transport/internal/location"
	"basey-transport/internal/models"

	"github.com/golang/geo/s2"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distance
	EarthRadiusKm = 6371.0

	// MinimumKm is the floor applied to every estimate
	MinimumKm = 0.3
)

// Ruleset turns a great-circle distance into an approximate road distance.
type Ruleset interface {
	Apply(from, to models.Place, greatCircleKm float64) float64
}

// Resolver looks up places by name.
type Resolver interface {
	Resolve(name string) (models.Place, error)
}

// Estimator resolves place names and estimates the road distance between them.
// It holds no mutable state and is safe for concurrent use.
type Estimator struct {
	places Resolver
	rules  Ruleset
}

// NewEstimator creates an estimator over places. A nil rules uses DefaultRules.
func NewEstimator(places Resolver, rules Ruleset) *Estimator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Estimator{places: places, rules: rules}
}

// Estimate returns the road-distance estimate from one named place to another.
// Unknown names fail with an error matching location.ErrUnknownPlace.
func (e *Estimator) Estimate(fromName, toName string) (models.DistanceEstimate, error) {
	from, err := e.places.Resolve(fromName)
	if err != nil {
		return models.DistanceEstimate{}, err
	}
	to, err := e.places.Resolve(toName)
	if err != nil {
		return models.DistanceEstimate{}, err
	}

	gc := GreatCircleKm(from, to)
	km := e.rules.Apply(from, to, gc)
	if km < MinimumKm {
		km = MinimumKm
	}

	return models.DistanceEstimate{
		FromPlace:     from.Name,
		ToPlace:       to.Name,
		GreatCircleKM: gc,
		Kilometers:    km,
	}, nil
}

// GreatCircleKm calculates the haversine distance between two places in kilometers
func GreatCircleKm(a, b models.Place) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

var _ Resolver = (*location.Registry)(nil)
