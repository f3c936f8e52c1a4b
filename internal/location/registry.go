// Package location holds the closed table of named places used for fare
// estimation. Tables are immutable once built.
package location

import (
	"errors"
	"fmt"
	"sort"

	"basey-transport/internal/models"

	"github.com/golang/geo/s2"
)

// ErrUnknownPlace is matched by every lookup miss.
var ErrUnknownPlace = errors.New("unknown place")

// UnknownPlaceError names the input that was not found in the registry.
type UnknownPlaceError struct {
	Name string
}

func (e *UnknownPlaceError) Error() string {
	return fmt.Sprintf("unknown place %q", e.Name)
}

// Is lets errors.Is(err, ErrUnknownPlace) match.
func (e *UnknownPlaceError) Is(target error) bool {
	return target == ErrUnknownPlace
}

// Registry maps place names to their coordinates and classification.
type Registry struct {
	byName map[string]models.Place
	sorted []models.Place
}

// NewRegistry builds a registry from places. Names must be unique and
// non-empty, classifications known and coordinates valid.
func NewRegistry(places []models.Place) (*Registry, error) {
	if len(places) == 0 {
		return nil, errors.New("location table is empty")
	}

	r := &Registry{
		byName: make(map[string]models.Place, len(places)),
		sorted: make([]models.Place, 0, len(places)),
	}
	for i, p := range places {
		if p.Name == "" {
			return nil, fmt.Errorf("place %d: empty name", i)
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, fmt.Errorf("place %q: duplicate name", p.Name)
		}
		if !p.Classification.Valid() {
			return nil, fmt.Errorf("place %q: unknown classification %q", p.Name, p.Classification)
		}
		if !s2.LatLngFromDegrees(p.Latitude, p.Longitude).IsValid() {
			return nil, fmt.Errorf("place %q: coordinates out of range (%f, %f)", p.Name, p.Latitude, p.Longitude)
		}
		r.byName[p.Name] = p
		r.sorted = append(r.sorted, p)
	}

	sort.Slice(r.sorted, func(i, j int) bool {
		return r.sorted[i].Name < r.sorted[j].Name
	})
	return r, nil
}

// Resolve looks a place up by exact name. No case folding or diacritic
// normalisation is applied.
func (r *Registry) Resolve(name string) (models.Place, error) {
	p, ok := r.byName[name]
	if !ok {
		return models.Place{}, &UnknownPlaceError{Name: name}
	}
	return p, nil
}

// Contains reports whether name is in the registry
func (r *Registry) Contains(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Places returns a copy of the table sorted by name.
func (r *Registry) Places() []models.Place {
	out := make([]models.Place, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// Len returns the number of places
func (r *Registry) Len() int {
	return len(r.sorted)
}
