package distance

import (
	"strings"

	"basey-transport/internal/models"
)

// HeuristicRules corrects great-circle distance with multipliers chosen by
// the classification pair, a flat boat-transfer leg and a long-haul factor.
type HeuristicRules struct {
	UrbanFactor    float64 // both urban
	RuralFactor    float64 // both rural
	LandmarkFactor float64 // either landmark, checked before MixedFactor
	MixedFactor    float64 // any other pair

	// BoatTransferMarker is matched case-sensitively against both names.
	BoatTransferMarker string
	BoatTransferKm     float64

	LongHaulThresholdKm float64
	LongHaulFactor      float64
}

// DefaultRules returns the factors calibrated for the Basey road network
func DefaultRules() *HeuristicRules {
	return &HeuristicRules{
		UrbanFactor:         1.10,
		RuralFactor:         1.15,
		LandmarkFactor:      1.10,
		MixedFactor:         1.12,
		BoatTransferMarker:  "Sohoton",
		BoatTransferKm:      1.0,
		LongHaulThresholdKm: 20,
		LongHaulFactor:      1.02,
	}
}

// Factor returns the classification-pair multiplier.
func (h *HeuristicRules) Factor(a, b models.Classification) float64 {
	switch {
	case a == models.Urban && b == models.Urban:
		return h.UrbanFactor
	case a == models.Rural && b == models.Rural:
		return h.RuralFactor
	case a == models.Landmark || b == models.Landmark:
		return h.LandmarkFactor
	default:
		return h.MixedFactor
	}
}

// Apply implements Ruleset.
func (h *HeuristicRules) Apply(from, to models.Place, greatCircleKm float64) float64 {
	km := greatCircleKm * h.Factor(from.Classification, to.Classification)

	if h.BoatTransferMarker != "" &&
		(strings.Contains(from.Name, h.BoatTransferMarker) || strings.Contains(to.Name, h.BoatTransferMarker)) {
		km += h.BoatTransferKm
	}

	if km > h.LongHaulThresholdKm {
		km *= h.LongHaulFactor
	}
	return km
}
