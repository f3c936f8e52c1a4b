// Package penalty maps a vehicle's offense count to the municipal-ordinance
// penalty tier.
//
// Every violation type shares one running count per plate. The table caps
// at its last tier: ordinals beyond it pay the highest amount.
package penalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basey-transport/internal/models"
)

// ErrHistoryUnavailable marks a decision made without the violation history.
var ErrHistoryUnavailable = errors.New("violation history unavailable")

// DefaultTiers is the ordinance table: first, second and third-or-later offense.
var DefaultTiers = []float64{500, 1000, 1500}

// HistorySource supplies the recorded violations for a plate number.
type HistorySource interface {
	ViolationHistory(ctx context.Context, plateNumber string) ([]models.ViolationRecord, error)
}

// Escalator decides penalties from a fixed tier table.
type Escalator struct {
	tiers  []float64
	logger *slog.Logger

	// observe is called after every history lookup with its duration and error
	observe func(time.Duration, error)
}

// Option configures an Escalator
type Option func(*Escalator)

// WithLogger sets the logger used for degraded decisions
func WithLogger(l *slog.Logger) Option {
	return func(e *Escalator) { e.logger = l }
}

// WithLookupObserver registers a callback for history lookup timings
func WithLookupObserver(fn func(time.Duration, error)) Option {
	return func(e *Escalator) { e.observe = fn }
}

// ValidateTiers checks a tier table is non-empty, positive and non-decreasing.
func ValidateTiers(tiers []float64) error {
	if len(tiers) == 0 {
		return errors.New("penalty table is empty")
	}
	for i, amount := range tiers {
		if amount <= 0 {
			return fmt.Errorf("tier %d: amount must be positive, got %v", i+1, amount)
		}
		if i > 0 && amount < tiers[i-1] {
			return fmt.Errorf("tier %d: amount %v is lower than tier %d (%v)", i+1, amount, i, tiers[i-1])
		}
	}
	return nil
}

// NewEscalator creates an escalator for tiers; tiers[0] is the first offense.
func NewEscalator(tiers []float64, opts ...Option) (*Escalator, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	e := &Escalator{
		tiers:  append([]float64(nil), tiers...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Tiers returns a copy of the tier table
func (e *Escalator) Tiers() []float64 {
	return append([]float64(nil), e.tiers...)
}

// Amount returns the penalty for a 1-based offense ordinal.
func (e *Escalator) Amount(ordinal int) float64 {
	if ordinal < 1 {
		ordinal = 1
	}
	if ordinal > len(e.tiers) {
		ordinal = len(e.tiers)
	}
	return e.tiers[ordinal-1]
}

// Decide returns the penalty for the next offense of a plate whose prior
// violations are history.
func (e *Escalator) Decide(plateNumber string, history []models.ViolationRecord) models.PenaltyDecision {
	ordinal := len(history) + 1
	return models.PenaltyDecision{
		PlateNumber:    NormalizePlate(plateNumber),
		OffenseOrdinal: ordinal,
		PenaltyAmount:  e.Amount(ordinal),
	}
}

// DecideFor looks the plate's history up in source, bounded by timeout, and
// decides the penalty. A failed or timed-out lookup never blocks: the plate
// is treated as a first offense and the decision is flagged. The returned
// error is non-nil only in that case and wraps ErrHistoryUnavailable.
func (e *Escalator) DecideFor(ctx context.Context, plateNumber string, source HistorySource, timeout time.Duration) (models.PenaltyDecision, error) {
	plate := NormalizePlate(plateNumber)

	lookupCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	history, err := source.ViolationHistory(lookupCtx, plate)
	if e.observe != nil {
		e.observe(time.Since(start), err)
	}
	if err != nil {
		d := e.Decide(plate, nil)
		d.HistoryUnavailable = true
		d.Warning = "violation history could not be retrieved; penalty assumes a first offense"
		e.logger.Warn("penalty decided without history", "plate_number", plate, "err", err)
		return d, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	return e.Decide(plate, history), nil
}

// NormalizePlate trims and upper-cases a plate number.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
