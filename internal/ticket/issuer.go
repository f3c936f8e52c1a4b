// Package ticket implements the enforcement ticket-issuance flow: decide the
// offense penalty from the plate's history, then record the new violation.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"basey-transport/internal/models"
	"basey-transport/internal/penalty"

	"github.com/google/uuid"
)

// Recorder persists issued violations.
type Recorder interface {
	InsertViolation(ctx context.Context, v *models.ViolationRecord) error
}

// Request is an enforcer's ticket request
type Request struct {
	PlateNumber   string `json:"plate_number"`
	ViolationType string `json:"violation_type"`
	Location      string `json:"location,omitempty"`
}

// Validate checks required fields
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.PlateNumber) == "":
		return errors.New("plate_number is required")
	case strings.TrimSpace(r.ViolationType) == "":
		return errors.New("violation_type is required")
	}
	return nil
}

// Issuer issues tickets.
type Issuer struct {
	escalator *penalty.Escalator
	history   penalty.HistorySource
	recorder  Recorder
	timeout   time.Duration
	locks     plateLocks

	now func() time.Time
}

// plateLocks serializes issuance per plate so concurrent tickets for one
// vehicle see each other's records. It covers this process only.
type plateLocks struct {
	mu    sync.Mutex
	locks map[string]*plateLock
}

type plateLock struct {
	sync.Mutex
	refs int
}

func (p *plateLocks) lock(plate string) (unlock func()) {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*plateLock)
	}
	l, ok := p.locks[plate]
	if !ok {
		l = &plateLock{}
		p.locks[plate] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, plate)
		}
		p.mu.Unlock()
	}
}

// NewIssuer creates an issuer. timeout bounds each history lookup.
func NewIssuer(e *penalty.Escalator, history penalty.HistorySource, recorder Recorder, timeout time.Duration) *Issuer {
	return &Issuer{
		escalator: e,
		history:   history,
		recorder:  recorder,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Issue decides the penalty and records the violation. A history outage
// degrades the decision but still issues the ticket; only a failure to
// record it is returned as an error.
func (i *Issuer) Issue(ctx context.Context, req Request) (*models.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := i.locks.lock(penalty.NormalizePlate(req.PlateNumber))
	defer unlock()

	decision, _ := i.escalator.DecideFor(ctx, req.PlateNumber, i.history, i.timeout)

	issuedAt := i.now().UTC()
	t := &models.Ticket{
		TicketNumber:  NewTicketNumber(issuedAt),
		PlateNumber:   decision.PlateNumber,
		ViolationType: strings.TrimSpace(req.ViolationType),
		Location:      strings.TrimSpace(req.Location),
		IssuedAt:      issuedAt,
		Decision:      decision,
	}

	rec := &models.ViolationRecord{
		PlateNumber:   t.PlateNumber,
		ViolationType: t.ViolationType,
		ViolationDate: t.IssuedAt,
		PenaltyAmount: decision.PenaltyAmount,
		TicketNumber:  t.TicketNumber,
		Location:      t.Location,
	}
	if err := i.recorder.InsertViolation(ctx, rec); err != nil {
		return nil, fmt.Errorf("record violation: %w", err)
	}

	return t, nil
}

// NewTicketNumber returns TKT-YYYYMMDD-XXXXXXXX
func NewTicketNumber(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("TKT-%s-%s", at.Format("20060102"), id[:8])
}
