package models

import "time"

// Classification tags a place for distance calibration
type Classification string

const (
	Urban    Classification = "urban"
	Rural    Classification = "rural"
	Landmark Classification = "landmark"
)

// Valid reports whether c is one of the known classifications
func (c Classification) Valid() bool {
	switch c {
	case Urban, Rural, Landmark:
		return true
	}
	return false
}

// Place is a named location in the static registry
type Place struct {
	Name           string         `json:"name"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Classification Classification `json:"classification"`
}

// DistanceEstimate is the approximated road distance between two places
type DistanceEstimate struct {
	FromPlace     string  `json:"from_place"`
	ToPlace       string  `json:"to_place"`
	GreatCircleKM float64 `json:"great_circle_km"`
	Kilometers    float64 `json:"kilometers"`
}

// FareBreakdown is the tiered fare computed for a distance
type FareBreakdown struct {
	DistanceKM           float64 `json:"distance_km"`
	BaseFare             float64 `json:"base_fare"` // PHP, covers the base distance
	AdditionalDistanceKM float64 `json:"additional_distance_km"`
	AdditionalFare       float64 `json:"additional_fare"` // PHP
	TotalFare            float64 `json:"total_fare"`      // PHP
}

// ViolationRecord is one historical offense tied to a plate number
type ViolationRecord struct {
	ID            int64     `json:"id,omitempty"`
	PlateNumber   string    `json:"plate_number"`
	ViolationType string    `json:"violation_type"`
	ViolationDate time.Time `json:"violation_date"`
	PenaltyAmount float64   `json:"penalty_amount"` // PHP
	TicketNumber  string    `json:"ticket_number,omitempty"`
	Location      string    `json:"location,omitempty"`
}

// PenaltyDecision is the penalty applicable to the offense being ticketed now
type PenaltyDecision struct {
	PlateNumber        string  `json:"plate_number"`
	OffenseOrdinal     int     `json:"offense_ordinal"`
	PenaltyAmount      float64 `json:"penalty_amount"` // PHP
	HistoryUnavailable bool    `json:"history_unavailable,omitempty"`
	Warning            string  `json:"warning,omitempty"`
}

// Vehicle represents a registered public utility vehicle
type Vehicle struct {
	PlateNumber  string    `json:"plate_number"`
	OperatorName string    `json:"operator_name"`
	VehicleType  string    `json:"vehicle_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ticket is the result of the ticket-issuance flow
type Ticket struct {
	TicketNumber  string          `json:"ticket_number"`
	PlateNumber   string          `json:"plate_number"`
	ViolationType string          `json:"violation_type"`
	Location      string          `json:"location,omitempty"`
	IssuedAt      time.Time       `json:"issued_at"`
	Decision      PenaltyDecision `json:"decision"`
}

// ViolationQuery represents query parameters for violation searches
type ViolationQuery struct {
	PlateNumber   string
	ViolationType string
	StartTime     time.Time
	EndTime       time.Time
	Limit         int
	Offset        int
}

// Stats provides record store totals
type Stats struct {
	TotalVehicles   int64   `json:"total_vehicles"`
	TotalViolations int64   `json:"total_violations"`
	RepeatOffenders int64   `json:"repeat_offenders"`
	TotalPenalties  float64 `json:"total_penalties"`
}
