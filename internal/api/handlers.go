package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"basey-transport/internal/db"
	"basey-transport/internal/location"
	"basey-transport/internal/metrics"
	"basey-transport/internal/models"
	"basey-transport/internal/parser"
	"basey-transport/internal/penalty"
	"basey-transport/internal/ticket"

	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"places": s.places.Len(),
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	places := s.places.Places()
	respondWithMeta(w, places, &meta{Total: len(places)})
}

type estimateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type estimateResponse struct {
	Estimate models.DistanceEstimate `json:"estimate"`
	Fare     models.FareBreakdown    `json:"fare"`
}

func (s *Server) handleEstimateFare(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.From == "" || req.To == "" {
		metrics.FareEstimates.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	if req.From == req.To {
		metrics.FareEstimates.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "origin and destination must be different")
		return
	}

	est, err := s.estimator.Estimate(req.From, req.To)
	if err != nil {
		var unknown *location.UnknownPlaceError
		if errors.As(err, &unknown) {
			metrics.FareEstimates.WithLabelValues("unknown_place").Inc()
			respondError(w, http.StatusBadRequest, "select a valid location: "+unknown.Name)
			return
		}
		metrics.FareEstimates.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	breakdown, err := s.fares.Compute(est.Kilometers)
	if err != nil {
		// Unreachable for a floored estimate.
		s.logger.Error("fare computation failed", "from", req.From, "to", req.To, "km", est.Kilometers, "err", err)
		metrics.FareEstimates.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "fare computation failed")
		return
	}

	metrics.FareEstimates.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, estimateResponse{Estimate: est, Fare: breakdown})
}

type penaltyRequest struct {
	PlateNumber string `json:"plate_number"`
}

func (s *Server) handleComputePenalty(w http.ResponseWriter, r *http.Request) {
	var req penaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if penalty.NormalizePlate(req.PlateNumber) == "" {
		respondError(w, http.StatusBadRequest, "plate_number is required")
		return
	}

	decision, err := s.escalator.DecideFor(r.Context(), req.PlateNumber, s.history, s.historyTimeout)
	metrics.RecordPenalty(decision.OffenseOrdinal, err != nil)
	if err != nil {
		respondWithMeta(w, decision, &meta{Warning: decision.Warning})
		return
	}
	respondJSON(w, http.StatusOK, decision)
}

func (s *Server) handleIssueTicket(w http.ResponseWriter, r *http.Request) {
	var req ticket.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.issuer.Issue(r.Context(), req)
	if err != nil {
		s.logger.Error("ticket issuance failed", "plate_number", req.PlateNumber, "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.RecordPenalty(t.Decision.OffenseOrdinal, t.Decision.HistoryUnavailable)
	s.logger.Info("ticket issued",
		"ticket_number", t.TicketNumber,
		"plate_number", t.PlateNumber,
		"offense", t.Decision.OffenseOrdinal,
		"amount", t.Decision.PenaltyAmount,
		"operator", operatorID(r),
	)

	respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.db.ListVehicles()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithMeta(w, vehicles, &meta{Total: len(vehicles)})
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var v models.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v.PlateNumber = penalty.NormalizePlate(v.PlateNumber)
	if v.PlateNumber == "" {
		respondError(w, http.StatusBadRequest, "plate_number is required")
		return
	}
	if v.VehicleType == "" {
		v.VehicleType = "tricycle"
	}

	if err := s.db.InsertVehicle(&v); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	plate := penalty.NormalizePlate(mux.Vars(r)["plate"])

	v, err := s.db.GetVehicle(plate)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// handleVehicleViolations serves a plate's history oldest first. This is the
// contract history.Client consumes.
func (s *Server) handleVehicleViolations(w http.ResponseWriter, r *http.Request) {
	plate := penalty.NormalizePlate(mux.Vars(r)["plate"])

	records, err := s.db.ViolationHistory(r.Context(), plate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []models.ViolationRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleQueryViolations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q, err := parseViolationQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.db.QueryViolations(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.db.CountViolations(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Total counts every matching row, not just this page.
	respondWithMeta(w, records, &meta{
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func parseViolationQuery(r *http.Request) (models.ViolationQuery, error) {
	values := r.URL.Query()
	q := models.ViolationQuery{
		PlateNumber:   penalty.NormalizePlate(values.Get("plate_number")),
		ViolationType: strings.TrimSpace(values.Get("violation_type")),
		Limit:         100,
	}

	if v := values.Get("start"); v != "" {
		t, err := parser.ParseTimestamp(v)
		if err != nil {
			return q, errors.New("invalid start time")
		}
		q.StartTime = t
	}
	if v := values.Get("end"); v != "" {
		t, err := parser.ParseTimestamp(v)
		if err != nil {
			return q, errors.New("invalid end time")
		}
		q.EndTime = t
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return q, errors.New("limit must be between 1 and 1000")
		}
		q.Limit = n
	}
	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, errors.New("offset must be a non-negative integer")
		}
		q.Offset = n
	}
	return q, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
