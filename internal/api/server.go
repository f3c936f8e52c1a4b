package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"basey-transport/internal/auth"
	"basey-transport/internal/db"
	"basey-transport/internal/distance"
	"basey-transport/internal/fare"
	"basey-transport/internal/location"
	"basey-transport/internal/metrics"
	"basey-transport/internal/penalty"
	"basey-transport/internal/ticket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options wires the computation core and its collaborators into the server.
type Options struct {
	Places         *location.Registry
	Rules          distance.Ruleset
	Rates          fare.Rates
	Tiers          []float64
	History        penalty.HistorySource // nil uses the database
	HistoryTimeout time.Duration
	Signer         *auth.Signer // nil leaves operator routes open
	Logger         *slog.Logger
}

// Server represents the API server
type Server struct {
	db             *db.Database
	router         *mux.Router
	places         *location.Registry
	estimator      *distance.Estimator
	fares          *fare.Engine
	escalator      *penalty.Escalator
	history        penalty.HistorySource
	historyTimeout time.Duration
	issuer         *ticket.Issuer
	signer         *auth.Signer
	logger         *slog.Logger
}

// NewServer creates a new API server
func NewServer(database *db.Database, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Places == nil {
		opts.Places = location.Default()
	}
	if opts.Tiers == nil {
		opts.Tiers = penalty.DefaultTiers
	}
	if opts.Rates == (fare.Rates{}) {
		opts.Rates = fare.DefaultRates()
	}
	if opts.History == nil {
		opts.History = database
	}

	escalator, err := penalty.NewEscalator(opts.Tiers,
		penalty.WithLogger(opts.Logger),
		penalty.WithLookupObserver(metrics.ObserveHistoryLookup),
	)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:             database,
		router:         mux.NewRouter(),
		places:         opts.Places,
		estimator:      distance.NewEstimator(opts.Places, opts.Rules),
		fares:          fare.NewEngine(opts.Rates),
		escalator:      escalator,
		history:        opts.History,
		historyTimeout: opts.HistoryTimeout,
		signer:         opts.Signer,
		logger:         opts.Logger,
	}
	s.issuer = ticket.NewIssuer(escalator, opts.History, database, opts.HistoryTimeout)
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Fare estimation
	s.router.HandleFunc("/api/v1/places", s.handleListPlaces).Methods("GET")
	s.router.HandleFunc("/api/v1/estimate-fare", s.handleEstimateFare).Methods("POST")

	// Enforcement
	s.router.Handle("/api/v1/compute-penalty", s.operator(s.handleComputePenalty)).Methods("POST")
	s.router.Handle("/api/v1/tickets", s.operator(s.handleIssueTicket)).Methods("POST")

	// Records
	s.router.HandleFunc("/api/v1/vehicles", s.handleListVehicles).Methods("GET")
	s.router.Handle("/api/v1/vehicles", s.operator(s.handleCreateVehicle)).Methods("POST")
	s.router.HandleFunc("/api/v1/vehicles/{plate}", s.handleGetVehicle).Methods("GET")
	s.router.HandleFunc("/api/v1/vehicles/{plate}/violations", s.handleVehicleViolations).Methods("GET")
	s.router.HandleFunc("/api/v1/violations", s.handleQueryViolations).Methods("GET")

	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int    `json:"total,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	QueryMs int64  `json:"query_ms,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}
