package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"basey-transport/internal/auth"
	"basey-transport/internal/db"
	"basey-transport/internal/history"
	"basey-transport/internal/location"
	"basey-transport/internal/metrics"
	"basey-transport/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type failingHistory struct{}

func (failingHistory) ViolationHistory(context.Context, string) ([]models.ViolationRecord, error) {
	return nil, errors.New("connection refused")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *meta           `json:"meta"`
}

func newTestServer(t *testing.T, opts Options) (*Server, *db.Database) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("db.New() error: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.HistoryTimeout == 0 {
		opts.HistoryTimeout = time.Second
	}
	s, err := NewServer(database, opts)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	return s, database
}

func do(t *testing.T, s *Server, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, rr.Body.String(), err)
	}
	return rr, env
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rr, env := do(t, s, "GET", "/health", nil, "")
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("GET /health = %d %+v", rr.Code, env)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestListPlaces(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	_, env := do(t, s, "GET", "/api/v1/places", nil, "")

	var places []models.Place
	if err := json.Unmarshal(env.Data, &places); err != nil {
		t.Fatal(err)
	}
	if len(places) != location.Default().Len() {
		t.Errorf("len(places) = %d, want %d", len(places), location.Default().Len())
	}
	if env.Meta == nil || env.Meta.Total != len(places) {
		t.Errorf("meta = %+v, want total %d", env.Meta, len(places))
	}
}

func TestEstimateFare(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rr, env := do(t, s, "POST", "/api/v1/estimate-fare",
		estimateRequest{From: location.KilometerZero, To: "San Antonio"}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, error %q", rr.Code, env.Error)
	}

	var got estimateResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Estimate.Kilometers < 6.9 || got.Estimate.Kilometers > 7.0 {
		t.Errorf("Kilometers = %v, want within [6.9, 7.0]", got.Estimate.Kilometers)
	}
	if got.Fare.TotalFare != 27 {
		t.Errorf("TotalFare = %v, want 27", got.Fare.TotalFare)
	}
	if math.Abs(got.Fare.DistanceKM-got.Estimate.Kilometers) > 1e-9 {
		t.Errorf("fare distance %v != estimate %v", got.Fare.DistanceKM, got.Estimate.Kilometers)
	}
}

func TestEstimateFare_Rejects(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	tests := []struct {
		name string
		body interface{}
	}{
		{"same place", estimateRequest{From: "San Antonio", To: "San Antonio"}},
		{"unknown origin", estimateRequest{From: "Atlantis", To: "San Antonio"}},
		{"case mismatch", estimateRequest{From: "san antonio", To: location.KilometerZero}},
		{"missing destination", estimateRequest{From: "San Antonio"}},
		{"malformed", "not an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := do(t, s, "POST", "/api/v1/estimate-fare", tt.body, "")
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
			if env.Success || env.Error == "" {
				t.Errorf("envelope = %+v, want an error", env)
			}
		})
	}
}

func TestComputePenalty_UsesHistory(t *testing.T) {
	s, database := newTestServer(t, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := database.InsertViolation(ctx, &models.ViolationRecord{
			PlateNumber:   "XYZ-987",
			ViolationType: "overcharging",
			ViolationDate: time.Date(2024, 5, i+1, 9, 0, 0, 0, time.UTC),
			PenaltyAmount: 500,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rr, env := do(t, s, "POST", "/api/v1/compute-penalty", penaltyRequest{PlateNumber: " xyz-987 "}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, error %q", rr.Code, env.Error)
	}

	var d models.PenaltyDecision
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.OffenseOrdinal != 3 || d.PenaltyAmount != 1500 {
		t.Errorf("decision = %+v, want third offense at 1500", d)
	}
	if d.HistoryUnavailable {
		t.Error("HistoryUnavailable = true with a healthy store")
	}
}

func TestComputePenalty_HistoryUnavailable(t *testing.T) {
	s, _ := newTestServer(t, Options{History: failingHistory{}})

	rr, env := do(t, s, "POST", "/api/v1/compute-penalty", penaltyRequest{PlateNumber: "ABC-123"}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 on degraded lookup", rr.Code)
	}

	var d models.PenaltyDecision
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.OffenseOrdinal != 1 || d.PenaltyAmount != 500 || !d.HistoryUnavailable {
		t.Errorf("decision = %+v, want flagged first offense", d)
	}
	if env.Meta == nil || env.Meta.Warning == "" {
		t.Error("meta warning missing")
	}
}

func TestIssueTicket_Escalates(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	for n, want := range []float64{500, 1000} {
		rr, env := do(t, s, "POST", "/api/v1/tickets", map[string]string{
			"plate_number":   "TRC-001",
			"violation_type": "overloading",
			"location":       "Mercado",
		}, "")
		if rr.Code != http.StatusCreated {
			t.Fatalf("ticket #%d status = %d, error %q", n+1, rr.Code, env.Error)
		}
		var tk models.Ticket
		if err := json.Unmarshal(env.Data, &tk); err != nil {
			t.Fatal(err)
		}
		if tk.Decision.PenaltyAmount != want {
			t.Errorf("ticket #%d amount = %v, want %v", n+1, tk.Decision.PenaltyAmount, want)
		}
	}

	rr, _ := do(t, s, "POST", "/api/v1/tickets", map[string]string{"plate_number": "TRC-001"}, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing violation_type status = %d, want 400", rr.Code)
	}
}

func TestOperatorRoutes_RequireToken(t *testing.T) {
	signer := auth.NewSigner("test-secret", "basey-transport")
	s, _ := newTestServer(t, Options{Signer: signer})

	enforcer, _ := signer.Sign("officer-1", auth.RoleEnforcer, time.Hour)
	viewer, _ := signer.Sign("clerk-1", "viewer", time.Hour)
	body := penaltyRequest{PlateNumber: "ABC-123"}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "abc", http.StatusUnauthorized},
		{"wrong role", viewer, http.StatusForbidden},
		{"enforcer", enforcer, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := do(t, s, "POST", "/api/v1/compute-penalty", body, tt.token)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}

	// Public routes stay open
	rr, _ := do(t, s, "POST", "/api/v1/estimate-fare",
		estimateRequest{From: location.KilometerZero, To: "San Antonio"}, "")
	if rr.Code != http.StatusOK {
		t.Errorf("estimate-fare status = %d, want 200 without a token", rr.Code)
	}
}

func TestVehicles(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rr, env := do(t, s, "POST", "/api/v1/vehicles", models.Vehicle{PlateNumber: "mc-4521", OperatorName: "J. Dela Cruz"}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, error %q", rr.Code, env.Error)
	}

	rr, env = do(t, s, "GET", "/api/v1/vehicles/mc-4521", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, error %q", rr.Code, env.Error)
	}
	var v models.Vehicle
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatal(err)
	}
	if v.PlateNumber != "MC-4521" || v.VehicleType != "tricycle" {
		t.Errorf("vehicle = %+v", v)
	}

	rr, _ = do(t, s, "GET", "/api/v1/vehicles/NOPE-1", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing vehicle status = %d, want 404", rr.Code)
	}
}

func TestQueryViolations_BadParams(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	for _, path := range []string{
		"/api/v1/violations?limit=0",
		"/api/v1/violations?limit=abc",
		"/api/v1/violations?offset=-1",
		"/api/v1/violations?start=yesterday",
	} {
		rr, _ := do(t, s, "GET", path, nil, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", path, rr.Code)
		}
	}
}

func TestVehicleViolations_ServesHistoryClient(t *testing.T) {
	s, database := newTestServer(t, Options{})
	ctx := context.Background()

	dates := []time.Time{
		time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		if err := database.InsertViolation(ctx, &models.ViolationRecord{
			PlateNumber: "ABC-123", ViolationType: "overcharging", ViolationDate: d, PenaltyAmount: 500,
		}); err != nil {
			t.Fatal(err)
		}
	}

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	records, err := history.NewClient(ts.URL, time.Second).ViolationHistory(ctx, "ABC-123")
	if err != nil {
		t.Fatalf("ViolationHistory() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if !records[0].ViolationDate.Before(records[1].ViolationDate) {
		t.Error("records not ordered oldest first")
	}

	empty, err := history.NewClient(ts.URL, time.Second).ViolationHistory(ctx, "NEW-000")
	if err != nil || len(empty) != 0 {
		t.Errorf("clean plate = %v, %v; want empty history", empty, err)
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rr, env := do(t, s, "GET", "/api/v1/stats", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, error %q", rr.Code, env.Error)
	}
	var st models.Stats
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.TotalViolations != 0 {
		t.Errorf("TotalViolations = %d, want 0", st.TotalViolations)
	}
}

func TestQueryViolations_TotalCountsAllMatches(t *testing.T) {
	s, database := newTestServer(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var records []models.ViolationRecord
	for i := 0; i < 5; i++ {
		records = append(records, models.ViolationRecord{
			PlateNumber: "ABC-123", ViolationType: "overcharging",
			ViolationDate: base.AddDate(0, 0, i), PenaltyAmount: 500,
		})
	}
	if _, err := database.InsertViolationBatch(ctx, records); err != nil {
		t.Fatal(err)
	}

	rr, env := do(t, s, "GET", "/api/v1/violations?plate_number=abc-123&limit=2&offset=2", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, error %q", rr.Code, env.Error)
	}

	var page []models.ViolationRecord
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}
	if env.Meta == nil || env.Meta.Total != 5 {
		t.Errorf("meta = %+v, want total 5", env.Meta)
	}
	if env.Meta != nil && (env.Meta.Limit != 2 || env.Meta.Offset != 2) {
		t.Errorf("meta paging = %d/%d, want 2/2", env.Meta.Limit, env.Meta.Offset)
	}
}

func TestEstimateFare_ResultLabels(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	tests := []struct {
		label string
		body  estimateRequest
	}{
		{"ok", estimateRequest{From: location.KilometerZero, To: "San Antonio"}},
		{"invalid", estimateRequest{From: "San Antonio", To: "San Antonio"}},
		{"unknown_place", estimateRequest{From: "Atlantis", To: "San Antonio"}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			counter := metrics.FareEstimates.WithLabelValues(tt.label)
			before := testutil.ToFloat64(counter)
			do(t, s, "POST", "/api/v1/estimate-fare", tt.body, "")
			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("%s delta = %v, want 1", tt.label, got)
			}
		})
	}
}
