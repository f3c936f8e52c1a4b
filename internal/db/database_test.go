package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"basey-transport/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func violation(plate, kind string, date time.Time, amount float64, ticket string) models.ViolationRecord {
	return models.ViolationRecord{
		PlateNumber:   plate,
		ViolationType: kind,
		ViolationDate: date,
		PenaltyAmount: amount,
		TicketNumber:  ticket,
	}
}

func TestVehicles_InsertGetList(t *testing.T) {
	db := newTestDB(t)

	for _, v := range []models.Vehicle{
		{PlateNumber: "TRI-002", OperatorName: "Maria Cruz", VehicleType: "tricycle"},
		{PlateNumber: "MUL-001", OperatorName: "Jose Santos", VehicleType: "multicab"},
	} {
		v := v
		if err := db.InsertVehicle(&v); err != nil {
			t.Fatalf("InsertVehicle(%s) error: %v", v.PlateNumber, err)
		}
	}

	got, err := db.GetVehicle("TRI-002")
	if err != nil {
		t.Fatalf("GetVehicle() error: %v", err)
	}
	if got.OperatorName != "Maria Cruz" || got.VehicleType != "tricycle" {
		t.Errorf("GetVehicle() = %+v", got)
	}

	list, err := db.ListVehicles()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].PlateNumber != "MUL-001" {
		t.Errorf("ListVehicles() = %+v, want 2 sorted by plate", list)
	}

	dup := models.Vehicle{PlateNumber: "TRI-002", OperatorName: "X", VehicleType: "tricycle"}
	if err := db.InsertVehicle(&dup); err == nil {
		t.Error("InsertVehicle() should reject a duplicate plate")
	}
}

func TestGetVehicle_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetVehicle("NONE-000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVehicle() error = %v, want ErrNotFound", err)
	}
}

func TestViolationHistory_OrderedAscending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	records := []models.ViolationRecord{
		violation("ABC-123", "overcharging", base.AddDate(0, 2, 0), 1000, "T-2"),
		violation("ABC-123", "reckless driving", base, 500, "T-1"),
		violation("XYZ-999", "no franchise", base.AddDate(0, 1, 0), 500, ""),
		violation("ABC-123", "overloading", base.AddDate(0, 5, 0), 1500, ""),
	}
	n, err := db.InsertViolationBatch(ctx, records)
	if err != nil {
		t.Fatalf("InsertViolationBatch() error: %v", err)
	}
	if n != 4 {
		t.Errorf("inserted = %d, want 4", n)
	}

	hist, err := db.ViolationHistory(ctx, "ABC-123")
	if err != nil {
		t.Fatalf("ViolationHistory() error: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].ViolationDate.Before(hist[i-1].ViolationDate) {
			t.Errorf("history not ascending at %d", i)
		}
	}
	if hist[0].TicketNumber != "T-1" || !hist[0].ViolationDate.Equal(base) {
		t.Errorf("first record = %+v", hist[0])
	}
	if hist[2].TicketNumber != "" {
		t.Errorf("missing ticket should scan as empty, got %q", hist[2].TicketNumber)
	}

	empty, err := db.ViolationHistory(ctx, "NEW-000")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("len(history) = %d, want 0", len(empty))
	}
}

func TestInsertViolation_UniqueTicket(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	v := violation("ABC-123", "overcharging", now, 500, "TKT-1")
	if err := db.InsertViolation(ctx, &v); err != nil {
		t.Fatal(err)
	}
	if v.ID == 0 {
		t.Error("InsertViolation() should set ID")
	}

	again := violation("ABC-123", "overcharging", now, 500, "TKT-1")
	if err := db.InsertViolation(ctx, &again); err == nil {
		t.Error("duplicate ticket number should be rejected")
	}

	// Records without a ticket number do not collide.
	for i := 0; i < 2; i++ {
		nt := violation("ABC-123", "overcharging", now, 500, "")
		if err := db.InsertViolation(ctx, &nt); err != nil {
			t.Errorf("InsertViolation() without ticket error: %v", err)
		}
	}
}

func TestQueryViolations_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	db.InsertViolationBatch(ctx, []models.ViolationRecord{
		violation("A-1", "overcharging", base, 500, ""),
		violation("A-1", "reckless driving", base.AddDate(0, 1, 0), 1000, ""),
		violation("B-2", "overcharging", base.AddDate(0, 2, 0), 500, ""),
	})

	tests := []struct {
		name string
		q    models.ViolationQuery
		want int
	}{
		{"all", models.ViolationQuery{}, 3},
		{"by plate", models.ViolationQuery{PlateNumber: "A-1"}, 2},
		{"by type", models.ViolationQuery{ViolationType: "overcharging"}, 2},
		{"since", models.ViolationQuery{StartTime: base.AddDate(0, 0, 15)}, 2},
		{"until", models.ViolationQuery{EndTime: base.AddDate(0, 0, 15)}, 1},
		{"limit", models.ViolationQuery{Limit: 1}, 1},
		{"offset", models.ViolationQuery{Limit: 10, Offset: 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.QueryViolations(ctx, tt.q)
			if err != nil {
				t.Fatalf("QueryViolations() error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	newest, _ := db.QueryViolations(ctx, models.ViolationQuery{Limit: 1})
	if newest[0].PlateNumber != "B-2" {
		t.Errorf("newest = %s, want B-2", newest[0].PlateNumber)
	}
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	v := models.Vehicle{PlateNumber: "A-1", OperatorName: "Op", VehicleType: "tricycle"}
	db.InsertVehicle(&v)
	db.InsertViolationBatch(ctx, []models.ViolationRecord{
		violation("A-1", "overcharging", now, 500, ""),
		violation("A-1", "overcharging", now, 1000, ""),
		violation("B-2", "overcharging", now, 500, ""),
	})

	s, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if s.TotalVehicles != 1 {
		t.Errorf("TotalVehicles = %d, want 1", s.TotalVehicles)
	}
	if s.TotalViolations != 3 {
		t.Errorf("TotalViolations = %d, want 3", s.TotalViolations)
	}
	if s.RepeatOffenders != 1 {
		t.Errorf("RepeatOffenders = %d, want 1", s.RepeatOffenders)
	}
	if s.TotalPenalties != 2000 {
		t.Errorf("TotalPenalties = %v, want 2000", s.TotalPenalties)
	}
}

func TestViolations_PlateNormalizedOnEntry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := db.InsertViolationBatch(ctx, []models.ViolationRecord{
		violation("abc-123", "reckless driving", base, 500, ""),
		violation(" Abc-123 ", "overcharging", base.AddDate(0, 1, 0), 1000, ""),
	}); err != nil {
		t.Fatal(err)
	}
	single := violation("abc-123", "overloading", base.AddDate(0, 2, 0), 1500, "")
	if err := db.InsertViolation(ctx, &single); err != nil {
		t.Fatal(err)
	}
	if single.PlateNumber != "ABC-123" {
		t.Errorf("InsertViolation() plate = %q, want ABC-123", single.PlateNumber)
	}

	for _, plate := range []string{"ABC-123", "abc-123"} {
		hist, err := db.ViolationHistory(ctx, plate)
		if err != nil {
			t.Fatalf("ViolationHistory(%q) error: %v", plate, err)
		}
		if len(hist) != 3 {
			t.Errorf("ViolationHistory(%q) = %d records, want 3", plate, len(hist))
		}
	}

	got, _ := db.QueryViolations(ctx, models.ViolationQuery{PlateNumber: "abc-123"})
	if len(got) != 3 {
		t.Errorf("QueryViolations(lower-case plate) = %d records, want 3", len(got))
	}
}

func TestCountViolations_IgnoresPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var records []models.ViolationRecord
	for i := 0; i < 5; i++ {
		records = append(records, violation("A-1", "overcharging", base.AddDate(0, 0, i), 500, ""))
	}
	records = append(records, violation("B-2", "overcharging", base, 500, ""))
	if _, err := db.InsertViolationBatch(ctx, records); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		q    models.ViolationQuery
		want int
	}{
		{"all", models.ViolationQuery{Limit: 2}, 6},
		{"by plate, paged", models.ViolationQuery{PlateNumber: "A-1", Limit: 2, Offset: 4}, 5},
		{"since", models.ViolationQuery{StartTime: base.AddDate(0, 0, 3)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.CountViolations(ctx, tt.q)
			if err != nil {
				t.Fatalf("CountViolations() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CountViolations() = %d, want %d", got, tt.want)
			}
		})
	}
}
