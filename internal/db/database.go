package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"basey-transport/internal/models"
	"basey-transport/internal/penalty"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	// Enable WAL mode and other optimizations via connection string
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // SQLite works best with single writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		plate_number TEXT PRIMARY KEY,
		operator_name TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS violations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plate_number TEXT NOT NULL,
		violation_type TEXT NOT NULL,
		violation_date DATETIME NOT NULL,
		penalty_amount REAL NOT NULL,
		ticket_number TEXT UNIQUE,
		location TEXT
	);

	-- Offense counting reads a plate's history in date order
	CREATE INDEX IF NOT EXISTS idx_violations_plate ON violations(plate_number);
	CREATE INDEX IF NOT EXISTS idx_violations_plate_date ON violations(plate_number, violation_date);
	CREATE INDEX IF NOT EXISTS idx_violations_date ON violations(violation_date);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// InsertVehicle adds a new vehicle
func (db *Database) InsertVehicle(v *models.Vehicle) error {
	v.PlateNumber = penalty.NormalizePlate(v.PlateNumber)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO vehicles (plate_number, operator_name, vehicle_type, created_at) VALUES (?, ?, ?, ?)`
	_, err := db.conn.Exec(query, v.PlateNumber, v.OperatorName, v.VehicleType, v.CreatedAt)
	return err
}

// GetVehicle retrieves a vehicle by plate number
func (db *Database) GetVehicle(plate string) (*models.Vehicle, error) {
	query := `SELECT plate_number, operator_name, vehicle_type, created_at FROM vehicles WHERE plate_number = ?`

	var v models.Vehicle
	err := db.conn.QueryRow(query, penalty.NormalizePlate(plate)).Scan(&v.PlateNumber, &v.OperatorName, &v.VehicleType, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vehicle %s: %w", plate, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVehicles returns all vehicles
func (db *Database) ListVehicles() ([]models.Vehicle, error) {
	query := `SELECT plate_number, operator_name, vehicle_type, created_at FROM vehicles ORDER BY plate_number`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.PlateNumber, &v.OperatorName, &v.VehicleType, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

const insertViolation = `
	INSERT INTO violations
	(plate_number, violation_type, violation_date, penalty_amount, ticket_number, location)
	VALUES (?, ?, ?, ?, ?, ?)
`

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertViolation adds a single violation record. The plate is stored
// normalized so history lookups match however it was spelled on entry.
func (db *Database) InsertViolation(ctx context.Context, v *models.ViolationRecord) error {
	v.PlateNumber = penalty.NormalizePlate(v.PlateNumber)
	result, err := db.conn.ExecContext(ctx, insertViolation,
		v.PlateNumber, v.ViolationType, v.ViolationDate.UTC(), v.PenaltyAmount,
		nullable(v.TicketNumber), nullable(v.Location),
	)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	v.ID = id
	return nil
}

// InsertViolationBatch inserts multiple violation records in one transaction
func (db *Database) InsertViolationBatch(ctx context.Context, records []models.ViolationRecord) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertViolation)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var count int64
	for _, v := range records {
		_, err := stmt.ExecContext(ctx,
			penalty.NormalizePlate(v.PlateNumber), v.ViolationType, v.ViolationDate.UTC(), v.PenaltyAmount,
			nullable(v.TicketNumber), nullable(v.Location),
		)
		if err != nil {
			return 0, err
		}
		count++
	}

	return count, tx.Commit()
}

const violationColumns = `id, plate_number, violation_type, violation_date, penalty_amount, ticket_number, location`

func scanViolations(rows *sql.Rows) ([]models.ViolationRecord, error) {
	var results []models.ViolationRecord
	for rows.Next() {
		var v models.ViolationRecord
		var ticket, location sql.NullString

		err := rows.Scan(&v.ID, &v.PlateNumber, &v.ViolationType, &v.ViolationDate, &v.PenaltyAmount, &ticket, &location)
		if err != nil {
			return nil, err
		}
		v.TicketNumber = ticket.String
		v.Location = location.String
		results = append(results, v)
	}
	return results, rows.Err()
}

// ViolationHistory returns every violation recorded against a plate,
// oldest first. It satisfies penalty.HistorySource.
func (db *Database) ViolationHistory(ctx context.Context, plateNumber string) ([]models.ViolationRecord, error) {
	query := `SELECT ` + violationColumns + ` FROM violations WHERE plate_number = ? ORDER BY violation_date ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, penalty.NormalizePlate(plateNumber))
	if err != nil {
		return nil, fmt.Errorf("query violation history: %w", err)
	}
	defer rows.Close()

	return scanViolations(rows)
}

// violationFilter builds the WHERE clause shared by QueryViolations and CountViolations
func violationFilter(q models.ViolationQuery) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if q.PlateNumber != "" {
		conditions = append(conditions, "plate_number = ?")
		args = append(args, penalty.NormalizePlate(q.PlateNumber))
	}
	if q.ViolationType != "" {
		conditions = append(conditions, "violation_type = ?")
		args = append(args, q.ViolationType)
	}
	if !q.StartTime.IsZero() {
		conditions = append(conditions, "violation_date >= ?")
		args = append(args, q.StartTime.UTC())
	}
	if !q.EndTime.IsZero() {
		conditions = append(conditions, "violation_date <= ?")
		args = append(args, q.EndTime.UTC())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// QueryViolations retrieves violations based on query parameters, newest first
func (db *Database) QueryViolations(ctx context.Context, q models.ViolationQuery) ([]models.ViolationRecord, error) {
	where, args := violationFilter(q)
	baseQuery := `SELECT ` + violationColumns + ` FROM violations` + where
	baseQuery += " ORDER BY violation_date DESC, id DESC"

	if q.Limit > 0 {
		baseQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			baseQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := db.conn.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanViolations(rows)
}

// CountViolations returns how many violations match q, ignoring Limit and Offset
func (db *Database) CountViolations(ctx context.Context, q models.ViolationQuery) (int, error) {
	where, args := violationFilter(q)

	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations`+where, args...).Scan(&n)
	return n, err
}

// GetStats returns record store totals
func (db *Database) GetStats() (*models.Stats, error) {
	var s models.Stats

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM vehicles").Scan(&s.TotalVehicles); err != nil {
		return nil, err
	}
	err := db.conn.QueryRow("SELECT COUNT(*), COALESCE(SUM(penalty_amount), 0) FROM violations").
		Scan(&s.TotalViolations, &s.TotalPenalties)
	if err != nil {
		return nil, err
	}
	err = db.conn.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT plate_number FROM violations GROUP BY plate_number HAVING COUNT(*) > 1
		)
	`).Scan(&s.RepeatOffenders)
	if err != nil {
		return nil, err
	}

	return &s, nil
}
