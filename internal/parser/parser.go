package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"basey-transport/internal/models"
)

// Parser handles parsing of violation record files
type Parser struct {
	format string
}

// NewParser creates a new parser with the specified format
func NewParser(format string) *Parser {
	return &Parser{format: format}
}

// ParseFile parses a violation record file
func (p *Parser) ParseFile(filename string) ([]models.ViolationRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse parses violation records from r
func (p *Parser) Parse(r io.Reader) ([]models.ViolationRecord, error) {
	switch strings.ToLower(p.format) {
	case "csv":
		return p.parseCSV(r)
	case "json":
		return p.parseJSON(r)
	case "log":
		return p.parseLog(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

// headerIndex maps lower-cased CSV header names to column positions
func headerIndex(header []string) map[string]int {
	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return indices
}

func field(record []string, indices map[string]int, key string) string {
	if idx, ok := indices[key]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

// parseCSV parses CSV formatted violation records
func (p *Parser) parseCSV(r io.Reader) ([]models.ViolationRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	indices := headerIndex(header)

	var results []models.ViolationRecord
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		data, err := recordToViolation(record, indices)
		if err != nil {
			slog.Warn("skipping csv line", "line", lineNum, "err", err)
			continue
		}
		results = append(results, data)
	}

	return results, nil
}

// recordToViolation converts a CSV record to a ViolationRecord
func recordToViolation(record []string, indices map[string]int) (models.ViolationRecord, error) {
	var v models.ViolationRecord
	var err error

	v.PlateNumber = field(record, indices, "plate_number")
	if v.PlateNumber == "" {
		return v, fmt.Errorf("missing plate_number")
	}

	v.ViolationDate, err = ParseTimestamp(field(record, indices, "violation_date"))
	if err != nil {
		return v, fmt.Errorf("invalid violation_date: %w", err)
	}

	if s := field(record, indices, "penalty_amount"); s != "" {
		v.PenaltyAmount, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return v, fmt.Errorf("invalid penalty_amount: %w", err)
		}
	}

	v.ViolationType = field(record, indices, "violation_type")
	v.TicketNumber = field(record, indices, "ticket_number")
	v.Location = field(record, indices, "location")

	return v, nil
}

// parseJSON parses a JSON array, falling back to newline-delimited JSON
func (p *Parser) parseJSON(r io.Reader) ([]models.ViolationRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var results []models.ViolationRecord
	if err := json.Unmarshal(raw, &results); err == nil {
		return results, nil
	}

	return p.parseJSONLines(bytes.NewReader(raw))
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]models.ViolationRecord, error) {
	var results []models.ViolationRecord
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}

		line = strings.TrimSuffix(line, ",")

		var v models.ViolationRecord
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			slog.Warn("skipping json line", "line", lineNum, "err", err)
			continue
		}
		results = append(results, v)
	}

	return results, scanner.Err()
}

// parseLog parses the pipe format: date|plate|type|amount|ticket[|location]
func (p *Parser) parseLog(r io.Reader) ([]models.ViolationRecord, error) {
	var results []models.ViolationRecord
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 4 {
			slog.Warn("skipping log line", "line", lineNum, "err", "insufficient fields")
			continue
		}

		var v models.ViolationRecord
		var err error

		v.ViolationDate, err = ParseTimestamp(strings.TrimSpace(parts[0]))
		if err != nil {
			slog.Warn("skipping log line", "line", lineNum, "err", err)
			continue
		}

		v.PlateNumber = strings.TrimSpace(parts[1])
		v.ViolationType = strings.TrimSpace(parts[2])
		v.PenaltyAmount, err = strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			slog.Warn("skipping log line", "line", lineNum, "err", err)
			continue
		}

		if len(parts) > 4 {
			v.TicketNumber = strings.TrimSpace(parts[4])
		}
		if len(parts) > 5 {
			v.Location = strings.TrimSpace(parts[5])
		}

		results = append(results, v)
	}

	return results, scanner.Err()
}

// ParseTimestamp accepts RFC 3339, common layouts and unix seconds
func ParseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	// Try Unix timestamp
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", s)
}

// ValidateViolation validates a violation record
func ValidateViolation(v *models.ViolationRecord) []string {
	var errors []string

	if strings.TrimSpace(v.PlateNumber) == "" {
		errors = append(errors, "plate_number is required")
	}
	if strings.TrimSpace(v.ViolationType) == "" {
		errors = append(errors, "violation_type is required")
	}
	if v.ViolationDate.IsZero() {
		errors = append(errors, "violation_date is required")
	}
	if v.PenaltyAmount < 0 {
		errors = append(errors, "penalty_amount cannot be negative")
	}

	return errors
}

// ParsePlaces loads a location table from a .csv or .json file. CSV columns
// are name, latitude, longitude, classification.
func ParsePlaces(filename string) ([]models.Place, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		var places []models.Place
		if err := json.NewDecoder(file).Decode(&places); err != nil {
			return nil, fmt.Errorf("decode places: %w", err)
		}
		return places, nil
	case ".csv":
		return parsePlacesCSV(file)
	default:
		return nil, fmt.Errorf("unsupported location table format: %s", filename)
	}
}

func parsePlacesCSV(r io.Reader) ([]models.Place, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	indices := headerIndex(header)

	var places []models.Place
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		p := models.Place{
			Name:           field(record, indices, "name"),
			Classification: models.Classification(strings.ToLower(field(record, indices, "classification"))),
		}
		if p.Latitude, err = strconv.ParseFloat(field(record, indices, "latitude"), 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid latitude: %w", lineNum, err)
		}
		if p.Longitude, err = strconv.ParseFloat(field(record, indices, "longitude"), 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid longitude: %w", lineNum, err)
		}
		places = append(places, p)
	}

	return places, nil
}
