package model

import (
	"fmt"
	"strings"
)

// ImportKind import type selector
type ImportKind string

const (
	KindAuto             ImportKind = "auto"
	KindTimeAttendance   ImportKind = "time-attendance"   // personnel time report, one section per person
	KindStopEvents       ImportKind = "stop-events"       // vehicle stop / alert events
	KindVehicleMovements ImportKind = "vehicle-movements" // iFleet movement export
	KindGeneric          ImportKind = "generic"           // plain table with a single header row
)

// ParseImportKind parses a user supplied kind, accepting a few aliases
func ParseImportKind(s string) (ImportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KindAuto, nil
	case "time-attendance", "attendance", "time_attendance", "jelenlet":
		return KindTimeAttendance, nil
	case "stop-events", "stops", "stop_events", "alerts":
		return KindStopEvents, nil
	case "vehicle-movements", "movements", "vehicle_movements", "ifleet":
		return KindVehicleMovements, nil
	case "generic":
		return KindGeneric, nil
	}
	return "", fmt.Errorf("unknown import kind: %q", s)
}

// Record one normalized output row: canonical field name -> scalar
type Record map[string]any

// String returns the field as string ("" if absent or not a string)
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Row error codes
const (
	CodeMissingRequiredField = "missing_required_field"
	CodeInvalidDate          = "invalid_date"
	CodeInvalidTime          = "invalid_time"
	CodeInvalidDuration      = "invalid_duration"
	CodeInvalidPlateNumber   = "invalid_plate_number"
	CodeInvalidValue         = "invalid_value"
)

// RowError a rejected row
type RowError struct {
	Sheet  string `json:"sheet,omitempty"`
	Row    int    `json:"row"` // 1-based sheet row
	Field  string `json:"field,omitempty"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Diagnostic notes which heuristic produced a result, so operators can spot degraded parses
type Diagnostic struct {
	Sheet    string `json:"sheet,omitempty"`
	Section  string `json:"section,omitempty"`
	Strategy string `json:"strategy"`
	Degraded bool   `json:"degraded"`
	Message  string `json:"message"`
}

// ImportResult output of one pipeline run
type ImportResult struct {
	Kind         ImportKind    `json:"kind"`
	Sheets       []string      `json:"sheets"`
	Records      []Record      `json:"records"`
	SourceRows   []int         `json:"sourceRows"` // sheet row of Records[i]
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
	Errors       []RowError    `json:"errors"`
	Diagnostics  []Diagnostic  `json:"diagnostics,omitempty"`
	Degraded     bool          `json:"degraded"`
	Reports      []SheetReport `json:"sheetReports,omitempty"`
}

// SheetReport per-sheet outcome, persisted as sheet metadata
type SheetReport struct {
	Sheet      string         `json:"sheet"`
	Kind       ImportKind     `json:"kind"`
	Confidence float64        `json:"confidence"`
	HeaderRow  int            `json:"headerRow"` // 0-based, -1 when unknown
	Columns    map[string]int `json:"columns,omitempty"`
	Imported   int            `json:"imported"`
	Errors     int            `json:"errors"`
	Degraded   bool           `json:"degraded"`
	Err        string         `json:"error,omitempty"`
}

// Merge appends another sheet's result
func (r *ImportResult) Merge(other *ImportResult) {
	if other == nil {
		return
	}
	r.Sheets = append(r.Sheets, other.Sheets...)
	r.Records = append(r.Records, other.Records...)
	r.SourceRows = append(r.SourceRows, other.SourceRows...)
	r.SuccessCount += other.SuccessCount
	r.ErrorCount += other.ErrorCount
	r.Errors = append(r.Errors, other.Errors...)
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
	r.Degraded = r.Degraded || other.Degraded
	r.Reports = append(r.Reports, other.Reports...)
}
