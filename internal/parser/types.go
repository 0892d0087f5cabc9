package parser

import (
	"strconv"
	"strings"
	"time"
)

// CellKind cell value type
type CellKind int

const (
	KindEmpty CellKind = iota
	KindString
	KindNumber
	KindDate
	KindBool
)

// Cell a typed cell value
type Cell struct {
	Kind   CellKind  `json:"kind"`
	Text   string    `json:"text"` // display text, always set for non-empty cells
	Number float64   `json:"number,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Time   time.Time `json:"time,omitempty"`
}

// StringCell builds a string cell
func StringCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: KindString, Text: s}
}

// NumberCell builds a numeric cell
func NumberCell(f float64) Cell {
	return Cell{Kind: KindNumber, Number: f, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// DateCell builds a date cell
func DateCell(t time.Time) Cell {
	return Cell{Kind: KindDate, Time: t, Text: t.Format("2006-01-02 15:04:05")}
}

// BoolCell builds a boolean cell
func BoolCell(b bool) Cell {
	return Cell{Kind: KindBool, Bool: b, Text: strconv.FormatBool(b)}
}

// IsEmpty reports whether the cell carries no value
func (c Cell) IsEmpty() bool {
	return c.Kind == KindEmpty || (c.Kind == KindString && strings.TrimSpace(c.Text) == "")
}

// String trimmed display text
func (c Cell) String() string {
	return strings.TrimSpace(c.Text)
}

// MergeRange a merged block, 0-based inclusive bounds
type MergeRange struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
}

// ColumnRef where a logical field lives
type ColumnRef struct {
	Col       int    `json:"col"`
	RowOffset int    `json:"rowOffset"` // header sub-row the label was found on (compound headers)
	Label     string `json:"label"`
	Strategy  string `json:"strategy"`
}

// ColumnMap logical field -> column, built once per sheet/section and read-only afterwards
type ColumnMap struct {
	HeaderRow int `json:"headerRow"`
	DataStart int `json:"dataStart"`
	fields    map[string]ColumnRef
}

// NewColumnMap creates a ColumnMap; refs is copied
func NewColumnMap(headerRow, dataStart int, refs map[string]ColumnRef) ColumnMap {
	fields := make(map[string]ColumnRef, len(refs))
	for k, v := range refs {
		fields[k] = v
	}
	return ColumnMap{HeaderRow: headerRow, DataStart: dataStart, fields: fields}
}

// Column looks up a field; ok=false when the sheet has no such column
func (m ColumnMap) Column(field string) (ColumnRef, bool) {
	ref, ok := m.fields[field]
	return ref, ok
}

// Has reports whether all fields are mapped
func (m ColumnMap) Has(fields ...string) bool {
	for _, f := range fields {
		if _, ok := m.fields[f]; !ok {
			return false
		}
	}
	return true
}

// Fields returns a copy of the mapping (for diagnostics and persistence)
func (m ColumnMap) Fields() map[string]ColumnRef {
	out := make(map[string]ColumnRef, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// Section rows of one person in a time-and-attendance sheet, [Start, End)
type Section struct {
	Start     int         `json:"start"`
	End       int         `json:"end"`
	HeaderRow int         `json:"headerRow"` // -1 when the scan did not meet a header row
	Meta      SectionMeta `json:"meta"`
}

// SectionMeta employee metadata of a section
type SectionMeta struct {
	Name       string `json:"name"`
	JobTitle   string `json:"jobTitle"`
	CostCenter string `json:"costCenter"`
}
