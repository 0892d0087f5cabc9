package parser

import (
	"fmt"

	"drivers/internal/model"
)

// FileReadError the workbook could not be opened or a sheet could not be read
type FileReadError struct {
	Path  string
	Sheet string
	Err   error
}

func (e *FileReadError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("read workbook %q sheet %q: %v", e.Path, e.Sheet, e.Err)
	}
	return fmt.Sprintf("read workbook %q: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

// NoHeaderFoundError no header row carries the columns an import kind requires
type NoHeaderFoundError struct {
	Sheet   string
	Kind    model.ImportKind
	Missing []string
}

func (e *NoHeaderFoundError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("sheet %q: no %s header found (missing %v)", e.Sheet, e.Kind, e.Missing)
	}
	return fmt.Sprintf("sheet %q: no %s header found", e.Sheet, e.Kind)
}

// NoSectionsFoundError a time-and-attendance sheet without any person section
type NoSectionsFoundError struct {
	Sheet   string
	Markers []string
}

func (e *NoSectionsFoundError) Error() string {
	return fmt.Sprintf("sheet %q: no person sections found (markers %v)", e.Sheet, e.Markers)
}

// SkipReason why a row did not produce a record
type SkipReason struct {
	Field  string
	Code   string
	Reason string
}

// RowOutcome per-row result: either Record or Skip is set; Silent skips are non-data rows
type RowOutcome struct {
	Row    int // 1-based sheet row
	Record model.Record
	Skip   *SkipReason
	Silent bool
}

func emitted(row int, rec model.Record) RowOutcome {
	return RowOutcome{Row: row, Record: rec}
}

func skipped(row int, field, code, reason string) RowOutcome {
	return RowOutcome{Row: row, Skip: &SkipReason{Field: field, Code: code, Reason: reason}}
}

func ignored(row int) RowOutcome {
	return RowOutcome{Row: row, Silent: true}
}

func missingField(row int, field string) RowOutcome {
	return skipped(row, field, model.CodeMissingRequiredField, fmt.Sprintf("required field %s is empty", field))
}

// collect folds row outcomes into an ImportResult
func collect(kind model.ImportKind, sheet string, outcomes []RowOutcome) *model.ImportResult {
	res := &model.ImportResult{
		Kind:    kind,
		Sheets:  []string{sheet},
		Records: []model.Record{},
		Errors:  []model.RowError{},
	}
	for _, o := range outcomes {
		switch {
		case o.Silent:
			continue
		case o.Skip != nil:
			res.ErrorCount++
			res.Errors = append(res.Errors, model.RowError{
				Sheet:  sheet,
				Row:    o.Row,
				Field:  o.Skip.Field,
				Code:   o.Skip.Code,
				Reason: o.Skip.Reason,
			})
		case o.Record != nil:
			res.SuccessCount++
			res.Records = append(res.Records, o.Record)
			res.SourceRows = append(res.SourceRows, o.Row)
		}
	}
	return res
}
