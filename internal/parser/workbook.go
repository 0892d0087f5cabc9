package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook spreadsheet access used by the pipeline
type Workbook interface {
	SheetNames() []string
	// Cells returns the populated cells of a sheet, row-major, rows may differ in length
	Cells(sheet string) ([][]Cell, error)
	// MergeRanges lists the merged blocks of a sheet
	MergeRanges(sheet string) ([]MergeRange, error)
	Close() error
}

// OpenWorkbook opens an xlsx (excelize) or legacy xls workbook by extension
func OpenWorkbook(path string) (Workbook, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls":
		return openXLS(path)
	default:
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, &FileReadError{Path: path, Err: err}
		}
		return &ExcelizeWorkbook{file: f, path: path}, nil
	}
}

// OpenWorkbookReader opens a workbook from a stream; name picks xls or xlsx by extension
func OpenWorkbookReader(r io.Reader, name string) (Workbook, error) {
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return openXLSReader(r, name)
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FileReadError{Path: name, Err: err}
	}
	return &ExcelizeWorkbook{file: f, path: name}, nil
}

// ExcelizeWorkbook Workbook backed by excelize
type ExcelizeWorkbook struct {
	file *excelize.File
	path string
}

// NewExcelizeWorkbook wraps an already opened file (tests, uploads)
func NewExcelizeWorkbook(f *excelize.File, name string) *ExcelizeWorkbook {
	return &ExcelizeWorkbook{file: f, path: name}
}

// SheetNames returns sheets in workbook order
func (w *ExcelizeWorkbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Cells reads typed cells of a sheet
func (w *ExcelizeWorkbook) Cells(sheet string) ([][]Cell, error) {
	raw, err := w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &FileReadError{Path: w.path, Sheet: sheet, Err: err}
	}
	formatted, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, &FileReadError{Path: w.path, Sheet: sheet, Err: err}
	}

	out := make([][]Cell, len(raw))
	for r, row := range raw {
		cells := make([]Cell, len(row))
		for c, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			text := value
			if r < len(formatted) && c < len(formatted[r]) && formatted[r][c] != "" {
				text = formatted[r][c]
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, &FileReadError{Path: w.path, Sheet: sheet, Err: err}
			}
			cellType, err := w.file.GetCellType(sheet, axis)
			if err != nil {
				cellType = excelize.CellTypeUnset
			}
			cells[c] = typedCell(cellType, value, text)
		}
		out[r] = cells
	}
	return out, nil
}

// MergeRanges reads merged blocks
func (w *ExcelizeWorkbook) MergeRanges(sheet string) ([]MergeRange, error) {
	merged, err := w.file.GetMergeCells(sheet)
	if err != nil {
		return nil, &FileReadError{Path: w.path, Sheet: sheet, Err: err}
	}
	ranges := make([]MergeRange, 0, len(merged))
	for _, m := range merged {
		left, top, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			continue
		}
		right, bottom, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			continue
		}
		ranges = append(ranges, MergeRange{Top: top - 1, Left: left - 1, Bottom: bottom - 1, Right: right - 1})
	}
	return ranges, nil
}

// Close closes the underlying file
func (w *ExcelizeWorkbook) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

var dateLikeTextRe = regexp.MustCompile(`^\s*\d{1,4}\s?[-./]\s?\d{1,2}\s?[-./]\s?\d{1,4}|\d{1,2}:\d{2}`)

// typedCell classifies a cell from its stored type, raw value and display text
func typedCell(cellType excelize.CellType, raw, text string) Cell {
	switch cellType {
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return StringCell(text)
	case excelize.CellTypeDate:
		if t, err := parseISODateTime(raw); err == nil {
			return Cell{Kind: KindDate, Time: t, Text: text}
		}
		return StringCell(text)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return StringCell(text)
	}
	if text != raw && dateLikeTextRe.MatchString(text) {
		if t, err := ExcelSerialToCalendar(f); err == nil {
			return Cell{Kind: KindDate, Time: t, Text: text, Number: f}
		}
	}
	c := NumberCell(f)
	c.Text = text
	return c
}

var errNotISO = errors.New("not an ISO timestamp")

func parseISODateTime(s string) (t time.Time, err error) {
	for _, layout := range []string{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err = time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return t, fmt.Errorf("%w: %q", errNotISO, s)
}
