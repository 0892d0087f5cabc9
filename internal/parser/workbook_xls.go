package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/extrame/xls"
)

// XLSWorkbook legacy BIFF workbook. The reader exposes formatted text only and
// no merge records, so cells are typed from their text and merges are empty.
type XLSWorkbook struct {
	book   *xls.WorkBook
	closer io.Closer
	path   string
}

var errNoWorkbookStream = errors.New("no workbook stream in file")

func openXLS(path string) (Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}
	wb, err := newXLSWorkbook(f, f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return wb, nil
}

// openXLSReader buffers a stream; the BIFF reader needs random access
func openXLSReader(r io.Reader, name string) (Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &FileReadError{Path: name, Err: err}
	}
	return newXLSWorkbook(bytes.NewReader(data), nil, name)
}

func newXLSWorkbook(r io.ReadSeeker, closer io.Closer, path string) (*XLSWorkbook, error) {
	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}
	if book == nil {
		return nil, &FileReadError{Path: path, Err: errNoWorkbookStream}
	}
	return &XLSWorkbook{book: book, closer: closer, path: path}, nil
}

// SheetNames returns sheets in workbook order
func (w *XLSWorkbook) SheetNames() []string {
	names := make([]string, 0, w.book.NumSheets())
	for i := 0; i < w.book.NumSheets(); i++ {
		if sheet := w.book.GetSheet(i); sheet != nil {
			names = append(names, sheet.Name)
		}
	}
	return names
}

// Cells reads a sheet's cells
func (w *XLSWorkbook) Cells(sheetName string) ([][]Cell, error) {
	sheet := w.sheet(sheetName)
	if sheet == nil {
		return nil, &FileReadError{Path: w.path, Sheet: sheetName, Err: fmt.Errorf("sheet not found")}
	}

	out := make([][]Cell, int(sheet.MaxRow)+1)
	for r := 0; r <= int(sheet.MaxRow); r++ {
		row := sheet.Row(r)
		if row == nil {
			continue
		}
		cells := make([]Cell, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = textCell(row.Col(c))
		}
		out[r] = cells
	}
	return out, nil
}

// MergeRanges not available through the BIFF reader
func (w *XLSWorkbook) MergeRanges(string) ([]MergeRange, error) {
	return nil, nil
}

// Close releases the file handle
func (w *XLSWorkbook) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func (w *XLSWorkbook) sheet(name string) *xls.WorkSheet {
	for i := 0; i < w.book.NumSheets(); i++ {
		if sheet := w.book.GetSheet(i); sheet != nil && sheet.Name == name {
			return sheet
		}
	}
	return nil
}

// textCell types a text-only value
func textCell(s string) Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Cell{}
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		c := NumberCell(f)
		c.Text = s
		return c
	}
	switch strings.ToLower(trimmed) {
	case "true", "false":
		return BoolCell(strings.EqualFold(trimmed, "true"))
	}
	return StringCell(s)
}
