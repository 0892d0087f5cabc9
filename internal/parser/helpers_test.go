package parser

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// gridOf builds a grid of string cells; "" is an empty cell
func gridOf(rows ...[]string) *Grid {
	cells := make([][]Cell, len(rows))
	for r, row := range rows {
		cells[r] = make([]Cell, len(row))
		for c, v := range row {
			cells[r][c] = StringCell(v)
		}
	}
	return NewGrid(cells, nil)
}

// buildWorkbook creates an in-memory workbook with one sheet filled row by row
func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) *excelize.File {
	t.Helper()

	wb := excelize.NewFile()
	if sheet != "Sheet1" {
		if _, err := wb.NewSheet(sheet); err != nil {
			t.Fatalf("NewSheet %s failed: %v", sheet, err)
		}
		if err := wb.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("DeleteSheet failed: %v", err)
		}
	}
	for i := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := rows[i]
		if err := wb.SetSheetRow(sheet, axis, &row); err != nil {
			t.Fatalf("SetSheetRow %s failed: %v", axis, err)
		}
	}
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}
