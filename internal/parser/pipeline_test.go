package parser

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"drivers/internal/model"
)

func addSheet(t *testing.T, f *excelize.File, sheet string, rows [][]interface{}) {
	t.Helper()

	if _, err := f.NewSheet(sheet); err != nil {
		t.Fatalf("NewSheet %s failed: %v", sheet, err)
	}
	for i := range rows {
		axis, _ := excelize.CoordinatesToCellName(1, i+1)
		row := rows[i]
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			t.Fatalf("SetSheetRow %s failed: %v", axis, err)
		}
	}
}

func TestParseWorkbook_SkipsSheetsOfOtherKinds(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t, "Riasztások", stopRows())
	addSheet(t, f, "Jegyzet", [][]interface{}{{"megjegyzés"}, {"semmi"}})

	res, err := New(nil, DefaultProfile()).ParseWorkbook(context.Background(), NewExcelizeWorkbook(f, "mixed.xlsx"), model.KindAuto, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Kind != model.KindStopEvents || res.SuccessCount != 1 {
		t.Fatalf("result kind=%s success=%d", res.Kind, res.SuccessCount)
	}
	skipped := false
	for _, d := range res.Diagnostics {
		if d.Sheet == "Jegyzet" && d.Strategy == "skip-sheet" {
			skipped = true
		}
	}
	if !skipped {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestParseWorkbook_StructuralErrorSkipsSheet(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t, "Riasztások", stopRows())
	addSheet(t, f, "Jegyzet", [][]interface{}{{"megjegyzés"}, {"semmi"}})

	res, err := New(nil, DefaultProfile()).ParseWorkbook(context.Background(), NewExcelizeWorkbook(f, "mixed.xlsx"), model.KindStopEvents, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.SuccessCount != 1 || len(res.Reports) != 2 {
		t.Fatalf("success=%d reports=%+v", res.SuccessCount, res.Reports)
	}
	if res.Reports[1].Sheet != "Jegyzet" || res.Reports[1].Err == "" {
		t.Fatalf("failed sheet report = %+v", res.Reports[1])
	}

	// only the failing sheet: the structural error is returned
	_, err = New(nil, DefaultProfile()).ParseWorkbook(context.Background(), NewExcelizeWorkbook(f, "mixed.xlsx"), model.KindStopEvents, Options{Sheet: "Jegyzet"})
	var nh *NoHeaderFoundError
	if !errors.As(err, &nh) {
		t.Fatalf("error = %v, want NoHeaderFoundError", err)
	}
}

func TestParseWorkbook_UnknownSheet(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t, "Riasztások", stopRows())
	_, err := New(nil, DefaultProfile()).ParseWorkbook(context.Background(), NewExcelizeWorkbook(f, "stops.xlsx"), model.KindAuto, Options{Sheet: "Nincs"})
	var fre *FileReadError
	if !errors.As(err, &fre) || fre.Sheet != "Nincs" {
		t.Fatalf("error = %v, want FileReadError for the sheet", err)
	}
}

func TestParseWorkbook_Cancelled(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t, "Riasztások", stopRows())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil, DefaultProfile()).ParseWorkbook(ctx, NewExcelizeWorkbook(f, "stops.xlsx"), model.KindAuto, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestOpenWorkbookReader_RoundTrip(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t, "Riasztások", stopRows())
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	wb, err := OpenWorkbookReader(bytes.NewReader(buf.Bytes()), "upload.xlsx")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer wb.Close()

	if names := wb.SheetNames(); len(names) != 1 || names[0] != "Riasztások" {
		t.Fatalf("sheets = %v", names)
	}
	res, err := New(nil, DefaultProfile()).ParseWorkbook(context.Background(), wb, model.KindAuto, Options{})
	if err != nil || res.SuccessCount != 1 {
		t.Fatalf("parse: %v %+v", err, res)
	}

	if _, err := OpenWorkbookReader(bytes.NewReader([]byte("not a zip")), "broken.xlsx"); err == nil {
		t.Fatalf("garbage input should fail")
	}
}

func TestOpenWorkbook_LegacyExtension(t *testing.T) {
	t.Parallel()

	buf, err := buildWorkbook(t, "Riasztások", stopRows()).WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	// .xls names go to the BIFF reader, which rejects a zip container
	_, err = OpenWorkbookReader(bytes.NewReader(buf.Bytes()), "upload.xls")
	var fre *FileReadError
	if !errors.As(err, &fre) || fre.Path != "upload.xls" {
		t.Fatalf("error = %v, want FileReadError for upload.xls", err)
	}

	path := filepath.Join(t.TempDir(), "legacy.xls")
	if err := os.WriteFile(path, []byte("not a biff file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenWorkbook(path); !errors.As(err, &fre) {
		t.Fatalf("error = %v, want FileReadError", err)
	}
	if _, err := OpenWorkbook(filepath.Join(t.TempDir(), "missing.xls")); !errors.As(err, &fre) {
		t.Fatalf("error = %v, want FileReadError for a missing file", err)
	}
}

func TestTypedCell(t *testing.T) {
	t.Parallel()

	if c := typedCell(excelize.CellTypeUnset, "45352.5", "3/1/24 12:00"); c.Kind != KindDate || c.Time.Format("2006-01-02 15:04") != "2024-03-01 12:00" {
		t.Fatalf("date cell = %+v", c)
	}
	if c := typedCell(excelize.CellTypeNumber, "8", "8"); c.Kind != KindNumber || c.Number != 8 {
		t.Fatalf("number cell = %+v", c)
	}
	if c := typedCell(excelize.CellTypeSharedString, "12", "12"); c.Kind != KindString {
		t.Fatalf("numeric text should stay text: %+v", c)
	}
	if c := typedCell(excelize.CellTypeBool, "1", "TRUE"); c.Kind != KindBool || !c.Bool {
		t.Fatalf("bool cell = %+v", c)
	}
}
