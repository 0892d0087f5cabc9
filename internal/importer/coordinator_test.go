package importer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"drivers/internal/model"
	"drivers/internal/parser"
	"drivers/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "drivers.db"))
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewCoordinator(st, parser.New(nil, parser.DefaultProfile()), nil), st
}

// writeWorkbook saves a one-sheet workbook under t.TempDir()
func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for i := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := rows[i]
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			t.Fatalf("SetSheetRow %s failed: %v", axis, err)
		}
	}
	path := filepath.Join(t.TempDir(), "import.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func stopEventRows() [][]interface{} {
	return [][]interface{}{
		{"Rendszám", "Érkezés időpont", "Állás", "Pozíció", "Fontos pont"},
		{"AB-123", "2024.03.01 08:15:00", "15", "Depot", "igen"},
		{"CD-456", "2024.03.01 09:30:00", "30", "Raktár", ""},
		{"AB-123", "tegnap", "10", "Depot", ""},
	}
}

func countRows(t *testing.T, st *store.Store, table string) int {
	t.Helper()
	var n int
	if err := st.DB().Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestRun_StopEventsResolvesVehicles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st := newTestCoordinator(t)

	vid, err := st.Create(ctx, "vehicles", model.Record{"plateNumber": "AB-123"})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}

	report, err := c.Run(ctx, ImportOptions{FilePath: writeWorkbook(t, "Riasztások", stopEventRows())})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Kind != model.KindStopEvents || report.Table != "alerts" {
		t.Fatalf("kind=%s table=%s", report.Kind, report.Table)
	}
	if report.ImportedRows != 2 || report.ErrorRows != 1 || report.TotalRows != 3 {
		t.Fatalf("imported=%d errors=%d total=%d", report.ImportedRows, report.ErrorRows, report.TotalRows)
	}
	if report.Status != model.ImportStatusPartial {
		t.Fatalf("status = %s", report.Status)
	}
	if len(report.Errors) != 1 || report.Errors[0].Row != 4 || report.Errors[0].Code != model.CodeInvalidDate {
		t.Fatalf("errors = %+v", report.Errors)
	}

	var alerts []struct {
		Plate     string `db:"plate_number"`
		VehicleID *int64 `db:"vehicle_id"`
		Sheet     string `db:"source_sheet"`
		Row       int    `db:"source_row"`
		LogID     int64  `db:"import_log_id"`
	}
	err = st.DB().Select(&alerts, "SELECT plate_number, vehicle_id, source_sheet, source_row, import_log_id FROM alerts ORDER BY id")
	if err != nil {
		t.Fatalf("select alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %+v", alerts)
	}
	if alerts[0].VehicleID == nil || *alerts[0].VehicleID != vid {
		t.Fatalf("AB-123 vehicle_id = %v, want %d", alerts[0].VehicleID, vid)
	}
	if alerts[1].VehicleID != nil {
		t.Fatalf("CD-456 should stay unresolved, got %d", *alerts[1].VehicleID)
	}
	if alerts[0].Sheet != "Riasztások" || alerts[0].Row != 2 || alerts[1].Row != 3 || alerts[0].LogID != report.ImportLogID {
		t.Fatalf("provenance = %+v", alerts)
	}

	log, err := st.GetImportLog(ctx, report.ImportLogID)
	if err != nil {
		t.Fatalf("import log: %v", err)
	}
	if log.Status != model.ImportStatusPartial || log.ImportedRows != 2 || log.FileHash == "" || log.RunID != report.RunID {
		t.Fatalf("import log = %+v", log)
	}
	metas, err := st.ListSheetMeta(ctx, report.ImportLogID)
	if err != nil {
		t.Fatalf("sheet meta: %v", err)
	}
	if len(metas) != 1 || metas[0].SheetName != "Riasztások" || metas[0].ImportedRows != 2 || metas[0].ErrorRows != 1 {
		t.Fatalf("sheet meta = %+v", metas)
	}
}

func TestRun_CreateMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st := newTestCoordinator(t)

	report, err := c.Run(ctx, ImportOptions{
		FilePath:      writeWorkbook(t, "Riasztások", stopEventRows()),
		Kind:          model.KindStopEvents,
		CreateMissing: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Created["vehicles"] != 2 {
		t.Fatalf("created = %v", report.Created)
	}
	if n := countRows(t, st, "vehicles"); n != 2 {
		t.Fatalf("vehicles = %d", n)
	}
	var unresolved int
	if err := st.DB().Get(&unresolved, "SELECT COUNT(*) FROM alerts WHERE vehicle_id IS NULL"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if unresolved != 0 {
		t.Fatalf("%d alerts without vehicle", unresolved)
	}
}

func TestRun_DryRunStoresNothing(t *testing.T) {
	t.Parallel()
	c, st := newTestCoordinator(t)

	report, err := c.Run(context.Background(), ImportOptions{
		FilePath:      writeWorkbook(t, "Riasztások", stopEventRows()),
		DryRun:        true,
		CreateMissing: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ImportLogID != 0 || report.ImportedRows != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, table := range []string{"alerts", "vehicles", "import_logs"} {
		if n := countRows(t, st, table); n != 0 {
			t.Fatalf("%s has %d rows after a dry run", table, n)
		}
	}
}

func TestRun_ReferenceYearSetting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st := newTestCoordinator(t)

	if err := st.SetSetting(ctx, SettingReferenceYear, "2023"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	path := writeWorkbook(t, "Riasztások", [][]interface{}{
		{"Rendszám", "Érkezés", "Állás", "Pozíció"},
		{"AB-123", "03.01 08:15", "15", "Depot"},
	})
	if _, err := c.Run(ctx, ImportOptions{FilePath: path, Kind: model.KindStopEvents}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var arrival string
	if err := st.DB().Get(&arrival, "SELECT arrival_time FROM alerts"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if arrival != "2023-03-01 08:15:00" {
		t.Fatalf("arrival = %q", arrival)
	}
}

func TestRun_GenericTargets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st := newTestCoordinator(t)

	path := writeWorkbook(t, "Lap1", [][]interface{}{
		{"Név", "Darab"},
		{"Anna", 3},
	})
	report, err := c.Run(ctx, ImportOptions{
		FilePath: path,
		Kind:     model.KindGeneric,
		Generic:  parser.GenericOptions{HeaderRow: 1},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Table != "generic_rows" {
		t.Fatalf("table = %s", report.Table)
	}
	var data string
	if err := st.DB().Get(&data, "SELECT data_json FROM generic_rows"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if data != `{"darab":3,"nev":"Anna"}` {
		t.Fatalf("data_json = %s", data)
	}

	path = writeWorkbook(t, "Sofőrök", [][]interface{}{
		{"Name", "Phone"},
		{"Kiss Anna", "+36 30 111 2222"},
		{"Nagy Béla", "+36 30 333 4444"},
	})
	report, err = c.Run(ctx, ImportOptions{
		FilePath: path,
		Kind:     model.KindGeneric,
		Table:    "drivers",
		Generic:  parser.GenericOptions{HeaderRow: 1},
	})
	if err != nil {
		t.Fatalf("run drivers: %v", err)
	}
	if report.ImportedRows != 2 || countRows(t, st, "drivers") != 2 {
		t.Fatalf("imported = %d", report.ImportedRows)
	}

	report, err = c.Run(ctx, ImportOptions{FilePath: path, Kind: model.KindGeneric, Table: "companies"})
	if err == nil {
		t.Fatalf("expected unknown table error")
	}
	log, err := st.GetImportLog(ctx, report.ImportLogID)
	if err != nil {
		t.Fatalf("import log: %v", err)
	}
	if log.Status != model.ImportStatusFailed || log.ErrorMessage == "" {
		t.Fatalf("import log = %+v", log)
	}
}

func TestRun_DuplicateDriversRejectedByStore(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)

	path := writeWorkbook(t, "Sofőrök", [][]interface{}{
		{"Name"},
		{"Kiss Anna"},
		{"kiss anna"},
	})
	report, err := c.Run(context.Background(), ImportOptions{
		FilePath: path,
		Kind:     model.KindGeneric,
		Table:    "drivers",
		Generic:  parser.GenericOptions{HeaderRow: 1},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ImportedRows != 1 || report.ErrorRows != 1 {
		t.Fatalf("imported=%d errors=%d", report.ImportedRows, report.ErrorRows)
	}
	last := report.Errors[len(report.Errors)-1]
	if last.Code != CodeStoreRejected || last.Row != 3 || last.Sheet != "Sofőrök" {
		t.Fatalf("error = %+v", last)
	}
}

func TestImport_StreamsProgress(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)

	var types []string
	var done *Report
	for evt := range c.Import(ImportOptions{FilePath: writeWorkbook(t, "Riasztások", stopEventRows())}) {
		types = append(types, evt.Type)
		if evt.Type == "error" {
			t.Fatalf("import error event: %s", evt.Message)
		}
		if evt.Type == "done" {
			r, ok := evt.Data.(*Report)
			if !ok {
				t.Fatalf("unexpected report type: %T", evt.Data)
			}
			done = r
		}
	}
	if len(types) < 3 || types[0] != "start" || types[len(types)-1] != "done" {
		t.Fatalf("event types = %v", types)
	}
	if !containsType(types, "sheet_done") {
		t.Fatalf("missing sheet_done in %v", types)
	}
	if done == nil || done.ImportedRows != 2 {
		t.Fatalf("done report = %+v", done)
	}
}

func TestImport_MissingFileEmitsError(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)

	var last ProgressEvent
	for evt := range c.Import(ImportOptions{FilePath: filepath.Join(t.TempDir(), "missing.xlsx")}) {
		last = evt
	}
	if last.Type != "error" {
		t.Fatalf("last event = %+v", last)
	}
}

func containsType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
