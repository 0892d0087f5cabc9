package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"drivers/internal/model"
	"drivers/internal/parser"
	"drivers/internal/store"
)

// SettingReferenceYear setting consulted when a run has no reference year
const SettingReferenceYear = "reference_year"

// CodeStoreRejected row error code of a record the database refused
const CodeStoreRejected = "store_rejected"

// Coordinator import coordinator: parse, resolve references, persist
type Coordinator struct {
	store    *store.Store
	pipeline *parser.Pipeline
	logger   *log.Logger
}

// NewCoordinator creates an import coordinator; a nil logger discards output
func NewCoordinator(st *store.Store, pipeline *parser.Pipeline, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Coordinator{store: st, pipeline: pipeline, logger: logger}
}

// ImportOptions import options
type ImportOptions struct {
	FilePath      string
	Filename      string // display name, defaults to the base of FilePath
	Kind          model.ImportKind
	Sheet         string
	Year          int
	Table         string // target of generic imports, generic_rows when empty
	Generic       parser.GenericOptions
	DryRun        bool // parse and resolve only
	CreateMissing bool // create drivers and vehicles that are not in the database yet
}

// ProgressEvent progress event
type ProgressEvent struct {
	Type      string      `json:"type"` // start/info/sheet_done/warning/done/error
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// SheetResult outcome of one sheet
type SheetResult struct {
	SheetName    string           `json:"sheetName"`
	Kind         model.ImportKind `json:"kind"`
	Status       string           `json:"status"` // imported/skipped/error
	Confidence   float64          `json:"confidence"`
	ImportedRows int              `json:"importedRows"`
	ErrorRows    int              `json:"errorRows"`
	Degraded     bool             `json:"degraded"`
	Error        string           `json:"error,omitempty"`
}

// Report summary of one run
type Report struct {
	RunID          string             `json:"runId"`
	ImportLogID    int64              `json:"importLogId,omitempty"`
	Filename       string             `json:"filename"`
	Kind           model.ImportKind   `json:"kind"`
	Table          string             `json:"table"`
	Status         string             `json:"status"`
	DryRun         bool               `json:"dryRun"`
	TotalSheets    int                `json:"totalSheets"`
	ImportedSheets int                `json:"importedSheets"`
	SkippedSheets  int                `json:"skippedSheets"`
	TotalRows      int                `json:"totalRows"`
	ImportedRows   int                `json:"importedRows"`
	ErrorRows      int                `json:"errorRows"`
	Created        map[string]int     `json:"created,omitempty"` // entities created by CreateMissing
	Sheets         []SheetResult      `json:"sheets"`
	Errors         []model.RowError   `json:"errors"`
	Diagnostics    []model.Diagnostic `json:"diagnostics,omitempty"`
	Degraded       bool               `json:"degraded"`
	Duration       time.Duration      `json:"duration"`
}

// Import runs an import in the background and streams its progress; the
// channel is closed after the done or error event
func (c *Coordinator) Import(opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		report, err := c.run(context.Background(), opts, progressChan)
		if err != nil {
			c.sendFinal(progressChan, ProgressEvent{
				Type:      "error",
				Message:   err.Error(),
				Data:      report,
				Timestamp: time.Now(),
			})
			return
		}
		c.sendFinal(progressChan, ProgressEvent{
			Type:      "done",
			Message:   fmt.Sprintf("import finished: %d rows imported, %d rejected", report.ImportedRows, report.ErrorRows),
			Data:      report,
			Timestamp: time.Now(),
		})
	}()

	return progressChan
}

// Run imports synchronously
func (c *Coordinator) Run(ctx context.Context, opts ImportOptions) (*Report, error) {
	return c.run(ctx, opts, nil)
}

// importContext state of one run
type importContext struct {
	ctx      context.Context
	opts     ImportOptions
	report   *Report
	progress chan ProgressEvent
	refs     map[string]*int64 // "table\x00key" -> id, nil when absent
}

func (c *Coordinator) run(ctx context.Context, opts ImportOptions, progress chan ProgressEvent) (*Report, error) {
	startTime := time.Now()
	if opts.Filename == "" {
		opts.Filename = filepath.Base(opts.FilePath)
	}
	if opts.Kind == "" {
		opts.Kind = model.KindAuto
	}
	report := &Report{
		RunID:    uuid.NewString(),
		Filename: opts.Filename,
		Kind:     opts.Kind,
		DryRun:   opts.DryRun,
		Status:   model.ImportStatusProcessing,
		Sheets:   []SheetResult{},
		Errors:   []model.RowError{},
	}
	ic := &importContext{ctx: ctx, opts: opts, report: report, progress: progress, refs: map[string]*int64{}}

	c.sendProgress(progress, ProgressEvent{
		Type:      "start",
		Message:   "import started",
		Data:      map[string]string{"filename": opts.Filename, "run_id": report.RunID},
		Timestamp: time.Now(),
	})

	wb, err := parser.OpenWorkbook(opts.FilePath)
	if err != nil {
		report.Status = model.ImportStatusFailed
		return report, err
	}
	defer wb.Close()
	report.TotalSheets = len(wb.SheetNames())

	c.sendProgress(progress, ProgressEvent{
		Type:      "info",
		Message:   fmt.Sprintf("found %d sheets", report.TotalSheets),
		Data:      map[string]interface{}{"total_sheets": report.TotalSheets},
		Timestamp: time.Now(),
	})

	if !opts.DryRun {
		if err := c.openLog(ic); err != nil {
			report.Status = model.ImportStatusFailed
			return report, err
		}
	}

	result, err := c.pipeline.ParseWorkbook(ctx, wb, opts.Kind, parser.Options{
		Sheet:   opts.Sheet,
		Year:    c.referenceYear(ctx, opts.Year),
		Generic: opts.Generic,
	})
	if err != nil {
		return report, c.fail(ic, err)
	}
	report.Kind = result.Kind
	report.Diagnostics = result.Diagnostics
	report.Degraded = result.Degraded
	report.Errors = append(report.Errors, result.Errors...)

	table, err := targetTable(result.Kind, opts.Table)
	if err != nil {
		return report, c.fail(ic, err)
	}
	report.Table = table

	records, sheets := c.prepareRecords(ic, result)
	for _, d := range result.Diagnostics {
		if d.Degraded {
			c.sendProgress(progress, ProgressEvent{
				Type:      "warning",
				Message:   fmt.Sprintf("sheet %q: %s", d.Sheet, d.Message),
				Data:      d,
				Timestamp: time.Now(),
			})
		}
	}

	rejected := map[string]int{}
	if !opts.DryRun {
		if err := c.resolveRefs(ic, table, records); err != nil {
			return report, c.fail(ic, err)
		}
		batch, err := c.store.InsertBatch(ctx, table, records)
		if err != nil {
			return report, c.fail(ic, fmt.Errorf("failed to store records: %w", err))
		}
		for _, f := range batch.Failures {
			sheet := sheets[f.Index]
			rejected[sheet]++
			report.Errors = append(report.Errors, model.RowError{
				Sheet:  sheet,
				Row:    result.SourceRows[f.Index],
				Code:   CodeStoreRejected,
				Reason: f.Err,
			})
		}
	}

	for _, sr := range result.Reports {
		c.recordSheetResult(ic, sr, rejected[sr.Sheet])
	}
	report.SkippedSheets = report.TotalSheets - report.ImportedSheets

	report.Status = model.ImportStatusCompleted
	if report.ErrorRows > 0 || hasSheetErrors(report.Sheets) {
		report.Status = model.ImportStatusPartial
	}
	report.Duration = time.Since(startTime)
	if err := c.closeLog(ic, ""); err != nil {
		return report, err
	}
	c.logger.Printf("import %s: %s, %d rows imported, %d rejected", report.RunID, report.Status, report.ImportedRows, report.ErrorRows)
	return report, nil
}

// referenceYear explicit year, else the stored setting, else 0 (current year)
func (c *Coordinator) referenceYear(ctx context.Context, year int) int {
	if year > 0 {
		return year
	}
	y, err := c.store.GetSettingInt(ctx, SettingReferenceYear)
	if err != nil {
		return 0
	}
	return y
}

// targetTable table receiving records of a kind
func targetTable(kind model.ImportKind, table string) (string, error) {
	switch kind {
	case model.KindTimeAttendance:
		return "time_records", nil
	case model.KindStopEvents:
		return "alerts", nil
	case model.KindVehicleMovements:
		return "vehicle_movements", nil
	}
	if table == "" {
		return "generic_rows", nil
	}
	if !store.ImportTable(table) {
		return "", fmt.Errorf("%w: table %q", store.ErrUnknownEntity, table)
	}
	return table, nil
}

// prepareRecords adds provenance fields; generic_rows stores the record as JSON.
// The second slice holds the sheet of each record.
func (c *Coordinator) prepareRecords(ic *importContext, result *model.ImportResult) ([]model.Record, []string) {
	sheets := recordSheets(result)
	out := make([]model.Record, 0, len(result.Records))
	for i, rec := range result.Records {
		row := model.Record{}
		if ic.report.Table == "generic_rows" {
			data, err := json.Marshal(rec)
			if err != nil {
				data = []byte("{}")
			}
			row["dataJson"] = string(data)
		} else {
			for k, v := range rec {
				row[k] = v
			}
		}
		if ic.report.ImportLogID > 0 {
			row["importLogId"] = ic.report.ImportLogID
		}
		row["sourceFile"] = ic.opts.Filename
		row["sourceSheet"] = sheets[i]
		row["sourceRow"] = result.SourceRows[i]
		out = append(out, row)
	}
	return out, sheets
}

// recordSheets sheet of each record; records are appended sheet by sheet
func recordSheets(result *model.ImportResult) []string {
	out := make([]string, 0, len(result.Records))
	for _, sr := range result.Reports {
		for i := 0; i < sr.Imported; i++ {
			out = append(out, sr.Sheet)
		}
	}
	for len(out) < len(result.Records) {
		out = append(out, "")
	}
	return out
}

// resolveRefs sets driverId / vehicleId from person names and plates
func (c *Coordinator) resolveRefs(ic *importContext, table string, records []model.Record) error {
	var entity, keyField, idField string
	switch table {
	case "time_records":
		entity, keyField, idField = "drivers", "personName", "driverId"
	case "alerts", "vehicle_movements":
		entity, keyField, idField = "vehicles", "plateNumber", "vehicleId"
	default:
		return nil
	}

	for _, rec := range records {
		key := rec.String(keyField)
		if key == "" {
			continue
		}
		id, err := c.lookup(ic, entity, key)
		if err != nil {
			return err
		}
		if id != nil {
			rec[idField] = *id
		}
	}
	return nil
}

func (c *Coordinator) lookup(ic *importContext, entity, key string) (*int64, error) {
	cacheKey := entity + "\x00" + key
	if id, ok := ic.refs[cacheKey]; ok {
		return id, nil
	}

	var id *int64
	if ic.opts.CreateMissing {
		newID, created, err := c.store.EnsureID(ic.ctx, entity, key)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s %q: %w", entity, key, err)
		}
		if created {
			if ic.report.Created == nil {
				ic.report.Created = map[string]int{}
			}
			ic.report.Created[entity]++
			c.sendProgress(ic.progress, ProgressEvent{
				Type:      "info",
				Message:   fmt.Sprintf("created %s %q", entity, key),
				Timestamp: time.Now(),
			})
		}
		id = &newID
	} else {
		found, err := c.store.LookupID(ic.ctx, entity, key)
		if err != nil {
			return nil, err
		}
		id = found
	}
	ic.refs[cacheKey] = id
	return id, nil
}

// recordSheetResult aggregates one sheet and stores its metadata
func (c *Coordinator) recordSheetResult(ic *importContext, sr model.SheetReport, rejected int) {
	result := SheetResult{
		SheetName:    sr.Sheet,
		Kind:         sr.Kind,
		Status:       "imported",
		Confidence:   sr.Confidence,
		ImportedRows: sr.Imported - rejected,
		ErrorRows:    sr.Errors + rejected,
		Degraded:     sr.Degraded,
		Error:        sr.Err,
	}
	if sr.Err != "" {
		result.Status = "error"
	}
	ic.report.Sheets = append(ic.report.Sheets, result)

	if result.Status == "imported" {
		ic.report.ImportedSheets++
		ic.report.ImportedRows += result.ImportedRows
	}
	ic.report.ErrorRows += result.ErrorRows
	ic.report.TotalRows += result.ImportedRows + result.ErrorRows

	eventType := "sheet_done"
	message := fmt.Sprintf("sheet %q: %d rows imported, %d rejected", sr.Sheet, result.ImportedRows, result.ErrorRows)
	if sr.Err != "" {
		eventType = "warning"
		message = fmt.Sprintf("sheet %q skipped: %s", sr.Sheet, sr.Err)
	}
	c.sendProgress(ic.progress, ProgressEvent{
		Type:      eventType,
		Message:   message,
		Data:      result,
		Timestamp: time.Now(),
	})

	if ic.report.ImportLogID == 0 {
		return
	}
	err := c.store.InsertSheetMeta(ic.ctx, model.SheetMeta{
		ImportLogID:       ic.report.ImportLogID,
		SheetName:         sr.Sheet,
		ImportKind:        string(sr.Kind),
		Confidence:        sr.Confidence,
		ImportedRows:      result.ImportedRows,
		ErrorRows:         result.ErrorRows,
		ColumnMappingJSON: store.BuildColumnMappingJSON(sr.Columns),
		Degraded:          sr.Degraded,
		Status:            result.Status,
		ErrorMessage:      sr.Err,
		SourceFile:        ic.opts.Filename,
	})
	if err != nil {
		c.logger.Printf("import %s: %v", ic.report.RunID, err)
	}
}

func hasSheetErrors(sheets []SheetResult) bool {
	for _, s := range sheets {
		if s.Status == "error" {
			return true
		}
	}
	return false
}

// openLog creates the import log of the run
func (c *Coordinator) openLog(ic *importContext) error {
	entry := model.ImportLog{
		RunID:      ic.report.RunID,
		Filename:   ic.opts.Filename,
		FilePath:   ic.opts.FilePath,
		ImportKind: string(ic.opts.Kind),
	}
	if info, err := os.Stat(ic.opts.FilePath); err == nil {
		entry.FileSize = info.Size()
	}
	if hash, err := fileHash(ic.opts.FilePath); err == nil {
		entry.FileHash = hash
	}
	id, err := c.store.CreateImportLog(ic.ctx, entry)
	if err != nil {
		return err
	}
	ic.report.ImportLogID = id
	return nil
}

// closeLog stores the run totals
func (c *Coordinator) closeLog(ic *importContext, errMessage string) error {
	if ic.report.ImportLogID == 0 {
		return nil
	}
	r := ic.report
	return c.store.FinishImportLog(context.WithoutCancel(ic.ctx), model.ImportLog{
		ID:             r.ImportLogID,
		ImportKind:     string(r.Kind),
		Status:         r.Status,
		TotalSheets:    r.TotalSheets,
		ImportedSheets: r.ImportedSheets,
		SkippedSheets:  r.SkippedSheets,
		TotalRows:      r.TotalRows,
		ImportedRows:   r.ImportedRows,
		ErrorRows:      r.ErrorRows,
		ErrorMessage:   errMessage,
	})
}

// fail marks the run failed and returns err
func (c *Coordinator) fail(ic *importContext, err error) error {
	ic.report.Status = model.ImportStatusFailed
	ic.report.SkippedSheets = ic.report.TotalSheets - ic.report.ImportedSheets
	if logErr := c.closeLog(ic, err.Error()); logErr != nil {
		err = errors.Join(err, logErr)
	}
	c.logger.Printf("import %s failed: %v", ic.report.RunID, err)
	return err
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sendProgress sends a progress event, dropping it when the channel is full
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- event:
	default:
	}
}

// sendFinal the done/error event is never dropped
func (c *Coordinator) sendFinal(ch chan ProgressEvent, event ProgressEvent) {
	ch <- event
}
