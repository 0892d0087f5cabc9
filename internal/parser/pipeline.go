package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"drivers/internal/model"
)

// Options per-run parse options
type Options struct {
	Sheet   string // only this sheet; empty means every sheet
	Year    int    // reference year for partial dates when the sheet carries none
	Generic GenericOptions
}

// Pipeline turns workbooks into validated records. It only holds immutable
// configuration, so one Pipeline can serve concurrent runs.
type Pipeline struct {
	logger     *log.Logger
	profile    TemplateProfile
	validate   *validator.Validate
	recognizer *Recognizer
}

// New creates a pipeline; a nil logger discards output
func New(logger *log.Logger, profile TemplateProfile) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	profile = profile.WithDefaults()
	return &Pipeline{
		logger:     logger,
		profile:    profile,
		validate:   newRowValidator(),
		recognizer: NewRecognizer(profile),
	}
}

// Profile returns the effective template profile
func (p *Pipeline) Profile() TemplateProfile {
	return p.profile
}

// ParseFile opens a workbook and parses it
func (p *Pipeline) ParseFile(ctx context.Context, path string, kind model.ImportKind, opts Options) (*model.ImportResult, error) {
	wb, err := OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return p.ParseWorkbook(ctx, wb, kind, opts)
}

// ParseWorkbook parses opts.Sheet or every sheet. Sheets failing structurally are
// skipped with a diagnostic; when every sheet fails the first error is returned.
func (p *Pipeline) ParseWorkbook(ctx context.Context, wb Workbook, kind model.ImportKind, opts Options) (*model.ImportResult, error) {
	sheets := wb.SheetNames()
	if opts.Sheet != "" {
		if !containsString(sheets, opts.Sheet) {
			return nil, &FileReadError{Sheet: opts.Sheet, Err: errors.New("sheet not found")}
		}
		sheets = []string{opts.Sheet}
	}
	if len(sheets) == 0 {
		return nil, &FileReadError{Err: errors.New("workbook has no sheets")}
	}

	result := &model.ImportResult{Kind: kind, Records: []model.Record{}, Errors: []model.RowError{}}
	var firstErr error
	parsed := 0
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := Resolve(wb, sheet)
		if err != nil {
			return nil, &FileReadError{Sheet: sheet, Err: err}
		}
		res, err := p.ParseGrid(g, sheet, kind, opts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			p.logger.Printf("skip sheet %q: %v", sheet, err)
			result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
				Sheet:    sheet,
				Strategy: "skip-sheet",
				Message:  err.Error(),
			})
			result.Reports = append(result.Reports, model.SheetReport{Sheet: sheet, Kind: kind, HeaderRow: -1, Err: err.Error()})
			continue
		}
		if parsed > 0 && res.Kind != result.Kind {
			// one result carries one kind of record
			p.logger.Printf("skip sheet %q: %s records in a %s import", sheet, res.Kind, result.Kind)
			result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
				Sheet:    sheet,
				Strategy: "skip-sheet",
				Message:  fmt.Sprintf("sheet holds %s records, import is %s", res.Kind, result.Kind),
			})
			continue
		}
		parsed++
		result.Kind = res.Kind
		result.Merge(res)
	}
	if parsed == 0 {
		return nil, firstErr
	}
	return result, nil
}

// ParseGrid parses one resolved sheet; kind auto is recognised first
func (p *Pipeline) ParseGrid(g *Grid, sheet string, kind model.ImportKind, opts Options) (*model.ImportResult, error) {
	confidence := 1.0
	if kind == model.KindAuto || kind == "" {
		rec := p.recognizer.Recognize(g, sheet)
		kind, confidence = rec.Kind, rec.Score
		p.logger.Printf("sheet %q recognised as %s (score %.2f)", sheet, kind, rec.Score)
	}

	sc := &sheetContext{
		grid:      g,
		sheet:     sheet,
		profile:   p.profile,
		validate:  p.validate,
		opts:      opts,
		headerRow: -1,
	}
	sc.year, sc.titleYear = sc.yearContext(0, min(p.profile.TitleRows, g.Height()))

	var (
		outcomes []RowOutcome
		err      error
	)
	switch kind {
	case model.KindTimeAttendance:
		outcomes, err = extractAttendance(sc)
	case model.KindStopEvents:
		outcomes, err = extractStops(sc)
	case model.KindVehicleMovements:
		outcomes, err = extractMovements(sc)
	case model.KindGeneric:
		outcomes, err = extractGeneric(sc)
	default:
		return nil, fmt.Errorf("unsupported import kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	res := collect(kind, sheet, outcomes)
	res.Diagnostics = sc.diags
	for _, d := range sc.diags {
		if d.Degraded {
			res.Degraded = true
			p.logger.Printf("sheet %q: degraded %s: %s", sheet, d.Strategy, d.Message)
		}
	}
	res.Reports = []model.SheetReport{{
		Sheet:      sheet,
		Kind:       kind,
		Confidence: confidence,
		HeaderRow:  sc.headerRow,
		Columns:    sc.columns,
		Imported:   res.SuccessCount,
		Errors:     res.ErrorCount,
		Degraded:   res.Degraded,
	}}
	return res, nil
}

// Recognize scores a sheet against the known import kinds
func (p *Pipeline) Recognize(g *Grid, sheet string) model.SheetRecognition {
	return p.recognizer.Recognize(g, sheet)
}

// sheetContext per-sheet parse state, owned by a single ParseGrid call
type sheetContext struct {
	grid  *Grid
	sheet string
	year  int
	// titleYear the year came from the title rows
	titleYear bool
	profile   TemplateProfile
	validate  *validator.Validate
	opts      Options

	diags     []model.Diagnostic
	headerRow int
	columns   map[string]int
}

func (sc *sheetContext) diagnose(section, strategy string, degraded bool, format string, args ...any) {
	sc.diags = append(sc.diags, model.Diagnostic{
		Sheet:    sc.sheet,
		Section:  section,
		Strategy: strategy,
		Degraded: degraded,
		Message:  fmt.Sprintf(format, args...),
	})
}

// useColumns records the column map reported for the sheet (first one wins)
func (sc *sheetContext) useColumns(cm ColumnMap) {
	if sc.columns != nil {
		return
	}
	sc.headerRow = cm.HeaderRow
	sc.columns = columnIndexes(cm)
}

// yearContext year found in rows [from, to), else the sheet name, else Options.Year, else the clock.
// The flag reports a year taken from the rows.
func (sc *sheetContext) yearContext(from, to int) (int, bool) {
	if y, ok := yearInRows(sc.grid, from, to); ok {
		return y, true
	}
	if y, ok := ExtractYear(sc.sheet); ok {
		return y, false
	}
	if sc.opts.Year > 0 {
		return sc.opts.Year, false
	}
	return time.Now().Year(), false
}

// rowNo 1-based sheet row
func rowNo(r int) int {
	return r + 1
}

// nonDataRow blank, terminator and signature rows are skipped without an error
func (sc *sheetContext) nonDataRow(r int) bool {
	if sc.grid.IsBlankRow(r) {
		return true
	}
	first := firstNonEmpty(sc.grid.FoldedRow(r))
	return HasPrefixAny(first, foldAll(sc.profile.Terminators)) || HasPrefixAny(first, foldAll(sc.profile.SkipMarkers))
}

func (sc *sheetContext) headerSpec(tokens []string) HeaderSpec {
	return HeaderSpec{Tokens: tokens, MinMatches: sc.profile.MinMatches, Window: sc.profile.HeaderWindow}
}

// locate finds the header row and maps the rules onto it
func (sc *sheetContext) locate(kind model.ImportKind, rules []FieldRule) (ColumnMap, error) {
	hm, err := LocateHeader(sc.grid, sc.headerSpec(Tokens(rules)))
	if err != nil {
		return ColumnMap{}, &NoHeaderFoundError{Sheet: sc.sheet, Kind: kind}
	}
	if hm.Degraded {
		sc.diagnose("", hm.Strategy, true, "no row matched %d header tokens; using row %d", sc.profile.MinMatches, rowNo(hm.Row))
	}
	return MapColumns(sc.grid, hm.Row, rules, hm.Strategy), nil
}

func missingFields(cm ColumnMap, fields ...string) []string {
	var out []string
	for _, f := range fields {
		if !cm.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
