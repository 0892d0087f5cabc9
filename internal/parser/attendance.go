package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"drivers/internal/model"
)

// Check-in/out column strategies
const (
	StrategySubHeader      = "sub-header"
	StrategyPrimaryHeader  = "primary-header"
	StrategyTemplateOffset = "template-offset"
	StrategyDirect         = "direct"
	StrategySuffixScan     = "suffix-scan"
)

const fieldCheckInOut = "checkInOut"

var attendanceRules = []FieldRule{
	{Field: "date", Patterns: []string{"datum", "date"}},
	{Field: "date", Patterns: []string{"nap", "day"}, Exact: true},
	{Field: "plannedShift", Patterns: []string{"tervezett", "beosztott", "planned"}},
	{Field: "actualShift", Patterns: []string{"tenyleges", "actual", "valos"}},
	{Field: fieldCheckInOut, Patterns: []string{"be/ki", "erkezes/tavozas", "belepes/kilepes", "check-in/out", "check in/out", "in/out", "jelenlet"}},
	{Field: "checkIn", Patterns: []string{"erkezes", "belepes", "check-in", "check in", "munkaido kezdete", "kezdes"}, Exclude: []string{"/"}},
	{Field: "checkOut", Patterns: []string{"tavozas", "kilepes", "check-out", "check out", "munkaido vege", "befejezes"}, Exclude: []string{"/"}},
	{Field: "workedMinutes", Patterns: []string{"ledolgozott", "worked", "munkaora", "osszes ido", "hours"}},
}

// sub-header labels below a coarse check-in/out column (exact, folded)
var (
	checkInSubLabels  = []string{"be", "in", "erkezes", "belepes", "check-in", "kezdet"}
	checkOutSubLabels = []string{"ki", "out", "tavozas", "kilepes", "check-out", "veg"}
)

type direction int

const (
	dirNone direction = iota
	dirIn
	dirOut
)

// attendanceSection one section with its resolved columns
type attendanceSection struct {
	Section
	cm   ColumnMap
	year int
}

func extractAttendance(sc *sheetContext) ([]RowOutcome, error) {
	sections, err := FindSections(sc.grid, SectionSpec{
		StartMarkers:    sc.profile.SectionMarkers,
		Terminators:     sc.profile.Terminators,
		HeaderTokens:    Tokens(attendanceRules),
		MinMatches:      sc.profile.MinMatches,
		BlankRunToClose: sc.profile.BlankRunToClose,
	})
	if err != nil {
		var nsf *NoSectionsFoundError
		if errors.As(err, &nsf) {
			nsf.Sheet = sc.sheet
		}
		return nil, err
	}

	var (
		outcomes []RowOutcome
		located  int
	)
	for _, sec := range sections {
		sec.Meta = SectionMetadata(sc.grid, sec)
		label := sec.Meta.Name
		if label == "" {
			label = fmt.Sprintf("rows %d-%d", rowNo(sec.Start), sec.End)
		}
		if sec.HeaderRow < 0 {
			sc.diagnose(label, "skip-section", false, "section has no data header")
			continue
		}
		as := attendanceSection{Section: sec}
		as.cm = resolveAttendanceColumns(sc, sec, label)
		if !as.cm.Has("date") {
			sc.diagnose(label, "skip-section", false, "section header has no date column")
			continue
		}
		located++
		sc.useColumns(as.cm)
		as.year = sc.year
		if !sc.titleYear {
			if y, ok := SectionYear(sc.grid, sec); ok {
				as.year = y
			}
		}
		outcomes = append(outcomes, extractAttendanceRows(sc, as, label)...)
	}
	if located == 0 {
		return nil, &NoHeaderFoundError{Sheet: sc.sheet, Kind: model.KindTimeAttendance, Missing: []string{"date"}}
	}
	return outcomes, nil
}

// resolveAttendanceColumns maps the section header, resolving check-in/out through
// the sub-header, primary-header and template-offset strategies in that order
func resolveAttendanceColumns(sc *sheetContext, sec Section, label string) ColumnMap {
	g, h, p := sc.grid, sec.HeaderRow, sc.profile
	inOffset, outOffset := p.Offsets()
	refs := mapFields(g, h, 1, attendanceRules, StrategyTokenMatch, nil)
	coarse, hasCoarse := refs[fieldCheckInOut]
	delete(refs, fieldCheckInOut)

	type checkCols struct {
		in, out   *ColumnRef
		dataStart int
	}
	attempt := FirstOf(
		Strategy[checkCols]{Name: StrategySubHeader, Try: func() (checkCols, bool) {
			if !hasCoarse {
				return checkCols{}, false
			}
			last := coarse.Col
			for last+1 < g.Width() && g.Text(h, last+1) == g.Text(h, coarse.Col) {
				last++
			}
			if last < coarse.Col+outOffset {
				last = coarse.Col + outOffset
			}
			in, inOK := findSubLabel(g, h, p.SubHeaderDepth, coarse.Col, last, checkInSubLabels)
			out, outOK := findSubLabel(g, h, p.SubHeaderDepth, coarse.Col, last, checkOutSubLabels)
			if !inOK || !outOK {
				return checkCols{}, false
			}
			return checkCols{in: &in, out: &out, dataStart: h + max(in.RowOffset, out.RowOffset) + 1}, true
		}},
		Strategy[checkCols]{Name: StrategyPrimaryHeader, Try: func() (checkCols, bool) {
			in, inOK := refs["checkIn"]
			out, outOK := refs["checkOut"]
			if !inOK && !outOK {
				return checkCols{}, false
			}
			cols := checkCols{dataStart: skipLabelRows(g, h+1, sec.End)}
			if inOK {
				cols.in = &in
			}
			if outOK {
				cols.out = &out
			}
			return cols, true
		}},
		Strategy[checkCols]{Name: StrategyTemplateOffset, Degraded: true, Try: func() (checkCols, bool) {
			if !hasCoarse {
				return checkCols{}, false
			}
			in := ColumnRef{Col: coarse.Col + inOffset, Label: coarse.Label}
			out := ColumnRef{Col: coarse.Col + outOffset, Label: coarse.Label}
			return checkCols{in: &in, out: &out, dataStart: skipLabelRows(g, h+1, sec.End)}, true
		}},
	)

	dataStart := h + 1
	if attempt.OK {
		cols := attempt.Value
		dataStart = cols.dataStart
		if cols.in != nil {
			ref := *cols.in
			ref.Strategy = attempt.Strategy
			refs["checkIn"] = ref
		}
		if cols.out != nil {
			ref := *cols.out
			ref.Strategy = attempt.Strategy
			refs["checkOut"] = ref
		}
		if attempt.Degraded {
			sc.diagnose(label, attempt.Strategy, true, "check-in/out sub-header not found; using offsets %+d/%+d from column %d",
				inOffset, outOffset, coarse.Col+1)
		}
	} else {
		delete(refs, "checkIn")
		delete(refs, "checkOut")
		sc.diagnose(label, "none", true, "no check-in/out columns; values are taken from suffixed cells only")
	}
	return NewColumnMap(h, dataStart, refs)
}

// findSubLabel searches rows below the header for an exact label within [from, to]
func findSubLabel(g *Grid, header, depth, from, to int, labels []string) (ColumnRef, bool) {
	for off := 1; off <= depth; off++ {
		row := header + off
		for col := from; col <= to; col++ {
			text := g.Text(row, col)
			if text == "" {
				continue
			}
			folded := trimLabel(NormalizeLabel(text))
			for _, l := range labels {
				if folded == l {
					return ColumnRef{Col: col, RowOffset: off, Label: text}, true
				}
			}
		}
	}
	return ColumnRef{}, false
}

// skipLabelRows first row in [from, end) containing a digit; label-only rows under a header are not data
func skipLabelRows(g *Grid, from, end int) int {
	r := from
	for ; r < end; r++ {
		if g.IsBlankRow(r) {
			break
		}
		if strings.IndexFunc(strings.Join(g.RowTexts(r), " "), unicode.IsDigit) >= 0 {
			break
		}
	}
	return r
}

func extractAttendanceRows(sc *sheetContext, as attendanceSection, label string) []RowOutcome {
	var (
		outcomes []RowOutcome
		scanned  int
	)
	headerTokens := Tokens(attendanceRules)
	for r := as.cm.DataStart; r < as.End; r++ {
		if sc.nonDataRow(r) || RowTokenMatches(sc.grid, r, headerTokens) >= sc.profile.MinMatches {
			outcomes = append(outcomes, ignored(rowNo(r)))
			continue
		}
		out, usedScan := attendanceRow(sc, as, r)
		if usedScan {
			scanned++
		}
		outcomes = append(outcomes, out)
	}
	if scanned > 0 {
		sc.diagnose(label, StrategySuffixScan, true, "%d rows took check-in/out from neighbouring suffixed cells", scanned)
	}
	return outcomes
}

func attendanceRow(sc *sheetContext, as attendanceSection, r int) (RowOutcome, bool) {
	g, cm := sc.grid, as.cm
	row := rowNo(r)
	cell := func(field string) Cell {
		ref, ok := cm.Column(field)
		if !ok {
			return Cell{}
		}
		return g.Cell(r, ref.Col)
	}

	dateCell := cell("date")
	if dateCell.IsEmpty() {
		return missingField(row, "date"), false
	}
	date, err := NormalizeDateInYear(dateCell, as.year)
	if err != nil {
		return skipped(row, "date", model.CodeInvalidDate, fmt.Sprintf("date %q: %v", dateCell.String(), err)), false
	}

	inCell, outCell, usedScan := checkInOutCells(sc, cm, r)
	checkIn, err := clockValue(inCell, sc.profile)
	if err != nil {
		return skipped(row, "checkIn", model.CodeInvalidTime, fmt.Sprintf("checkIn %q: %v", inCell.String(), err)), usedScan
	}
	checkOut, err := clockValue(outCell, sc.profile)
	if err != nil {
		return skipped(row, "checkOut", model.CodeInvalidTime, fmt.Sprintf("checkOut %q: %v", outCell.String(), err)), usedScan
	}

	rec := model.TimeRecord{
		PersonName:   as.Meta.Name,
		JobTitle:     as.Meta.JobTitle,
		CostCenter:   as.Meta.CostCenter,
		Date:         date,
		PlannedShift: cell("plannedShift").String(),
		ActualShift:  cell("actualShift").String(),
		CheckIn:      checkIn,
		CheckOut:     checkOut,
	}

	if worked := cell("workedMinutes"); !worked.IsEmpty() {
		d, err := NormalizeDuration(worked)
		if err != nil {
			return skipped(row, "workedMinutes", model.CodeInvalidDuration, fmt.Sprintf("workedMinutes %q: %v", worked.String(), err)), usedScan
		}
		rec.WorkedMinutes, rec.WorkedDuration = &d.Minutes, d.Display
	} else if d, ok := clockSpan(checkIn, checkOut); ok {
		rec.WorkedMinutes, rec.WorkedDuration = &d.Minutes, d.Display
	}

	if reason := validateRow(sc.validate, rec); reason != nil {
		return RowOutcome{Row: row, Skip: reason}, usedScan
	}
	return emitted(row, rec.Record()), usedScan
}

// checkInOutCells reads both cells, swaps them when their suffix tokens say so and
// falls back to scanning neighbouring cells for suffixed values
func checkInOutCells(sc *sheetContext, cm ColumnMap, r int) (Cell, Cell, bool) {
	g, p := sc.grid, sc.profile
	inRef, inOK := cm.Column("checkIn")
	outRef, outOK := cm.Column("checkOut")

	var in, out Cell
	if inOK {
		in = g.Cell(r, inRef.Col)
	}
	if outOK {
		out = g.Cell(r, outRef.Col)
	}
	inDir, outDir := suffixDirection(in, p), suffixDirection(out, p)
	if inDir == dirOut || outDir == dirIn {
		if inDir != dirIn && outDir != dirOut {
			in, out = out, in
		}
	}

	usedScan := false
	resolve := func(current Cell, ref ColumnRef, ok bool, want direction) Cell {
		a := FirstOf(
			Strategy[Cell]{Name: StrategyDirect, Try: func() (Cell, bool) {
				return current, !current.IsEmpty()
			}},
			Strategy[Cell]{Name: StrategySuffixScan, Degraded: true, Try: func() (Cell, bool) {
				return scanSuffixed(g, r, ref.Col, ok, p, want)
			}},
		)
		if a.Strategy == StrategySuffixScan {
			usedScan = true
		}
		return a.Value
	}
	in = resolve(in, inRef, inOK, dirIn)
	out = resolve(out, outRef, outOK, dirOut)
	return in, out, usedScan
}

// scanSuffixed finds a cell carrying the wanted suffix token near col (or anywhere when the column is unmapped)
func scanSuffixed(g *Grid, r, col int, mapped bool, p TemplateProfile, want direction) (Cell, bool) {
	from, to := 0, g.Width()-1
	if mapped {
		from, to = col-p.SuffixScanRadius, col+p.SuffixScanRadius
	}
	for c := max(from, 0); c <= to; c++ {
		cell := g.Cell(r, c)
		if cell.Kind == KindString && suffixDirection(cell, p) == want {
			return cell, true
		}
	}
	return Cell{}, false
}

// splitSuffix separates a leading or trailing in/out token from a clock text
func splitSuffix(text string, p TemplateProfile) (string, direction) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("()[]", r)
	})
	if len(fields) < 2 {
		return text, dirNone
	}
	ins, outs := foldAll(p.CheckInSuffixes), foldAll(p.CheckOutSuffixes)
	dirOf := func(tok string) direction {
		tok = NormalizeLabel(tok)
		switch {
		case containsString(ins, tok):
			return dirIn
		case containsString(outs, tok):
			return dirOut
		}
		return dirNone
	}
	if d := dirOf(fields[len(fields)-1]); d != dirNone {
		return strings.Join(fields[:len(fields)-1], " "), d
	}
	if d := dirOf(fields[0]); d != dirNone {
		return strings.Join(fields[1:], " "), d
	}
	return text, dirNone
}

func suffixDirection(c Cell, p TemplateProfile) direction {
	if c.Kind != KindString {
		return dirNone
	}
	_, d := splitSuffix(c.String(), p)
	return d
}

// clockValue HH:mm:ss of a check-in/out cell with any suffix token removed; empty stays empty
func clockValue(c Cell, p TemplateProfile) (string, error) {
	if c.IsEmpty() {
		return "", nil
	}
	if c.Kind == KindString {
		text, _ := splitSuffix(c.String(), p)
		return NormalizeTime(text)
	}
	return NormalizeTime(c)
}

// clockSpan minutes between two HH:mm:ss clocks, crossing midnight when out < in
func clockSpan(in, out string) (Duration, bool) {
	if in == "" || out == "" {
		return Duration{}, false
	}
	a, errA := NormalizeDuration(in)
	b, errB := NormalizeDuration(out)
	if errA != nil || errB != nil {
		return Duration{}, false
	}
	diff := b.Minutes - a.Minutes
	if diff < 0 {
		diff += 24 * 60
	}
	return NewDuration(diff), true
}
