package parser

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/schollz/closestmatch"

	"drivers/internal/model"
)

// GenericOptions options of the generic tabular import
type GenericOptions struct {
	HeaderRow int      // 1-based header row; 0 locates it
	Targets   []string // output fields; header labels are matched exactly, then fuzzily
	Required  []string // fields a row must carry
}

// genericColumn output field bound to a column
type genericColumn struct {
	field string
	col   int
	fuzzy bool
}

func extractGeneric(sc *sheetContext) ([]RowOutcome, error) {
	g, opts := sc.grid, sc.opts.Generic

	attempt := FirstOf(
		Strategy[HeaderMatch]{Name: StrategyExplicit, Try: func() (HeaderMatch, bool) {
			if opts.HeaderRow <= 0 || opts.HeaderRow > g.Height() {
				return HeaderMatch{}, false
			}
			return HeaderMatch{Row: opts.HeaderRow - 1}, true
		}},
		Strategy[HeaderMatch]{Name: "locate", Try: func() (HeaderMatch, bool) {
			hm, err := LocateHeader(g, sc.headerSpec(humanizeAll(opts.Targets)))
			return hm, err == nil
		}},
	)
	if !attempt.OK {
		return nil, &NoHeaderFoundError{Sheet: sc.sheet, Kind: model.KindGeneric}
	}
	header := attempt.Value
	strategy := attempt.Strategy
	if header.Strategy != "" {
		strategy = header.Strategy
	}
	if header.Degraded && len(opts.Targets) > 0 {
		sc.diagnose("", StrategyDensestRow, true, "header row %d picked by cell count", rowNo(header.Row))
	}

	columns := genericColumns(g.RowTexts(header.Row), opts.Targets)
	if len(columns) == 0 {
		return nil, &NoHeaderFoundError{Sheet: sc.sheet, Kind: model.KindGeneric, Missing: opts.Targets}
	}
	refs := make(map[string]ColumnRef, len(columns))
	fuzzy := 0
	for _, c := range columns {
		s := strategy
		if c.fuzzy {
			s = "closest-match"
			fuzzy++
		}
		refs[c.field] = ColumnRef{Col: c.col, Label: g.Text(header.Row, c.col), Strategy: s}
	}
	if fuzzy > 0 {
		sc.diagnose("", "closest-match", false, "%d columns mapped by closest label", fuzzy)
	}
	cm := NewColumnMap(header.Row, header.Row+1, refs)
	if missing := missingFields(cm, opts.Required...); len(missing) > 0 {
		return nil, &NoHeaderFoundError{Sheet: sc.sheet, Kind: model.KindGeneric, Missing: missing}
	}
	sc.useColumns(cm)

	var outcomes []RowOutcome
	for r := cm.DataStart; r < g.Height(); r++ {
		if sc.nonDataRow(r) {
			outcomes = append(outcomes, ignored(rowNo(r)))
			continue
		}
		outcomes = append(outcomes, genericRow(g, r, columns, opts.Required))
	}
	return outcomes, nil
}

func genericRow(g *Grid, r int, columns []genericColumn, required []string) RowOutcome {
	rec := model.Record{}
	for _, c := range columns {
		if v, ok := typedValue(g.Cell(r, c.col)); ok {
			rec[c.field] = v
		}
	}
	for _, f := range required {
		if _, ok := rec[f]; !ok {
			return missingField(rowNo(r), f)
		}
	}
	return emitted(rowNo(r), rec)
}

// genericColumns binds header labels to fields. Without targets every label becomes a
// camelCase field; with targets only matched labels are kept.
func genericColumns(labels []string, targets []string) []genericColumn {
	var out []genericColumn
	if len(targets) == 0 {
		seen := make(map[string]int)
		prev := ""
		for col, label := range labels {
			if label == "" || label == prev {
				prev = label
				continue
			}
			prev = label
			field := Slug(label)
			if field == "" {
				continue
			}
			seen[field]++
			if n := seen[field]; n > 1 {
				field += strconv.Itoa(n)
			}
			out = append(out, genericColumn{field: field, col: col})
		}
		return out
	}

	byKey := make(map[string]string, len(targets))
	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		k := strings.ToLower(Slug(humanize(t)))
		byKey[k] = t
		keys = append(keys, k)
	}
	cm := closestmatch.New(keys, []int{2, 3})
	claimed := make(map[string]bool)

	bind := func(fuzzy bool) {
		prev := ""
		for col, label := range labels {
			if label == "" || label == prev {
				prev = label
				continue
			}
			prev = label
			k := strings.ToLower(Slug(label))
			if k == "" || columnBound(out, col) {
				continue
			}
			match := k
			if fuzzy {
				match = cm.Closest(k)
				if !closeEnough(k, match) {
					continue
				}
			}
			target, ok := byKey[match]
			if !ok || claimed[target] {
				continue
			}
			claimed[target] = true
			out = append(out, genericColumn{field: target, col: col, fuzzy: fuzzy})
		}
	}
	bind(false)
	bind(true)
	return out
}

func columnBound(cols []genericColumn, col int) bool {
	for _, c := range cols {
		if c.col == col {
			return true
		}
	}
	return false
}

// closeEnough accepts a closest match sharing at least half of its letter pairs with the label
func closeEnough(a, b string) bool {
	if b == "" {
		return false
	}
	pa, pb := bigrams(a), bigrams(b)
	if len(pa) == 0 || len(pb) == 0 {
		return false
	}
	shared := 0
	for p, n := range pa {
		shared += min(n, pb[p])
	}
	total := 0
	for _, n := range pa {
		total += n
	}
	for _, n := range pb {
		total += n
	}
	return float64(2*shared)/float64(total) >= 0.5
}

func bigrams(s string) map[string]int {
	rs := []rune(s)
	out := make(map[string]int)
	for i := 0; i+1 < len(rs); i++ {
		out[string(rs[i:i+2])]++
	}
	return out
}

// Slug camelCase field name of a label ("Érkezés időpont" -> "erkezesIdopont")
func Slug(label string) string {
	words := strings.FieldsFunc(NormalizeLabel(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(w)
			continue
		}
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
	}
	return b.String()
}

// humanize splits camelCase and snake_case names into words ("plateNumber" -> "plate number")
func humanize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && i > 0:
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return NormalizeLabel(b.String())
}

func humanizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, humanize(n))
	}
	return out
}

// typedValue plain value of a cell: dates as YYYY-MM-DD (with time when set), integral numbers as int
func typedValue(c Cell) (any, bool) {
	switch c.Kind {
	case KindEmpty:
		return nil, false
	case KindDate:
		t := c.Time
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02"), true
		}
		return t.Format("2006-01-02 15:04:05"), true
	case KindNumber:
		if c.Number == math.Trunc(c.Number) && math.Abs(c.Number) < 1e15 {
			return int64(c.Number), true
		}
		return c.Number, true
	case KindBool:
		return c.Bool, true
	}
	s := c.String()
	if s == "" {
		return nil, false
	}
	return s, true
}
