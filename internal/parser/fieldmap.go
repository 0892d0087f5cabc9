package parser

import (
	"strings"
)

// FieldRule how a logical field is recognised in a header row
type FieldRule struct {
	Field    string
	Patterns []string // any folded pattern contained in the label
	Exclude  []string // labels containing any of these are rejected
	Exact    bool     // the label must equal a pattern
}

func (r FieldRule) matches(folded string) bool {
	if folded == "" {
		return false
	}
	for _, ex := range r.Exclude {
		if labelContains(folded, NormalizeLabel(ex)) {
			return false
		}
	}
	for _, p := range r.Patterns {
		p = NormalizeLabel(p)
		if r.Exact {
			if trimLabel(folded) == p {
				return true
			}
			continue
		}
		if labelContains(folded, p) {
			return true
		}
	}
	return false
}

// Tokens folded patterns of all rules, used as header tokens
func Tokens(rules []FieldRule) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range rules {
		for _, p := range r.Patterns {
			p = NormalizeLabel(p)
			if p != "" && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// MapColumns resolves rules against a single header row. Rules are applied in
// order and a column is claimed by at most one field.
func MapColumns(g *Grid, headerRow int, rules []FieldRule, strategy string) ColumnMap {
	refs := mapFields(g, headerRow, 1, rules, strategy, nil)
	return NewColumnMap(headerRow, headerRow+1, refs)
}

// mapFields resolves rules against rows [headerRow, headerRow+depth); claimed columns are skipped
func mapFields(g *Grid, headerRow, depth int, rules []FieldRule, strategy string, claimed map[int]bool) map[string]ColumnRef {
	if claimed == nil {
		claimed = make(map[int]bool)
	}
	refs := make(map[string]ColumnRef)
	for _, rule := range rules {
		if _, done := refs[rule.Field]; done {
			continue
		}
		if ref, ok := findColumn(g, headerRow, depth, rule, claimed); ok {
			ref.Strategy = strategy
			refs[rule.Field] = ref
			claimed[ref.Col] = true
		}
	}
	return refs
}

func findColumn(g *Grid, headerRow, depth int, rule FieldRule, claimed map[int]bool) (ColumnRef, bool) {
	for off := 0; off < depth; off++ {
		row := headerRow + off
		labels := g.FoldedRow(row)
		for col, label := range labels {
			if claimed[col] || !rule.matches(label) {
				continue
			}
			return ColumnRef{Col: col, RowOffset: off, Label: g.Text(row, col)}, true
		}
	}
	return ColumnRef{}, false
}

// labelContains substring match that also ignores spacing differences ("be / ki" vs "be/ki")
func labelContains(label, pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.Contains(label, pattern) {
		return true
	}
	return strings.Contains(compact(label), compact(pattern))
}

func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// trimLabel strips surrounding punctuation from a folded label ("(be)" -> "be")
func trimLabel(s string) string {
	return strings.Trim(s, " :.()[]-*")
}

// columnIndexes field -> column, for reports
func columnIndexes(m ColumnMap) map[string]int {
	out := make(map[string]int)
	for f, ref := range m.Fields() {
		out[f] = ref.Col
	}
	return out
}
