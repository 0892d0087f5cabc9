package parser

import (
	"errors"
	"fmt"
)

var errNoCandidateRow = errors.New("no non-empty row in scan window")

// Header location strategies
const (
	StrategyTokenMatch = "token-match"
	StrategyDensestRow = "densest-row"
	StrategyExplicit   = "explicit"
)

// HeaderSpec what a header row looks like and where to search for it
type HeaderSpec struct {
	Tokens     []string // matched case and accent insensitively as substrings
	MinMatches int      // default 3
	From       int      // first row scanned
	Window     int      // rows scanned; default 30
}

// HeaderMatch located header row
type HeaderMatch struct {
	Row      int
	Matches  int
	Strategy string
	Degraded bool
}

func (s HeaderSpec) bounds(g *Grid) (int, int) {
	from := s.From
	if from < 0 {
		from = 0
	}
	window := s.Window
	if window <= 0 {
		window = 30
	}
	to := from + window
	if to > g.Height() {
		to = g.Height()
	}
	return from, to
}

// LocateHeader finds the first row matching at least MinMatches tokens; when no row
// qualifies, the densest row of the window is used and the match is marked degraded
func LocateHeader(g *Grid, spec HeaderSpec) (HeaderMatch, error) {
	minMatches := spec.MinMatches
	if minMatches <= 0 {
		minMatches = 3
	}
	tokens := foldAll(spec.Tokens)
	from, to := spec.bounds(g)

	attempt := FirstOf(
		Strategy[HeaderMatch]{Name: StrategyTokenMatch, Try: func() (HeaderMatch, bool) {
			if len(tokens) == 0 {
				return HeaderMatch{}, false
			}
			for r := from; r < to; r++ {
				if n := RowTokenMatches(g, r, tokens); n >= minMatches {
					return HeaderMatch{Row: r, Matches: n}, true
				}
			}
			return HeaderMatch{}, false
		}},
		Strategy[HeaderMatch]{Name: StrategyDensestRow, Degraded: true, Try: func() (HeaderMatch, bool) {
			row := densestRow(g, from, to)
			if row < 0 {
				return HeaderMatch{}, false
			}
			return HeaderMatch{Row: row, Matches: RowTokenMatches(g, row, tokens)}, true
		}},
	)
	if !attempt.OK {
		return HeaderMatch{}, fmt.Errorf("rows %d-%d: %w", from, to, errNoCandidateRow)
	}
	m := attempt.Value
	m.Strategy = attempt.Strategy
	m.Degraded = attempt.Degraded
	return m, nil
}

// RowTokenMatches number of distinct non-empty cells of a row containing at least one folded token
func RowTokenMatches(g *Grid, row int, foldedTokens []string) int {
	n := 0
	for _, text := range g.DistinctNonEmpty(row) {
		label := NormalizeLabel(text)
		for _, tok := range foldedTokens {
			if labelContains(label, tok) {
				n++
				break
			}
		}
	}
	return n
}

// densestRow row with most distinct non-empty cells in [from, to); -1 if all are blank
func densestRow(g *Grid, from, to int) int {
	best, bestN := -1, 0
	for r := from; r < to; r++ {
		if n := len(g.DistinctNonEmpty(r)); n > bestN {
			best, bestN = r, n
		}
	}
	return best
}
