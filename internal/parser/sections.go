package parser

import (
	"strings"
)

// SectionSpec markers driving the section scan
type SectionSpec struct {
	StartMarkers    []string // a row with a cell starting with a marker opens a section
	Terminators     []string // a row whose first cell starts with a terminator closes it
	HeaderTokens    []string
	MinMatches      int
	BlankRunToClose int
}

type scanState int

const (
	seekingStart scanState = iota
	inSectionHeader
	inSectionData
	done
)

func (s scanState) String() string {
	switch s {
	case seekingStart:
		return "SEEKING_START"
	case inSectionHeader:
		return "IN_SECTION_HEADER"
	case inSectionData:
		return "IN_SECTION_DATA"
	}
	return "DONE"
}

// sectionScanner state machine over the rows of a grid
type sectionScanner struct {
	g           *Grid
	starts      []string
	terminators []string
	tokens      []string
	minMatches  int
	blankRun    int

	state    scanState
	current  Section
	blanks   int
	sections []Section
}

// FindSections splits a grid into per-person sections, half-open [Start, End).
// A section closes at, in order of precedence: a terminator row met before the
// next start marker, the next start marker, a run of blank rows, the end of the grid.
func FindSections(g *Grid, spec SectionSpec) ([]Section, error) {
	s := &sectionScanner{
		g:           g,
		starts:      foldAll(spec.StartMarkers),
		terminators: foldAll(spec.Terminators),
		tokens:      foldAll(spec.HeaderTokens),
		minMatches:  spec.MinMatches,
		blankRun:    spec.BlankRunToClose,
	}
	if s.minMatches <= 0 {
		s.minMatches = 3
	}
	if s.blankRun <= 0 {
		s.blankRun = 3
	}

	for r := 0; r < g.Height(); r++ {
		s.step(r)
	}
	s.finish()

	if len(s.sections) == 0 {
		return nil, &NoSectionsFoundError{Markers: spec.StartMarkers}
	}
	return s.sections, nil
}

func (s *sectionScanner) step(r int) {
	switch s.state {
	case seekingStart:
		if s.isStart(r) {
			s.open(r)
		}
	case inSectionHeader:
		switch {
		case s.isTerminator(r):
			s.close(r)
		case s.isStart(r):
			s.close(r)
			s.open(r)
		case len(s.tokens) > 0 && RowTokenMatches(s.g, r, s.tokens) >= s.minMatches:
			s.current.HeaderRow = r
			s.state = inSectionData
		}
	case inSectionData:
		switch {
		case s.isTerminator(r):
			s.close(r)
		case s.isStart(r):
			s.close(r)
			s.open(r)
		case s.g.IsBlankRow(r):
			s.blanks++
			if s.blanks >= s.blankRun {
				s.close(r - s.blanks + 1)
			}
		default:
			s.blanks = 0
		}
	}
}

func (s *sectionScanner) open(r int) {
	s.current = Section{Start: r, HeaderRow: -1}
	s.blanks = 0
	s.state = inSectionHeader
}

func (s *sectionScanner) close(end int) {
	s.current.End = end
	s.sections = append(s.sections, s.current)
	s.current = Section{}
	s.blanks = 0
	s.state = seekingStart
}

func (s *sectionScanner) finish() {
	if s.state == inSectionHeader || s.state == inSectionData {
		s.close(s.g.Height())
	}
	s.state = done
}

func (s *sectionScanner) isStart(r int) bool {
	for _, c := range s.g.FoldedRow(r) {
		if c != "" && HasPrefixAny(c, s.starts) {
			return true
		}
	}
	return false
}

func (s *sectionScanner) isTerminator(r int) bool {
	return HasPrefixAny(firstNonEmpty(s.g.FoldedRow(r)), s.terminators)
}

func firstNonEmpty(cells []string) string {
	for _, c := range cells {
		if c != "" {
			return c
		}
	}
	return ""
}

// metadata labels (folded prefixes)
var (
	nameLabels       = []string{"dolgozo neve", "munkavallalo neve", "employee name", "nev", "name"}
	jobTitleLabels   = []string{"munkakor", "beosztas", "job title", "position"}
	costCenterLabels = []string{"koltseghely", "kolts. hely", "cost center", "cost centre"}
)

// SectionMetadata reads name, job title and cost center from the rows above the
// section's header: "label: value" cells or a label followed by the next distinct cell
func SectionMetadata(g *Grid, sec Section) SectionMeta {
	end := sec.End
	if sec.HeaderRow >= 0 {
		end = sec.HeaderRow
	}
	var meta SectionMeta
	for r := sec.Start; r < end; r++ {
		cells := g.DistinctNonEmpty(r)
		for i, text := range cells {
			folded := NormalizeLabel(text)
			switch {
			case HasPrefixAny(folded, costCenterLabels):
				if meta.CostCenter == "" {
					meta.CostCenter = labelValue(cells, i)
				}
			case HasPrefixAny(folded, jobTitleLabels):
				if meta.JobTitle == "" {
					meta.JobTitle = labelValue(cells, i)
				}
			case HasPrefixAny(folded, nameLabels):
				if meta.Name == "" {
					meta.Name = labelValue(cells, i)
				}
			}
		}
	}
	return meta
}

// SectionYear year written in the section's title rows
func SectionYear(g *Grid, sec Section) (int, bool) {
	end := sec.End
	if sec.HeaderRow >= 0 {
		end = sec.HeaderRow
	}
	return yearInRows(g, sec.Start, end)
}

// yearInRows first year in rows [from, to). Metadata labels and their values
// (name, job title, cost center) are not consulted.
func yearInRows(g *Grid, from, to int) (int, bool) {
	for r := from; r < to; r++ {
		cells := g.DistinctNonEmpty(r)
		for i := 0; i < len(cells); i++ {
			if isMetadataLabel(NormalizeLabel(cells[i])) {
				if !strings.Contains(strings.TrimSuffix(strings.TrimSpace(cells[i]), ":"), ":") {
					i++
				}
				continue
			}
			if y, ok := ExtractYear(cells[i]); ok {
				return y, true
			}
		}
	}
	return 0, false
}

func isMetadataLabel(folded string) bool {
	return HasPrefixAny(folded, nameLabels) || HasPrefixAny(folded, jobTitleLabels) || HasPrefixAny(folded, costCenterLabels)
}

// labelValue value for the label at cells[i]: text after a colon, else the next cell unless it is a label itself
func labelValue(cells []string, i int) string {
	if idx := strings.Index(cells[i], ":"); idx >= 0 {
		if v := strings.TrimSpace(cells[i][idx+1:]); v != "" {
			return v
		}
	}
	if i+1 >= len(cells) {
		return ""
	}
	next := cells[i+1]
	if isMetaLabel(NormalizeLabel(next)) {
		return ""
	}
	return strings.TrimSpace(next)
}

func isMetaLabel(folded string) bool {
	if HasPrefixAny(folded, jobTitleLabels) || HasPrefixAny(folded, costCenterLabels) {
		return true
	}
	// short name labels only count with a colon
	return HasPrefixAny(folded, nameLabels[:3]) || (strings.HasSuffix(folded, ":") && HasPrefixAny(folded, nameLabels))
}
