package parser

// Grid dense, read-only cell matrix of one worksheet with merged ranges expanded
type Grid struct {
	rows  [][]Cell
	width int
}

// Resolve loads a sheet and expands its merged ranges
func Resolve(wb Workbook, sheet string) (*Grid, error) {
	cells, err := wb.Cells(sheet)
	if err != nil {
		return nil, err
	}
	merges, err := wb.MergeRanges(sheet)
	if err != nil {
		return nil, err
	}
	return NewGrid(cells, merges), nil
}

// NewGrid copies cells and fills every merge rectangle with its anchor value.
// Rows/columns covered by a merge but missing from cells are created.
func NewGrid(cells [][]Cell, merges []MergeRange) *Grid {
	rows := make([][]Cell, len(cells))
	for i, row := range cells {
		rows[i] = append([]Cell(nil), row...)
	}

	for _, m := range merges {
		if m.Top < 0 || m.Left < 0 || m.Bottom < m.Top || m.Right < m.Left {
			continue
		}
		for len(rows) <= m.Bottom {
			rows = append(rows, nil)
		}
		anchor := Cell{}
		if m.Left < len(rows[m.Top]) {
			anchor = rows[m.Top][m.Left]
		}
		for r := m.Top; r <= m.Bottom; r++ {
			for len(rows[r]) <= m.Right {
				rows[r] = append(rows[r], Cell{})
			}
			for c := m.Left; c <= m.Right; c++ {
				rows[r][c] = anchor
			}
		}
	}

	g := &Grid{rows: rows}
	for _, row := range rows {
		if len(row) > g.width {
			g.width = len(row)
		}
	}
	return g
}

// Height number of rows
func (g *Grid) Height() int {
	return len(g.rows)
}

// Width longest row length
func (g *Grid) Width() int {
	return g.width
}

// Cell returns the cell at (row, col); out of range is empty
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= len(g.rows[row]) {
		return Cell{}
	}
	return g.rows[row][col]
}

// Text trimmed display text at (row, col)
func (g *Grid) Text(row, col int) string {
	return g.Cell(row, col).String()
}

// Row returns a copy of a row
func (g *Grid) Row(row int) []Cell {
	if row < 0 || row >= len(g.rows) {
		return nil
	}
	return append([]Cell(nil), g.rows[row]...)
}

// Rows returns a deep copy of all rows
func (g *Grid) Rows() [][]Cell {
	out := make([][]Cell, len(g.rows))
	for i := range g.rows {
		out[i] = g.Row(i)
	}
	return out
}

// RowTexts trimmed texts of a row
func (g *Grid) RowTexts(row int) []string {
	if row < 0 || row >= len(g.rows) {
		return nil
	}
	out := make([]string, len(g.rows[row]))
	for i, c := range g.rows[row] {
		out[i] = c.String()
	}
	return out
}

// FoldedRow normalized labels of a row (see NormalizeLabel)
func (g *Grid) FoldedRow(row int) []string {
	texts := g.RowTexts(row)
	for i, t := range texts {
		texts[i] = NormalizeLabel(t)
	}
	return texts
}

// IsBlankRow reports whether every cell of the row is empty
func (g *Grid) IsBlankRow(row int) bool {
	return g.NonEmptyCount(row) == 0
}

// NonEmptyCount number of non-empty cells in a row
func (g *Grid) NonEmptyCount(row int) int {
	if row < 0 || row >= len(g.rows) {
		return 0
	}
	n := 0
	for _, c := range g.rows[row] {
		if !c.IsEmpty() {
			n++
		}
	}
	return n
}

// DistinctNonEmpty non-empty texts of a row with merge duplicates collapsed
func (g *Grid) DistinctNonEmpty(row int) []string {
	var out []string
	prev := ""
	for _, t := range g.RowTexts(row) {
		if t == "" || t == prev {
			prev = t
			continue
		}
		out = append(out, t)
		prev = t
	}
	return out
}
