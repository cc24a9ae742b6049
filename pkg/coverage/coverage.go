// Package coverage finds the window placements over a mask that hold enough
// mask pixels, using a summed-area table so the cost is independent of the
// window size.
package coverage

import (
	"image"

	"github.com/menta2k/artifact-cropper/pkg/mask"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// Table is an inclusive summed-area table with a zero row and column prepended:
// Sum(x, y) is the number of true cells in [0,x) x [0,y).
type Table struct {
	width  int
	height int
	sums   []int
}

// NewTable builds the summed-area table of a mask in one pass
func NewTable(m *mask.Mask) *Table {
	stride := m.Width + 1
	t := &Table{
		width:  m.Width,
		height: m.Height,
		sums:   make([]int, stride*(m.Height+1)),
	}
	for y := 0; y < m.Height; y++ {
		rowSum := 0
		prev := t.sums[y*stride:]
		cur := t.sums[(y+1)*stride:]
		for x := 0; x < m.Width; x++ {
			if m.Cells[y*m.Width+x] {
				rowSum++
			}
			cur[x+1] = prev[x+1] + rowSum
		}
	}
	return t
}

// Sum returns the number of true cells in [0,x) x [0,y)
func (t *Table) Sum(x, y int) int {
	return t.sums[y*(t.width+1)+x]
}

// Count returns the number of true cells inside a local rectangle
func (t *Table) Count(r image.Rectangle) int {
	r = r.Intersect(image.Rect(0, 0, t.width, t.height))
	if r.Empty() {
		return 0
	}
	return t.Sum(r.Max.X, r.Max.Y) - t.Sum(r.Min.X, r.Max.Y) -
		t.Sum(r.Max.X, r.Min.Y) + t.Sum(r.Min.X, r.Min.Y)
}

// Grid holds one entry per window placement; cell (row, col) is the window whose
// top-left corner sits at local (col, row).
type Grid struct {
	Rows       int
	Cols       int
	Counts     []int
	Sufficient []bool
}

// Empty reports whether the grid has no placements
func (g *Grid) Empty() bool {
	return g.Rows == 0 || g.Cols == 0
}

// At reports whether the placement at (row, col) meets the threshold
func (g *Grid) At(row, col int) bool {
	if row < 0 || col < 0 || row >= g.Rows || col >= g.Cols {
		return false
	}
	return g.Sufficient[row*g.Cols+col]
}

// Count returns the number of mask pixels under the placement at (row, col)
func (g *Grid) Count(row, col int) int {
	if row < 0 || col < 0 || row >= g.Rows || col >= g.Cols {
		return 0
	}
	return g.Counts[row*g.Cols+col]
}

// Any reports whether at least one placement is sufficient
func (g *Grid) Any() bool {
	for _, s := range g.Sufficient {
		if s {
			return true
		}
	}
	return false
}

// Scan evaluates every window placement over the mask. A mask smaller than the
// window has no placements and yields an empty grid.
func Scan(m *mask.Mask, spec types.WindowSpec) *Grid {
	h, w := spec.Height, spec.Width
	if m.Height < h || m.Width < w {
		return &Grid{}
	}

	table := NewTable(m)
	threshold := spec.MinRequired()

	g := &Grid{
		Rows: m.Height - h + 1,
		Cols: m.Width - w + 1,
	}
	g.Counts = make([]int, g.Rows*g.Cols)
	g.Sufficient = make([]bool, g.Rows*g.Cols)

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			n := table.Sum(c+w, r+h) - table.Sum(c, r+h) - table.Sum(c+w, r) + table.Sum(c, r)
			i := r*g.Cols + c
			g.Counts[i] = n
			g.Sufficient[i] = float64(n) >= threshold
		}
	}
	return g
}
