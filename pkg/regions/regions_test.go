package regions

import (
	"image"
	"testing"

	"github.com/menta2k/artifact-cropper/pkg/coverage"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// gridFromRows builds a coverage grid from rows of '#' (sufficient) and '.'.
// Digits mark sufficient placements with that pixel count.
func gridFromRows(rows ...string) *coverage.Grid {
	g := &coverage.Grid{Rows: len(rows), Cols: len(rows[0])}
	g.Counts = make([]int, g.Rows*g.Cols)
	g.Sufficient = make([]bool, g.Rows*g.Cols)
	for r, row := range rows {
		for c, ch := range row {
			i := r*g.Cols + c
			switch {
			case ch == '#':
				g.Sufficient[i] = true
				g.Counts[i] = 1
			case ch >= '1' && ch <= '9':
				g.Sufficient[i] = true
				g.Counts[i] = int(ch - '0')
			}
		}
	}
	return g
}

func TestLabelFourConnectivity(t *testing.T) {
	g := gridFromRows(
		"#.#",
		".#.",
		"#.#",
	)
	_, n := Label(g)
	if n != 5 {
		t.Errorf("Expected 5 components for diagonal-only neighbours, got %d", n)
	}

	g = gridFromRows(
		"##.",
		".##",
		"..#",
	)
	_, n = Label(g)
	if n != 1 {
		t.Errorf("Expected 1 component for an orthogonal staircase, got %d", n)
	}
}

func TestGroupExtentsAndOrder(t *testing.T) {
	g := gridFromRows(
		"....##",
		"##..##",
		"##....",
		"......",
		"...#..",
	)
	spec := types.WindowSpec{Width: 10, Height: 20, MinFraction: 0.5}

	comps := Group(g, spec)
	if len(comps) != 3 {
		t.Fatalf("Expected 3 components, got %d", len(comps))
	}

	want := []types.CropBox{
		{Left: 4, Top: 0, Right: 5 + 10, Bottom: 1 + 20},
		{Left: 0, Top: 1, Right: 1 + 10, Bottom: 2 + 20},
		{Left: 3, Top: 4, Right: 3 + 10, Bottom: 4 + 20},
	}
	for i, c := range comps {
		if c.Extent != want[i] {
			t.Errorf("Component %d: expected extent %v, got %v", i, want[i], c.Extent)
		}
	}
	if comps[0].Size != 4 || comps[2].Size != 1 {
		t.Errorf("Unexpected component sizes %d, %d", comps[0].Size, comps[2].Size)
	}

	boxes := Boxes(g, spec)
	for i := range boxes {
		if boxes[i] != want[i] {
			t.Errorf("Boxes()[%d] = %v, want %v", i, boxes[i], want[i])
		}
	}
}

func TestGroupAnchorPrefersHighestCount(t *testing.T) {
	g := gridFromRows(
		"2373",
		"1...",
	)
	spec := types.WindowSpec{Width: 4, Height: 4, MinFraction: 0.25}

	comps := Group(g, spec)
	if len(comps) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(comps))
	}
	c := comps[0]
	if c.Anchor != image.Pt(2, 0) || c.Count != 7 {
		t.Errorf("Expected anchor (2,0) with count 7, got %v with %d", c.Anchor, c.Count)
	}
	win := c.Window()
	if win.Width() != 4 || win.Height() != 4 {
		t.Errorf("Expected a 4x4 window, got %dx%d", win.Width(), win.Height())
	}
}

func TestGroupAnchorTieUsesRowMajorOrder(t *testing.T) {
	g := gridFromRows(
		".55",
		"55.",
	)
	comps := Group(g, types.WindowSpec{Width: 2, Height: 2, MinFraction: 1})
	if len(comps) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(comps))
	}
	if comps[0].Anchor != image.Pt(1, 0) {
		t.Errorf("Expected anchor (1,0), got %v", comps[0].Anchor)
	}
}

func TestGroupEmpty(t *testing.T) {
	spec := types.DefaultWindowSpec()
	if comps := Group(&coverage.Grid{}, spec); len(comps) != 0 {
		t.Errorf("Expected no components for an empty grid, got %d", len(comps))
	}
	if comps := Group(gridFromRows("...", "..."), spec); len(comps) != 0 {
		t.Errorf("Expected no components for an all-false grid, got %d", len(comps))
	}
}
