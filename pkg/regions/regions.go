// Package regions groups sufficient window placements into connected
// components and reduces each component to crop rectangles.
//
// Placements are 4-connected: two placements belong to the same component when
// they differ by one step horizontally or vertically. Components are discovered
// in row-major order of their first placement, which keeps the output stable.
package regions

import (
	"image"

	"github.com/menta2k/artifact-cropper/pkg/coverage"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// Component is one connected group of sufficient placements, in local coordinates
type Component struct {
	// Extent spans every window of the component:
	// (min_col, min_row, max_col+w, max_row+h)
	Extent types.CropBox
	// Anchor is the top-left of the placement with the highest pixel count,
	// ties resolved by row-major order
	Anchor image.Point
	// Count is the number of mask pixels under the anchor window
	Count int
	// Size is the number of placements in the component
	Size int

	window image.Point
}

// Window returns the window-sized box placed at the anchor
func (c Component) Window() types.CropBox {
	return types.CropBox{
		Left:   c.Anchor.X,
		Top:    c.Anchor.Y,
		Right:  c.Anchor.X + c.window.X,
		Bottom: c.Anchor.Y + c.window.Y,
	}
}

// Label assigns a component number (1-based) to every sufficient placement;
// insufficient placements get 0. It returns the labels and the component count.
func Label(g *coverage.Grid) ([]int, int) {
	labels := make([]int, g.Rows*g.Cols)
	n := 0
	var queue []int
	for start, ok := range g.Sufficient {
		if !ok || labels[start] != 0 {
			continue
		}
		n++
		labels[start] = n
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			r, c := i/g.Cols, i%g.Cols
			for _, d := range [4][2]int{{-1, 0}, {0, -1}, {0, 1}, {1, 0}} {
				nr, nc := r+d[0], c+d[1]
				if !g.At(nr, nc) {
					continue
				}
				j := nr*g.Cols + nc
				if labels[j] == 0 {
					labels[j] = n
					queue = append(queue, j)
				}
			}
		}
	}
	return labels, n
}

// Group labels the grid and summarises every component
func Group(g *coverage.Grid, spec types.WindowSpec) []Component {
	if g.Empty() {
		return nil
	}
	labels, n := Label(g)
	if n == 0 {
		return nil
	}

	comps := make([]Component, n)
	for k := range comps {
		comps[k] = Component{Count: -1, window: spec.Size()}
	}
	for i, lab := range labels {
		if lab == 0 {
			continue
		}
		r, c := i/g.Cols, i%g.Cols
		comp := &comps[lab-1]
		if comp.Size == 0 {
			comp.Extent = types.CropBox{Left: c, Top: r, Right: c, Bottom: r}
		} else {
			comp.Extent.Left = min(comp.Extent.Left, c)
			comp.Extent.Top = min(comp.Extent.Top, r)
			comp.Extent.Right = max(comp.Extent.Right, c)
			comp.Extent.Bottom = max(comp.Extent.Bottom, r)
		}
		comp.Size++
		if cnt := g.Counts[i]; cnt > comp.Count {
			comp.Count = cnt
			comp.Anchor = image.Pt(c, r)
		}
	}
	for k := range comps {
		comps[k].Extent.Right += spec.Width
		comps[k].Extent.Bottom += spec.Height
	}
	return comps
}

// Boxes returns the extent of every component in local coordinates
func Boxes(g *coverage.Grid, spec types.WindowSpec) []types.CropBox {
	comps := Group(g, spec)
	boxes := make([]types.CropBox, 0, len(comps))
	for _, c := range comps {
		boxes = append(boxes, c.Extent)
	}
	return boxes
}
