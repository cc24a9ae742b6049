// Package mask rasterizes annotations into local boolean occupancy grids.
//
// A mask covers only the annotation's bounding box padded by a margin (the crop
// window size) and clipped to the image, so memory is bounded by the annotation
// rather than the image.
package mask

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"

	"github.com/menta2k/artifact-cropper/pkg/types"
)

// coverageThreshold is the minimum antialiased polygon coverage (out of 255)
// for a cell to count as inside.
const coverageThreshold = 0x80

// Mask is a row-major boolean grid positioned in global image coordinates
type Mask struct {
	Width  int
	Height int
	// Offset is the global position of the top-left cell
	Offset image.Point
	Cells  []bool
}

// New allocates an all-false mask
func New(width, height int, offset image.Point) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		Offset: offset,
		Cells:  make([]bool, width*height),
	}
}

// Rasterize converts one annotation into a local mask padded by margin on every
// side and clipped to the image extent. A padded box that collapses to zero area
// yields an empty mask.
func Rasterize(ann types.Annotation, extent types.ImageExtent, margin image.Point) *Mask {
	pb := ann.PixelBounds()

	left := clampInt(pb.Min.X-margin.X, 0, extent.Width)
	top := clampInt(pb.Min.Y-margin.Y, 0, extent.Height)
	right := clampInt(pb.Max.X+margin.X, 0, extent.Width)
	bottom := clampInt(pb.Max.Y+margin.Y, 0, extent.Height)

	m := New(right-left, bottom-top, image.Pt(left, top))
	if m.Empty() {
		return m
	}

	switch ann.Kind {
	case types.Rectangle:
		m.fillRect(pb.Sub(m.Offset))
	case types.Polygon:
		m.fillPolygon(ann.Points)
	}
	return m
}

func (m *Mask) fillRect(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.Cells[y*m.Width : (y+1)*m.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] = true
		}
	}
}

func (m *Mask) fillPolygon(points []types.Point) {
	ox, oy := float64(m.Offset.X), float64(m.Offset.Y)

	z := vector.NewRasterizer(m.Width, m.Height)
	z.DrawOp = draw.Src
	z.MoveTo(float32(points[0].X-ox), float32(points[0].Y-oy))
	for _, p := range points[1:] {
		z.LineTo(float32(p.X-ox), float32(p.Y-oy))
	}
	z.ClosePath()

	dst := image.NewAlpha(image.Rect(0, 0, m.Width, m.Height))
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})

	for y := 0; y < m.Height; y++ {
		src := dst.Pix[y*dst.Stride : y*dst.Stride+m.Width]
		row := m.Cells[y*m.Width : (y+1)*m.Width]
		for x, a := range src {
			row[x] = a >= coverageThreshold
		}
	}
}

// Empty reports whether the mask has zero area
func (m *Mask) Empty() bool {
	return m.Width == 0 || m.Height == 0
}

// At returns the cell at local (x, y); out-of-range cells are false
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Cells[y*m.Width+x]
}

// Set assigns the cell at local (x, y)
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Cells[y*m.Width+x] = v
}

// Count returns the number of true cells
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.Cells {
		if c {
			n++
		}
	}
	return n
}

// CountIn returns the number of true cells inside a local rectangle
func (m *Mask) CountIn(r image.Rectangle) int {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.Cells[y*m.Width+x] {
				n++
			}
		}
	}
	return n
}

// Fraction returns the share of true cells inside a local rectangle
func (m *Mask) Fraction(r image.Rectangle) float64 {
	area := r.Dx() * r.Dy()
	if area <= 0 {
		return 0
	}
	return float64(m.CountIn(r)) / float64(area)
}

// PixelBounds returns the local bounding box of the true cells.
// ok is false when no cell is set.
func (m *Mask) PixelBounds() (r image.Rectangle, ok bool) {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Cells[y*m.Width : (y+1)*m.Width]
		for x, c := range row {
			if !c {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Bounds returns the global extent covered by the mask
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height).Add(m.Offset)
}

// Alpha renders the mask as an alpha image positioned at its global offset
func (m *Mask) Alpha() *image.Alpha {
	img := image.NewAlpha(m.Bounds())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Cells[y*m.Width+x] {
				img.SetAlpha(x+m.Offset.X, y+m.Offset.Y, color.Alpha{A: 0xff})
			}
		}
	}
	return img
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
