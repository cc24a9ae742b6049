package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrInvalidGeometry is returned for annotations whose points do not match their kind
	ErrInvalidGeometry = errors.New("invalid annotation geometry")
	// ErrInvalidConfig is returned for unusable window specs or image extents
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrWindowTooLarge is returned with ErrInvalidConfig when an image is smaller than the window
	ErrWindowTooLarge = errors.New("image smaller than crop window")
)

// Kind identifies the shape of an annotation
type Kind string

const (
	Rectangle Kind = "rect"
	Polygon   Kind = "poly"
)

// Point is a position in global image coordinates
type Point struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as [x, y], the shape used by annotation files
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a point from [x, y]
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy []float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("point must have 2 coordinates, got %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Annotation is one user-drawn region on an image
type Annotation struct {
	Kind   Kind    `json:"type"`
	Label  string  `json:"artifact_type,omitempty"`
	Points []Point `json:"points"`
}

// NewRect creates a rectangle annotation from two opposite corners
func NewRect(x0, y0, x1, y1 float64, label string) Annotation {
	return Annotation{
		Kind:   Rectangle,
		Label:  label,
		Points: []Point{{x0, y0}, {x1, y1}},
	}
}

// NewPolygon creates a polygon annotation from its vertices
func NewPolygon(label string, points ...Point) Annotation {
	return Annotation{Kind: Polygon, Label: label, Points: points}
}

// Validate checks that the point list matches the annotation kind
func (a Annotation) Validate() error {
	if len(a.Points) == 0 {
		return fmt.Errorf("%w: no points", ErrInvalidGeometry)
	}
	switch a.Kind {
	case Rectangle:
		if len(a.Points) != 2 {
			return fmt.Errorf("%w: rectangle needs 2 points, got %d", ErrInvalidGeometry, len(a.Points))
		}
	case Polygon:
		if len(a.Points) < 3 {
			return fmt.Errorf("%w: polygon needs at least 3 points, got %d", ErrInvalidGeometry, len(a.Points))
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidGeometry, a.Kind)
	}
	for _, p := range a.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidGeometry, p.X, p.Y)
		}
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of the annotation points
func (a Annotation) Bounds() (x0, y0, x1, y1 float64) {
	x0, y0 = math.Inf(1), math.Inf(1)
	x1, y1 = math.Inf(-1), math.Inf(-1)
	for _, p := range a.Points {
		x0 = math.Min(x0, p.X)
		y0 = math.Min(y0, p.Y)
		x1 = math.Max(x1, p.X)
		y1 = math.Max(y1, p.Y)
	}
	return x0, y0, x1, y1
}

// PixelBounds returns the bounding box with the minimum floored and the maximum ceiled
func (a Annotation) PixelBounds() image.Rectangle {
	x0, y0, x1, y1 := a.Bounds()
	return image.Rectangle{
		Min: image.Pt(int(math.Floor(x0)), int(math.Floor(y0))),
		Max: image.Pt(int(math.Ceil(x1)), int(math.Ceil(y1))),
	}
}

// ImageExtent is the pixel size of an image
type ImageExtent struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ExtentOf returns the extent of an image's bounds
func ExtentOf(img image.Image) ImageExtent {
	b := img.Bounds()
	return ImageExtent{Width: b.Dx(), Height: b.Dy()}
}

// Validate checks that both dimensions are positive
func (e ImageExtent) Validate() error {
	if e.Width <= 0 || e.Height <= 0 {
		return fmt.Errorf("%w: image extent %dx%d must be positive", ErrInvalidConfig, e.Width, e.Height)
	}
	return nil
}

// Rect returns the extent as a rectangle anchored at the origin
func (e ImageExtent) Rect() image.Rectangle {
	return image.Rect(0, 0, e.Width, e.Height)
}

// WindowSpec defines the fixed crop window and its coverage threshold
type WindowSpec struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	MinFraction float64 `json:"min_fraction"`
}

// DefaultWindowSpec returns a 128x128 window requiring half coverage
func DefaultWindowSpec() WindowSpec {
	return WindowSpec{Width: 128, Height: 128, MinFraction: 0.5}
}

// Validate checks the window dimensions and threshold
func (s WindowSpec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: window %dx%d must be positive", ErrInvalidConfig, s.Width, s.Height)
	}
	if !(s.MinFraction > 0 && s.MinFraction <= 1) {
		return fmt.Errorf("%w: min_fraction %v must be in (0, 1]", ErrInvalidConfig, s.MinFraction)
	}
	return nil
}

// FitsIn reports an error when the window does not fit inside the image
func (s WindowSpec) FitsIn(e ImageExtent) error {
	if s.Width > e.Width || s.Height > e.Height {
		return fmt.Errorf("%w: %w: window %dx%d, image %dx%d",
			ErrInvalidConfig, ErrWindowTooLarge, s.Width, s.Height, e.Width, e.Height)
	}
	return nil
}

// Size returns the window dimensions as a point
func (s WindowSpec) Size() image.Point {
	return image.Pt(s.Width, s.Height)
}

// Area returns the number of pixels in one window
func (s WindowSpec) Area() int {
	return s.Width * s.Height
}

// MinRequired returns the number of mask pixels a window needs to count as sufficient
func (s WindowSpec) MinRequired() float64 {
	return s.MinFraction * float64(s.Area())
}

// CropBox is an integer rectangle (left, top, right, bottom)
type CropBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// BoxFromRect converts an image.Rectangle to a CropBox
func BoxFromRect(r image.Rectangle) CropBox {
	return CropBox{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// Width returns the horizontal size of the box
func (b CropBox) Width() int { return b.Right - b.Left }

// Height returns the vertical size of the box
func (b CropBox) Height() int { return b.Bottom - b.Top }

// Rect returns the box as an image.Rectangle
func (b CropBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Translate shifts the box by an offset
func (b CropBox) Translate(off image.Point) CropBox {
	return CropBox{
		Left:   b.Left + off.X,
		Top:    b.Top + off.Y,
		Right:  b.Right + off.X,
		Bottom: b.Bottom + off.Y,
	}
}

// Array returns the box as [left, top, right, bottom]
func (b CropBox) Array() [4]int {
	return [4]int{b.Left, b.Top, b.Right, b.Bottom}
}

func (b CropBox) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.Left, b.Top, b.Right, b.Bottom)
}

// LabelResult is the answer of a vision model asked to classify a crop
type LabelResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}
