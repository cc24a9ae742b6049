package cropper

import (
	"context"
	"fmt"
	"image"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/artifact-cropper/pkg/coverage"
	"github.com/menta2k/artifact-cropper/pkg/mask"
	"github.com/menta2k/artifact-cropper/pkg/regions"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// Result is the crop geometry computed for one annotation
type Result struct {
	Index      int
	Annotation types.Annotation
	Mask       *mask.Mask
	// Offset is the global position of the mask's top-left cell
	Offset image.Point
	// Crops are window-sized boxes in global coordinates
	Crops []types.CropBox
	// Regions are the extents of the coverage components the crops were taken
	// from, in global coordinates. A fallback result repeats its single crop.
	Regions []types.CropBox
	// Fallback is set when the annotation was too small for the coverage scan
	Fallback bool
}

// Generator computes crop geometry for an ordered list of annotations on one image
type Generator struct {
	annotations []types.Annotation
	extent      types.ImageExtent
	spec        types.WindowSpec
}

// New creates a Generator with the default 128x128 window and 0.5 coverage
func New(annotations []types.Annotation, extent types.ImageExtent) (*Generator, error) {
	return NewWithConfig(annotations, extent, types.DefaultWindowSpec())
}

// NewWithConfig creates a Generator with a custom window spec.
// All annotations are validated up front.
func NewWithConfig(annotations []types.Annotation, extent types.ImageExtent, spec types.WindowSpec) (*Generator, error) {
	if err := validateSetup(extent, spec); err != nil {
		return nil, err
	}
	for i, ann := range annotations {
		if err := ann.Validate(); err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
	}
	return &Generator{
		annotations: annotations,
		extent:      extent,
		spec:        spec,
	}, nil
}

// Len returns the number of annotations
func (g *Generator) Len() int {
	return len(g.annotations)
}

// Spec returns the window spec in use
func (g *Generator) Spec() types.WindowSpec {
	return g.spec
}

// Extent returns the image extent in use
func (g *Generator) Extent() types.ImageExtent {
	return g.extent
}

// At computes the result for the annotation at index i
func (g *Generator) At(i int) (Result, error) {
	if i < 0 || i >= len(g.annotations) {
		return Result{}, fmt.Errorf("annotation index %d out of range [0,%d)", i, len(g.annotations))
	}
	res := process(g.annotations[i], g.extent, g.spec)
	res.Index = i
	return res, nil
}

// All yields one result per annotation in input order. Each call starts over.
func (g *Generator) All() iter.Seq2[int, Result] {
	return func(yield func(int, Result) bool) {
		for i, ann := range g.annotations {
			res := process(ann, g.extent, g.spec)
			res.Index = i
			if !yield(i, res) {
				return
			}
		}
	}
}

// Results computes every result sequentially
func (g *Generator) Results() []Result {
	out := make([]Result, 0, len(g.annotations))
	for _, res := range g.All() {
		out = append(out, res)
	}
	return out
}

// ProcessAll computes every result with up to workers annotations in flight.
// Results are returned in input order. workers <= 0 means no limit.
func (g *Generator) ProcessAll(ctx context.Context, workers int) ([]Result, error) {
	results := make([]Result, len(g.annotations))

	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, ann := range g.annotations {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := process(ann, g.extent, g.spec)
			res.Index = i
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Process computes the crop geometry for a single annotation
func Process(ann types.Annotation, extent types.ImageExtent, spec types.WindowSpec) (Result, error) {
	if err := validateSetup(extent, spec); err != nil {
		return Result{}, err
	}
	if err := ann.Validate(); err != nil {
		return Result{}, err
	}
	return process(ann, extent, spec), nil
}

func validateSetup(extent types.ImageExtent, spec types.WindowSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := extent.Validate(); err != nil {
		return err
	}
	return spec.FitsIn(extent)
}

func process(ann types.Annotation, extent types.ImageExtent, spec types.WindowSpec) Result {
	m := mask.Rasterize(ann, extent, spec.Size())
	res := Result{
		Annotation: ann,
		Mask:       m,
		Offset:     m.Offset,
	}

	if float64(m.Count()) >= spec.MinRequired() {
		grid := coverage.Scan(m, spec)
		for _, c := range regions.Group(grid, spec) {
			res.Crops = append(res.Crops, c.Window().Translate(m.Offset))
			res.Regions = append(res.Regions, c.Extent.Translate(m.Offset))
		}
	}

	if len(res.Crops) == 0 {
		win := fallbackWindow(m, ann, extent, spec)
		res.Crops = []types.CropBox{win}
		res.Regions = []types.CropBox{win}
		res.Fallback = true
	}
	return res
}

// fallbackWindow centres one window on the mask pixels (or on the annotation
// itself when the mask is empty) and clamps it into the mask extent, or into
// the image when the mask is narrower than the window.
func fallbackWindow(m *mask.Mask, ann types.Annotation, extent types.ImageExtent, spec types.WindowSpec) types.CropBox {
	var cx, cy int
	if r, ok := m.PixelBounds(); ok {
		cx = m.Offset.X + (r.Min.X+r.Max.X-1)>>1
		cy = m.Offset.Y + (r.Min.Y+r.Max.Y-1)>>1
	} else {
		pb := ann.PixelBounds()
		cx = (pb.Min.X + pb.Max.X) >> 1
		cy = (pb.Min.Y + pb.Max.Y) >> 1
	}

	left := clampSpan(cx-spec.Width/2, m.Offset.X, m.Width, spec.Width, extent.Width)
	top := clampSpan(cy-spec.Height/2, m.Offset.Y, m.Height, spec.Height, extent.Height)
	return types.CropBox{
		Left:   left,
		Top:    top,
		Right:  left + spec.Width,
		Bottom: top + spec.Height,
	}
}

func clampSpan(v, start, span, size, limit int) int {
	lo, hi := start, start+span-size
	if hi < lo {
		lo, hi = 0, limit-size
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
