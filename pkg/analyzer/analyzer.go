package analyzer

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/artifact-cropper/pkg/cropper"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// ImageAnalyzer reports crop geometry for annotated images without writing anything
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the analyzer
type Config struct {
	Window       types.WindowSpec
	MinImageSize int
	Workers      int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			Window:       types.DefaultWindowSpec(),
			MinImageSize: 0,
			Workers:      4,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

// AnnotationReport summarises the geometry computed for one annotation
type AnnotationReport struct {
	Index      int             `json:"index"`
	Kind       types.Kind      `json:"type"`
	Label      string          `json:"label,omitempty"`
	Offset     [2]int          `json:"offset"`
	MaskSize   [2]int          `json:"mask_size"`
	MaskPixels int             `json:"mask_pixels"`
	Crops      []types.CropBox `json:"crops"`
	Fallback   bool            `json:"fallback"`
	// MinCoverage is the smallest mask fraction over the crops
	MinCoverage float64 `json:"min_coverage"`
}

// Report is the dry-run result for one image
type Report struct {
	Info        ImageInfo          `json:"info"`
	Window      types.WindowSpec   `json:"window"`
	Annotations []AnnotationReport `json:"annotations"`
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ValidateImage checks that an image can hold the crop window
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return a.config.Window.FitsIn(types.ExtentOf(img))
}

// Analyze computes the crops of every annotation and reports their coverage
func (a *ImageAnalyzer) Analyze(ctx context.Context, img image.Image, anns []types.Annotation) (Report, error) {
	if err := a.ValidateImage(img); err != nil {
		return Report{}, fmt.Errorf("image validation failed: %w", err)
	}

	gen, err := cropper.NewWithConfig(anns, types.ExtentOf(img), a.config.Window)
	if err != nil {
		return Report{}, err
	}
	results, err := gen.ProcessAll(ctx, a.config.Workers)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Info:        a.GetImageInfo(img),
		Window:      a.config.Window,
		Annotations: make([]AnnotationReport, 0, len(results)),
	}
	for _, res := range results {
		report.Annotations = append(report.Annotations, summarize(res))
	}
	return report, nil
}

func summarize(res cropper.Result) AnnotationReport {
	ar := AnnotationReport{
		Index:      res.Index,
		Kind:       res.Annotation.Kind,
		Label:      res.Annotation.Label,
		Offset:     [2]int{res.Offset.X, res.Offset.Y},
		MaskSize:   [2]int{res.Mask.Width, res.Mask.Height},
		MaskPixels: res.Mask.Count(),
		Crops:      res.Crops,
		Fallback:   res.Fallback,
	}
	for i, c := range res.Crops {
		f := res.Mask.Fraction(c.Rect().Sub(res.Offset))
		if i == 0 || f < ar.MinCoverage {
			ar.MinCoverage = f
		}
	}
	return ar
}
