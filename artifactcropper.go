// Package artifactcropper turns region annotations on scanned images into
// fixed-size crop windows, for building datasets of image artifacts.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		artifactcropper "github.com/menta2k/artifact-cropper"
//	)
//
//	func main() {
//		ac := artifactcropper.New()
//
//		// Reads photo.json next to the image and writes
//		// photo_ann<i>_crop<j>.png plus photo.json into ./crops
//		entries, err := ac.ProcessImageFile(context.Background(), "photo.png", "crops")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("wrote %d crops", len(entries))
//	}
//
// The package consists of these main components:
//
//  1. Mask (pkg/mask): rasterizes a rectangle or polygon into a local boolean grid
//  2. Coverage (pkg/coverage): counts mask pixels under every window placement
//  3. Regions (pkg/regions): groups sufficient placements into connected components
//  4. Cropper (pkg/cropper): turns components into crop windows, with a fallback
//     window for annotations too small to fill one
//  5. Export (pkg/export): cuts the crops out of the image and writes metadata
//
// Crop geometry is a pure function of the annotations, the image size and the
// window spec. Every crop lies inside the image and has exactly the window size.
package artifactcropper

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/artifact-cropper/pkg/analyzer"
	"github.com/menta2k/artifact-cropper/pkg/annotations"
	"github.com/menta2k/artifact-cropper/pkg/cropper"
	"github.com/menta2k/artifact-cropper/pkg/export"
	"github.com/menta2k/artifact-cropper/pkg/processing"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// Version of the artifact cropper library
const Version = "1.0.0"

// ArtifactCropper provides a high-level interface over crop computation and export
type ArtifactCropper struct {
	analyzer  *analyzer.ImageAnalyzer
	processor *processing.Processor
	store     *annotations.Store
	options   export.Options
}

// New creates a new ArtifactCropper with the default 128x128 window
func New() *ArtifactCropper {
	return NewWithConfig(export.DefaultOptions())
}

// NewWithConfig creates a new ArtifactCropper with custom window and output options
func NewWithConfig(opts export.Options) *ArtifactCropper {
	return &ArtifactCropper{
		analyzer:  analyzer.NewWithConfig(analyzer.Config{Window: opts.Window, Workers: opts.Workers}),
		processor: processing.NewProcessor(),
		store:     annotations.NewStore(),
		options:   opts,
	}
}

// Window returns the crop window spec in use
func (ac *ArtifactCropper) Window() types.WindowSpec {
	return ac.options.Window
}

// LoadImage loads an image from file
func (ac *ArtifactCropper) LoadImage(path string) (image.Image, error) {
	return ac.processor.LoadImage(path)
}

// LoadAnnotations reads the annotation sidecar of an image
func (ac *ArtifactCropper) LoadAnnotations(imagePath string) ([]types.Annotation, error) {
	return ac.store.Load(imagePath)
}

// SaveAnnotations writes the annotation sidecar of an image
func (ac *ArtifactCropper) SaveAnnotations(imagePath string, anns []types.Annotation) error {
	return ac.store.Save(imagePath, anns)
}

// ComputeCrops returns the crop geometry of every annotation, in order
func (ac *ArtifactCropper) ComputeCrops(ctx context.Context, img image.Image, anns []types.Annotation) ([]cropper.Result, error) {
	gen, err := cropper.NewWithConfig(anns, types.ExtentOf(img), ac.options.Window)
	if err != nil {
		return nil, err
	}
	return gen.ProcessAll(ctx, ac.options.Workers)
}

// Analyze reports crop geometry and coverage without writing anything
func (ac *ArtifactCropper) Analyze(ctx context.Context, img image.Image, anns []types.Annotation) (analyzer.Report, error) {
	return ac.analyzer.Analyze(ctx, img, anns)
}

// ProcessImageFile is a convenience function that loads an image and its
// annotations, then writes every crop and the metadata file to outputDir
func (ac *ArtifactCropper) ProcessImageFile(ctx context.Context, inputPath, outputDir string) ([]export.Entry, error) {
	w := export.NewWriter(ac.options, nil)
	w.SetStore(ac.store)
	entries, err := w.ExportImage(ctx, inputPath, outputDir)
	if err != nil {
		return nil, fmt.Errorf("processing %s: %w", inputPath, err)
	}
	return entries, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
