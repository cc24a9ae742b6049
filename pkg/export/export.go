// Package export writes annotation crops and their JSON metadata to disk.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/artifact-cropper/internal/utils"
	"github.com/menta2k/artifact-cropper/pkg/annotations"
	"github.com/menta2k/artifact-cropper/pkg/cropper"
	"github.com/menta2k/artifact-cropper/pkg/processing"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// Entry is the metadata record of one exported crop
type Entry struct {
	AnnotationIndex int    `json:"annotation_index"`
	CropIndex       int    `json:"crop_index"`
	BBox            [4]int `json:"bbox"`
	Region          [4]int `json:"region"`
	Label           string `json:"label"`
	Fallback        bool   `json:"fallback"`
	File            string `json:"file"`
}

// Options controls crop geometry and output encoding
type Options struct {
	Window       types.WindowSpec
	Format       string
	Quality      int
	Lossless     bool
	Workers      int
	DebugOverlay bool
	// Colors are used by the debug overlay, keyed by label
	Colors map[string]color.NRGBA
}

// DefaultOptions returns PNG output with the default window
func DefaultOptions() Options {
	return Options{
		Window:  types.DefaultWindowSpec(),
		Format:  "png",
		Quality: 90,
		Workers: 4,
	}
}

// Labeler fills in missing labels before crops are written
type Labeler interface {
	LabelResults(ctx context.Context, img image.Image, results []cropper.Result) error
}

// Summary counts what a folder export produced
type Summary struct {
	Images      int
	Annotations int
	Crops       int
	Failed      int
	// Skipped counts images smaller than the crop window
	Skipped int
}

// Writer exports crops and metadata for annotated images
type Writer struct {
	processor *processing.Processor
	store     *annotations.Store
	labeler   Labeler
	opts      Options
	logger    *slog.Logger
}

// NewWriter creates a Writer reading annotations from sidecar files next to the images
func NewWriter(opts Options, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		processor: processing.NewProcessor(),
		store:     annotations.NewStore(),
		opts:      opts,
		logger:    logger,
	}
}

// SetStore replaces the annotation store
func (w *Writer) SetStore(store *annotations.Store) {
	w.store = store
}

// SetLabeler enables labelling of unlabelled annotations
func (w *Writer) SetLabeler(l Labeler) {
	w.labeler = l
}

// WriteCrops saves every crop of the results and the metadata file <stem>.json
// into outDir. Crops are named <stem>_ann<i>_crop<j>.<ext>.
func (w *Writer) WriteCrops(imagePath string, img image.Image, results []cropper.Result, outDir string) ([]Entry, error) {
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stem := utils.Stem(imagePath)
	metaPath := filepath.Join(outDir, stem+".json")
	if sameFile(metaPath, w.store.Path(imagePath)) {
		return nil, fmt.Errorf("metadata file %s would overwrite the annotations of %s", metaPath, imagePath)
	}

	ext := processing.FormatExtension(w.opts.Format)
	entries := []Entry{}
	for _, res := range results {
		for j, box := range res.Crops {
			patch, err := w.processor.CropImage(img, box)
			if err != nil {
				return nil, fmt.Errorf("annotation %d crop %d: %w", res.Index, j, err)
			}

			name := utils.CropFilename(stem, res.Index, j, ext)
			if err := w.processor.SaveImage(patch, filepath.Join(outDir, name), w.opts.Format, w.opts.Quality, w.opts.Lossless); err != nil {
				return nil, fmt.Errorf("failed to save %s: %w", name, err)
			}

			region := box
			if j < len(res.Regions) {
				region = res.Regions[j]
			}
			entries = append(entries, Entry{
				AnnotationIndex: res.Index,
				CropIndex:       j,
				BBox:            box.Array(),
				Region:          region.Array(),
				Label:           res.Annotation.Label,
				Fallback:        res.Fallback,
				File:            name,
			})
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	return entries, nil
}

// ExportImage loads an image and its annotations, computes the crops and writes them
func (w *Writer) ExportImage(ctx context.Context, imagePath, outDir string) ([]Entry, error) {
	img, err := w.processor.LoadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	anns, err := w.store.Load(imagePath)
	if err != nil {
		return nil, err
	}

	gen, err := cropper.NewWithConfig(anns, types.ExtentOf(img), w.opts.Window)
	if err != nil {
		return nil, err
	}

	results, err := gen.ProcessAll(ctx, w.opts.Workers)
	if err != nil {
		return nil, err
	}

	if w.labeler != nil {
		if err := w.labeler.LabelResults(ctx, img, results); err != nil {
			return nil, fmt.Errorf("labelling failed: %w", err)
		}
	}

	entries, err := w.WriteCrops(imagePath, img, results, outDir)
	if err != nil {
		return nil, err
	}

	if w.opts.DebugOverlay {
		overlay := w.processor.CreateDebugOverlay(img, results, w.opts.Colors)
		overlayPath := filepath.Join(outDir, utils.Stem(imagePath)+"_overlay.png")
		if err := w.processor.SaveImage(overlay, overlayPath, "png", 0, false); err != nil {
			w.logger.Warn("debug overlay save failed", "path", overlayPath, "err", err)
		}
	}

	w.logger.Info("exported image",
		"image", imagePath, "annotations", len(results), "crops", len(entries))
	return entries, nil
}

// ExportFolder exports every image found under inputDir. Crops of an image in a
// subfolder go to the same subfolder under outDir, and outDir itself is never
// scanned. Images smaller than the crop window are skipped with a warning. Any
// other failing image is logged and skipped; those failures are returned together.
func (w *Writer) ExportFolder(ctx context.Context, inputDir, outDir string) (Summary, error) {
	var summary Summary

	files, err := utils.ListImageFiles(inputDir, outDir)
	if err != nil {
		return summary, fmt.Errorf("failed to scan %s: %w", inputDir, err)
	}

	var errs []error
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		w.logger.Debug("exporting", "n", i+1, "total", len(files), "image", path)

		entries, err := w.ExportImage(ctx, path, mirrorDir(inputDir, outDir, path))
		if errors.Is(err, types.ErrWindowTooLarge) {
			w.logger.Warn("image smaller than the crop window, skipped",
				"image", path, "window", fmt.Sprintf("%dx%d", w.opts.Window.Width, w.opts.Window.Height))
			summary.Skipped++
			continue
		}
		if err != nil {
			w.logger.Error("export failed", "image", path, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			summary.Failed++
			continue
		}

		summary.Images++
		summary.Crops += len(entries)
		seen := map[int]struct{}{}
		for _, e := range entries {
			seen[e.AnnotationIndex] = struct{}{}
		}
		summary.Annotations += len(seen)
	}
	return summary, errors.Join(errs...)
}

// mirrorDir returns the output directory for an image, keeping its subfolder
// relative to inputDir
func mirrorDir(inputDir, outDir, imagePath string) string {
	rel, err := filepath.Rel(inputDir, filepath.Dir(imagePath))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return outDir
	}
	return filepath.Join(outDir, rel)
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
