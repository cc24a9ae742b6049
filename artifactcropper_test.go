package artifactcropper

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/artifact-cropper/pkg/export"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func TestNew(t *testing.T) {
	ac := New()
	if ac == nil {
		t.Fatal("New() returned nil")
	}

	if ac.analyzer == nil || ac.processor == nil || ac.store == nil {
		t.Error("component is nil")
	}

	if ac.Window() != types.DefaultWindowSpec() {
		t.Errorf("Expected the default window, got %+v", ac.Window())
	}
}

func TestNewWithConfig(t *testing.T) {
	opts := export.DefaultOptions()
	opts.Window = types.WindowSpec{Width: 64, Height: 32, MinFraction: 0.25}

	ac := NewWithConfig(opts)
	if ac.Window() != opts.Window {
		t.Errorf("Expected window %+v, got %+v", opts.Window, ac.Window())
	}
}

func TestComputeCrops(t *testing.T) {
	ac := New()
	img := createTestImage(600, 400)
	anns := []types.Annotation{
		types.NewRect(10, 10, 300, 200, "Scratch"),
		types.NewPolygon("Dust", types.Point{X: 400, Y: 300}, types.Point{X: 405, Y: 300}, types.Point{X: 402, Y: 306}),
	}

	results, err := ac.ComputeCrops(context.Background(), img, anns)
	if err != nil {
		t.Fatalf("ComputeCrops failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Index != i {
			t.Errorf("Expected index %d, got %d", i, res.Index)
		}
		for _, c := range res.Crops {
			if c.Width() != 128 || c.Height() != 128 {
				t.Errorf("Expected a 128x128 crop, got %v", c)
			}
			if c.Left < 0 || c.Top < 0 || c.Right > 600 || c.Bottom > 400 {
				t.Errorf("Crop %v outside the image", c)
			}
		}
	}
	if !results[1].Fallback {
		t.Error("Expected the small polygon to use the fallback window")
	}
}

func TestProcessImageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	if err := imaging.Save(createTestImage(300, 300), path); err != nil {
		t.Fatal(err)
	}

	ac := New()
	if err := ac.SaveAnnotations(path, []types.Annotation{types.NewRect(100, 100, 200, 200, "Artifact")}); err != nil {
		t.Fatalf("SaveAnnotations failed: %v", err)
	}
	anns, err := ac.LoadAnnotations(path)
	if err != nil || len(anns) != 1 {
		t.Fatalf("LoadAnnotations = %v, %v", anns, err)
	}

	outDir := filepath.Join(dir, "crops")
	entries, err := ac.ProcessImageFile(context.Background(), path, outDir)
	if err != nil {
		t.Fatalf("ProcessImageFile failed: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("Expected at least one crop")
	}
	if _, err := os.Stat(filepath.Join(outDir, entries[0].File)); err != nil {
		t.Errorf("crop file missing: %v", err)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected version %s, got %s", Version, GetVersion())
	}
}
