package labeling

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/menta2k/artifact-cropper/pkg/cropper"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// fakeClient answers every classification with a fixed result
type fakeClient struct {
	result  types.LabelResult
	err     error
	calls   int
	prompts []string
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "", nil
}

func (f *fakeClient) ClassifyImage(ctx context.Context, model, prompt, imgB64 string) (*types.LabelResult, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 64, 255})
		}
	}
	return img
}

func testResults(t *testing.T) []cropper.Result {
	t.Helper()
	gen, err := cropper.New([]types.Annotation{
		types.NewRect(20, 20, 80, 80, ""),
		types.NewRect(150, 150, 190, 190, "Dust"),
	}, types.ImageExtent{Width: 256, Height: 256})
	if err != nil {
		t.Fatalf("cropper.New failed: %v", err)
	}
	return gen.Results()
}

func TestNormalizeLabel(t *testing.T) {
	allowed := []string{"Artifact", "No Artifact"}
	tests := map[string]string{
		"Artifact":        "Artifact",
		" artifact. ":     "Artifact",
		"NO   ARTIFACT":   "No Artifact",
		"\"No Artifact\"": "No Artifact",
	}
	for raw, want := range tests {
		got, ok := normalizeLabel(raw, allowed)
		if !ok || got != want {
			t.Errorf("normalizeLabel(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	for _, raw := range []string{"", "scratch", "artifacts"} {
		if _, ok := normalizeLabel(raw, allowed); ok {
			t.Errorf("normalizeLabel(%q) should not match", raw)
		}
	}
}

func TestPromptListsTypes(t *testing.T) {
	l := NewLabeler(&fakeClient{}, Options{Model: "m", Types: []string{"Scratch", "Dust"}}, nil)
	p := l.Prompt()
	if !strings.Contains(p, `"Scratch", "Dust"`) {
		t.Errorf("Expected the prompt to list the labels, got %q", p)
	}
}

func TestLabelResultsFillsMissingLabels(t *testing.T) {
	fc := &fakeClient{result: types.LabelResult{Label: "scratch", Confidence: 0.9}}
	l := NewLabeler(fc, Options{Model: "m", Types: []string{"Scratch", "Dust"}, SendSize: 64}, nil)

	results := testResults(t)
	if err := l.LabelResults(context.Background(), createTestImage(256, 256), results); err != nil {
		t.Fatalf("LabelResults failed: %v", err)
	}
	if fc.calls != 1 {
		t.Errorf("Expected 1 model call for the unlabelled annotation, got %d", fc.calls)
	}
	if results[0].Annotation.Label != "Scratch" {
		t.Errorf("Expected Scratch, got %q", results[0].Annotation.Label)
	}
	if results[1].Annotation.Label != "Dust" {
		t.Errorf("Expected the existing label to stay, got %q", results[1].Annotation.Label)
	}
}

func TestLabelResultsDiscardsLowConfidence(t *testing.T) {
	fc := &fakeClient{result: types.LabelResult{Label: "Scratch", Confidence: 0.2}}
	l := NewLabeler(fc, Options{Model: "m", Types: []string{"Scratch"}, MinConfidence: 0.5}, nil)

	results := testResults(t)
	if err := l.LabelResults(context.Background(), createTestImage(256, 256), results); err != nil {
		t.Fatalf("LabelResults failed: %v", err)
	}
	if results[0].Annotation.Label != "" {
		t.Errorf("Expected no label, got %q", results[0].Annotation.Label)
	}
}

func TestLabelResultsPropagatesErrors(t *testing.T) {
	boom := errors.New("backend down")
	l := NewLabeler(&fakeClient{err: boom}, Options{Model: "m", Types: []string{"Scratch"}}, nil)

	err := l.LabelResults(context.Background(), createTestImage(256, 256), testResults(t))
	if !errors.Is(err, boom) {
		t.Errorf("Expected the backend error, got %v", err)
	}
}
