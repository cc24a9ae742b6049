package annotations

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/menta2k/artifact-cropper/pkg/types"
)

func TestPath(t *testing.T) {
	s := NewStore()
	if got := s.Path("/data/img/photo.png"); got != "/data/img/photo.json" {
		t.Errorf("Expected /data/img/photo.json, got %s", got)
	}

	s.Dir = "/tmp/anns"
	if got := s.Path("/data/img/photo.tiff"); got != "/tmp/anns/photo.json" {
		t.Errorf("Expected /tmp/anns/photo.json, got %s", got)
	}
}

func TestLoadMissing(t *testing.T) {
	s := NewStore()
	anns, err := s.Load(filepath.Join(t.TempDir(), "none.png"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if anns == nil || len(anns) != 0 {
		t.Errorf("Expected an empty list, got %v", anns)
	}
}

func TestLoadAnnotatorFormat(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "scan.png")
	doc := `[
  {"type": "rect", "artifact_type": "Artifact", "points": [[10.5, 20], [30, 40]]},
  {"type": "poly", "artifact_type": "No Artifact", "points": [[0, 0], [5, 0], [5, 5]]}
]`
	if err := os.WriteFile(filepath.Join(dir, "scan.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	anns, err := NewStore().Load(img)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(anns) != 2 {
		t.Fatalf("Expected 2 annotations, got %d", len(anns))
	}
	if anns[0].Kind != types.Rectangle || anns[0].Label != "Artifact" {
		t.Errorf("Unexpected first annotation %+v", anns[0])
	}
	if anns[0].Points[0] != (types.Point{X: 10.5, Y: 20}) {
		t.Errorf("Unexpected first point %+v", anns[0].Points[0])
	}
	if anns[1].Kind != types.Polygon || len(anns[1].Points) != 3 {
		t.Errorf("Unexpected second annotation %+v", anns[1])
	}
}

func TestSaveThenLoad(t *testing.T) {
	img := filepath.Join(t.TempDir(), "a.jpg")
	s := NewStore()
	want := []types.Annotation{
		types.NewRect(1, 2, 3, 4, "Artifact"),
		types.NewPolygon("", types.Point{X: 1, Y: 1}, types.Point{X: 9, Y: 1}, types.Point{X: 5, Y: 7}),
	}
	if err := s.Save(img, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load(img)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"type":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore().Load(filepath.Join(dir, "bad.png")); err == nil {
		t.Error("Expected an error for malformed JSON")
	}
}
