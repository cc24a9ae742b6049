package annotations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/artifact-cropper/pkg/types"
)

// Store loads and saves per-image annotation lists kept in JSON sidecar files
// next to the images ("photo.png" -> "photo.json").
type Store struct {
	// Dir, when set, holds the sidecar files instead of the image directory
	Dir string
}

// NewStore creates a store that keeps sidecar files next to the images
func NewStore() *Store {
	return &Store{}
}

// Path returns the sidecar file path for an image
func (s *Store) Path(imagePath string) string {
	base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	if s.Dir != "" {
		base = filepath.Join(s.Dir, filepath.Base(base))
	}
	return base + ".json"
}

// Load returns the annotations for an image, or an empty list when the image has none
func (s *Store) Load(imagePath string) ([]types.Annotation, error) {
	data, err := os.ReadFile(s.Path(imagePath))
	if errors.Is(err, os.ErrNotExist) {
		return []types.Annotation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	var anns []types.Annotation
	if err := json.Unmarshal(data, &anns); err != nil {
		return nil, fmt.Errorf("failed to parse annotations %s: %w", s.Path(imagePath), err)
	}
	if anns == nil {
		anns = []types.Annotation{}
	}
	return anns, nil
}

// Save writes the annotations for an image as indented JSON
func (s *Store) Save(imagePath string, anns []types.Annotation) error {
	if anns == nil {
		anns = []types.Annotation{}
	}
	data, err := json.MarshalIndent(anns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}
	if err := os.WriteFile(s.Path(imagePath), data, 0o644); err != nil {
		return fmt.Errorf("failed to write annotations: %w", err)
	}
	return nil
}
