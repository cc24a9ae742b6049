package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/artifact-cropper/pkg/types"
)

// DefaultArtifactTypes are used when the configuration lists none
var DefaultArtifactTypes = []string{"Artifact", "No Artifact"}

// DefaultColors is the palette cycled for artifact types without an explicit colour
var DefaultColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#0082c8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#d2f53c", "#fabebe", "#008080", "#e6beff",
	"#aa6e28", "#fffac8", "#800000", "#aaffc3", "#808000", "#ffd8b1",
	"#000080", "#808080",
}

// Config holds the application configuration
type Config struct {
	Window    types.WindowSpec `json:"window"`
	Export    ExportConfig     `json:"export"`
	Artifacts ArtifactConfig   `json:"artifacts"`
	Labeling  LabelingConfig   `json:"labeling"`
}

// ExportConfig holds configuration for crop and metadata output
type ExportConfig struct {
	Format       string `json:"format"`
	Quality      int    `json:"quality"`
	Lossless     bool   `json:"lossless"`
	OutputDir    string `json:"output_dir"`
	Workers      int    `json:"workers"`
	DebugOverlay bool   `json:"debug_overlay"`
}

// ArtifactConfig holds the known annotation labels and their display colours
type ArtifactConfig struct {
	Types  []string          `json:"types"`
	Colors map[string]string `json:"colors"`
}

// LabelingConfig holds configuration for vision-model labelling
type LabelingConfig struct {
	Enabled       bool    `json:"enabled"`
	Backend       string  `json:"backend"`
	URL           string  `json:"url"`
	Model         string  `json:"model"`
	SendFormat    string  `json:"send_format"`
	SendSize      int     `json:"send_size"`
	SendQuality   int     `json:"send_quality"`
	MinConfidence float64 `json:"min_confidence"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Window: types.DefaultWindowSpec(),
		Export: ExportConfig{
			Format:       "png",
			Quality:      90,
			Lossless:     false,
			OutputDir:    "./crops",
			Workers:      4,
			DebugOverlay: false,
		},
		Artifacts: ArtifactConfig{
			Types:  append([]string(nil), DefaultArtifactTypes...),
			Colors: map[string]string{},
		},
		Labeling: LabelingConfig{
			Enabled:       false,
			Backend:       "llamacpp",
			URL:           "",
			Model:         "openbmb/minicpm-v4.5",
			SendFormat:    "jpg",
			SendSize:      512,
			SendQuality:   85,
			MinConfidence: 0,
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults.
// A .yaml or .yml file is read as an annotator settings file instead.
func LoadFromFile(filename string) (*Config, error) {
	config := Default()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if _, err := os.Stat(filename); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := config.LoadArtifactSettings(filename); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// artifactSettings is the layout of the annotator's settings.yaml
type artifactSettings struct {
	Types  []string          `yaml:"artifact_types"`
	Colors map[string]string `yaml:"artifact_colors"`
}

// LoadArtifactSettings replaces the artifact types and colours with those of an
// annotator settings.yaml. A missing file leaves the configuration unchanged;
// a file without artifact_types selects DefaultArtifactTypes.
func (c *Config) LoadArtifactSettings(filename string) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings artifactSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	c.Artifacts.Types = settings.Types
	if len(c.Artifacts.Types) == 0 {
		c.Artifacts.Types = append([]string(nil), DefaultArtifactTypes...)
	}
	c.Artifacts.Colors = settings.Colors
	if c.Artifacts.Colors == nil {
		c.Artifacts.Colors = map[string]string{}
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}

	switch strings.ToLower(c.Export.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("%w: export.format must be png, jpg or webp", types.ErrInvalidConfig)
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("%w: export.quality must be between 1 and 100", types.ErrInvalidConfig)
	}

	if c.Export.Workers < 0 {
		return fmt.Errorf("%w: export.workers cannot be negative", types.ErrInvalidConfig)
	}

	if c.Labeling.Enabled {
		switch c.Labeling.Backend {
		case "ollama", "llamacpp":
		default:
			return fmt.Errorf("%w: labeling.backend must be ollama or llamacpp", types.ErrInvalidConfig)
		}
		if c.Labeling.Model == "" {
			return fmt.Errorf("%w: labeling.model cannot be empty", types.ErrInvalidConfig)
		}
		if len(c.ArtifactTypes()) == 0 {
			return fmt.Errorf("%w: labeling needs at least one artifact type", types.ErrInvalidConfig)
		}
	}

	return nil
}

// ArtifactTypes returns the configured labels, falling back to the defaults
func (c *Config) ArtifactTypes() []string {
	if len(c.Artifacts.Types) == 0 {
		return DefaultArtifactTypes
	}
	return c.Artifacts.Types
}

// ArtifactColors maps every artifact type to a hex colour. Types without an
// explicit colour take the next entry of DefaultColors, cycling.
func (c *Config) ArtifactColors() map[string]string {
	out := make(map[string]string, len(c.ArtifactTypes()))
	next := 0
	for _, t := range c.ArtifactTypes() {
		if col, ok := c.Artifacts.Colors[t]; ok && col != "" {
			out[t] = col
			continue
		}
		out[t] = DefaultColors[next%len(DefaultColors)]
		next++
	}
	return out
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "artifact-cropper", "config.json")
}
