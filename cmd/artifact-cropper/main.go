package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/artifact-cropper/internal/config"
	"github.com/menta2k/artifact-cropper/internal/utils"
	"github.com/menta2k/artifact-cropper/pkg/analyzer"
	"github.com/menta2k/artifact-cropper/pkg/annotations"
	"github.com/menta2k/artifact-cropper/pkg/client"
	"github.com/menta2k/artifact-cropper/pkg/export"
	"github.com/menta2k/artifact-cropper/pkg/labeling"
	"github.com/menta2k/artifact-cropper/pkg/llamacpp"
	"github.com/menta2k/artifact-cropper/pkg/ollama"
	"github.com/menta2k/artifact-cropper/pkg/processing"
)

func main() {
	var in, outDir, cfgPath, settingsPath, window, ext, backend, url, model string
	var minFraction float64
	var quality, workers int
	var lossless, debug, label, verbose, jsonLog, dryRun bool

	flag.StringVar(&in, "in", "", "input image or folder of images")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&cfgPath, "config", "", "config file (default "+config.GetConfigPath()+" when present)")
	flag.StringVar(&settingsPath, "settings", "", "annotator settings.yaml with artifact_types and artifact_colors")
	flag.StringVar(&window, "window", "", "crop window size WxH, e.g. 128x128")
	flag.Float64Var(&minFraction, "min-fraction", 0, "minimum share of annotated pixels per window (0..1]")

	flag.StringVar(&ext, "ext", "", "output format for crops: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality for crops (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode for crops")
	flag.IntVar(&workers, "workers", 0, "annotations processed in parallel per image")
	flag.BoolVar(&debug, "debug", false, "write a debug overlay per image")

	flag.BoolVar(&label, "label", false, "label unlabelled annotations with a vision model")
	flag.StringVar(&backend, "backend", "", "labelling backend: ollama or llamacpp")
	flag.StringVar(&url, "url", "", "server URL (defaults: ollama=http://localhost:11434, llamacpp=http://localhost:8080)")
	flag.StringVar(&model, "model", "", "model name")

	flag.BoolVar(&dryRun, "dry-run", false, "print the computed crops as JSON instead of writing files")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.BoolVar(&jsonLog, "json-log", false, "log as JSON")
	flag.Parse()

	logger := newLogger(verbose, jsonLog)
	slog.SetDefault(logger)

	if in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in image.png|folder [-out dir] [-window 128x128] [-min-fraction 0.5] [-ext png|jpg|webp] [-label -backend ollama|llamacpp]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["settings"] {
		if !utils.FileExists(settingsPath) {
			logger.Error("settings file not found", "path", settingsPath)
			os.Exit(2)
		}
		if err := cfg.LoadArtifactSettings(settingsPath); err != nil {
			logger.Error("settings", "err", err)
			os.Exit(1)
		}
	}

	if set["window"] {
		w, h, err := parseWindow(window)
		if err != nil {
			logger.Error("invalid -window", "err", err)
			os.Exit(2)
		}
		cfg.Window.Width, cfg.Window.Height = w, h
	}
	if set["min-fraction"] {
		cfg.Window.MinFraction = minFraction
	}
	if set["out"] {
		cfg.Export.OutputDir = outDir
	}
	if set["ext"] {
		cfg.Export.Format = ext
	}
	if set["quality"] {
		cfg.Export.Quality = quality
	}
	if set["lossless"] {
		cfg.Export.Lossless = lossless
	}
	if set["workers"] {
		cfg.Export.Workers = workers
	}
	if set["debug"] {
		cfg.Export.DebugOverlay = debug
	}
	if set["label"] {
		cfg.Labeling.Enabled = label
	}
	if set["backend"] {
		cfg.Labeling.Backend = backend
	}
	if set["url"] {
		cfg.Labeling.URL = url
	}
	if set["model"] {
		cfg.Labeling.Model = model
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if dryRun {
		err = runDry(ctx, cfg, in)
	} else {
		err = runExport(ctx, cfg, in, logger)
	}
	if err != nil {
		logger.Error("failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(verbose, jsonLog bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonLog {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

// parseWindow parses "WxH"
func parseWindow(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("bad width %q: %w", ws, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("bad height %q: %w", hs, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("window %dx%d must be positive", w, h)
	}
	return w, h, nil
}

func newVisionClient(cfg config.LabelingConfig) (client.VisionClient, error) {
	switch cfg.Backend {
	case "ollama":
		u := cfg.URL
		if u == "" {
			u = "http://localhost:11434"
		}
		c, err := ollama.NewClient(u)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (use 'ollama' or 'llamacpp')", cfg.Backend)
	}
}

func overlayColors(cfg *config.Config, logger *slog.Logger) map[string]color.NRGBA {
	out := map[string]color.NRGBA{}
	for name, hex := range cfg.ArtifactColors() {
		c, err := processing.ParseHexColor(hex)
		if err != nil {
			logger.Warn("ignoring artifact colour", "type", name, "err", err)
			continue
		}
		out[name] = c
	}
	return out
}

func runExport(ctx context.Context, cfg *config.Config, in string, logger *slog.Logger) error {
	w := export.NewWriter(export.Options{
		Window:       cfg.Window,
		Format:       cfg.Export.Format,
		Quality:      cfg.Export.Quality,
		Lossless:     cfg.Export.Lossless,
		Workers:      cfg.Export.Workers,
		DebugOverlay: cfg.Export.DebugOverlay,
		Colors:       overlayColors(cfg, logger),
	}, logger)

	if cfg.Labeling.Enabled {
		vc, err := newVisionClient(cfg.Labeling)
		if err != nil {
			return err
		}
		w.SetLabeler(labeling.NewLabeler(vc, labeling.Options{
			Model:         cfg.Labeling.Model,
			Types:         cfg.ArtifactTypes(),
			SendFormat:    cfg.Labeling.SendFormat,
			SendSize:      cfg.Labeling.SendSize,
			SendQuality:   cfg.Labeling.SendQuality,
			MinConfidence: cfg.Labeling.MinConfidence,
		}, logger))
	}

	if utils.DirExists(in) {
		summary, err := w.ExportFolder(ctx, in, cfg.Export.OutputDir)
		logger.Info("done",
			"images", summary.Images, "annotations", summary.Annotations,
			"crops", summary.Crops, "skipped", summary.Skipped, "failed", summary.Failed)
		return err
	}

	entries, err := w.ExportImage(ctx, in, cfg.Export.OutputDir)
	if err != nil {
		return err
	}
	logger.Info("done", "crops", len(entries), "out", cfg.Export.OutputDir)
	return nil
}

func runDry(ctx context.Context, cfg *config.Config, in string) error {
	files := []string{in}
	if utils.DirExists(in) {
		var err error
		if files, err = utils.ListImageFiles(in); err != nil {
			return err
		}
	}

	a := analyzer.NewWithConfig(analyzer.Config{Window: cfg.Window, Workers: cfg.Export.Workers})
	processor := processing.NewProcessor()
	store := annotations.NewStore()

	reports := map[string]analyzer.Report{}
	for _, path := range files {
		img, err := processor.LoadImage(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		anns, err := store.Load(path)
		if err != nil {
			return err
		}
		report, err := a.Analyze(ctx, img, anns)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		reports[path] = report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
