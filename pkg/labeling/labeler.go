package labeling

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"unicode"

	"github.com/menta2k/artifact-cropper/pkg/client"
	"github.com/menta2k/artifact-cropper/pkg/cropper"
	"github.com/menta2k/artifact-cropper/pkg/processing"
	"github.com/menta2k/artifact-cropper/pkg/types"
)

// DefaultPrompt asks for one of the allowed labels; %s is replaced by the list
const DefaultPrompt = `You are an image artifact classifier for scanned photographs.

Allowed labels: %s

Return JSON only:
{"label": "one of the allowed labels", "confidence": 0.0, "reason": "short phrase"}

HARD RULES
- The label must be copied exactly from the allowed labels.
- Confidence is between 0 and 1.
- If unsure, pick the closest label and lower the confidence.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options configures a Labeler
type Options struct {
	Model         string
	Types         []string
	SendFormat    string
	SendSize      int
	SendQuality   int
	MinConfidence float64
}

// Labeler suggests labels for unlabelled annotations using a vision model
type Labeler struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
	logger    *slog.Logger
}

// NewLabeler creates a labeler on top of a vision client
func NewLabeler(c client.VisionClient, opts Options, logger *slog.Logger) *Labeler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SendFormat == "" {
		opts.SendFormat = "jpg"
	}
	if opts.SendQuality <= 0 {
		opts.SendQuality = 85
	}
	return &Labeler{
		client:    c,
		processor: processing.NewProcessor(),
		opts:      opts,
		logger:    logger,
	}
}

// Prompt returns the classification prompt for the configured labels
func (l *Labeler) Prompt() string {
	quoted := make([]string, len(l.opts.Types))
	for i, t := range l.opts.Types {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return fmt.Sprintf(DefaultPrompt, strings.Join(quoted, ", "))
}

// Classify asks the model for a label of one crop. The returned label is empty
// when the answer does not name an allowed label or is below MinConfidence.
func (l *Labeler) Classify(ctx context.Context, crop image.Image) (*types.LabelResult, error) {
	imgB64, err := l.processor.PrepareImageForModel(crop, l.opts.SendFormat, l.opts.SendSize, l.opts.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	res, err := l.client.ClassifyImage(ctx, l.opts.Model, l.Prompt(), imgB64)
	if err != nil {
		return nil, err
	}

	label, ok := normalizeLabel(res.Label, l.opts.Types)
	if !ok || res.Confidence < l.opts.MinConfidence {
		res.Label = ""
		return res, nil
	}
	res.Label = label
	return res, nil
}

// LabelResults fills in the label of every result whose annotation has none,
// classifying the annotation's first crop. Results are updated in place.
func (l *Labeler) LabelResults(ctx context.Context, img image.Image, results []cropper.Result) error {
	for i := range results {
		res := &results[i]
		if res.Annotation.Label != "" || len(res.Crops) == 0 {
			continue
		}

		crop, err := l.processor.CropImage(img, res.Crops[0])
		if err != nil {
			return fmt.Errorf("annotation %d: %w", res.Index, err)
		}

		suggestion, err := l.Classify(ctx, crop)
		if err != nil {
			return fmt.Errorf("annotation %d: classification failed: %w", res.Index, err)
		}
		if suggestion.Label == "" {
			l.logger.Debug("no usable label", "annotation", res.Index, "reason", suggestion.Reason)
			continue
		}

		l.logger.Info("labelled annotation",
			"annotation", res.Index, "label", suggestion.Label, "confidence", suggestion.Confidence)
		res.Annotation.Label = suggestion.Label
	}
	return nil
}

// normalizeLabel matches a model answer against the allowed labels,
// ignoring case, surrounding punctuation and repeated spaces.
func normalizeLabel(raw string, allowed []string) (string, bool) {
	key := labelKey(raw)
	if key == "" {
		return "", false
	}
	for _, a := range allowed {
		if labelKey(a) == key {
			return a, true
		}
	}
	return "", false
}

func labelKey(s string) string {
	s = strings.TrimFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(strings.Fields(s), " ")
}
