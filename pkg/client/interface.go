package client

import (
	"context"

	"github.com/menta2k/artifact-cropper/pkg/types"
)

type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	ClassifyImage(ctx context.Context, model, prompt, imgB64 string) (*types.LabelResult, error)
}
