package schemas

import (
	"context"
)

// -- LLM Interfaces --

// ModelTier selects between a cheap, quick model and a stronger, slower one.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions tunes a single generation call.
type GenerationOptions struct {
	Temperature     float32
	ForceJSONFormat bool
	TopP            float32
	TopK            int
}

// GenerationRequest is a single prompt sent to a model. Image, when set, is
// attached as inline data alongside the user prompt.
type GenerationRequest struct {
	SystemPrompt  string
	UserPrompt    string
	Image         []byte
	ImageMIMEType string
	Tier          ModelTier
	Options       GenerationOptions
}

// LLMClient is implemented by every model backend and by the tier router.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
