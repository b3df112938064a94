package embedding

import (
	"context"

	"docnerd/internal/errs"
)

// =============================================================================
// AWS BEDROCK EMBEDDING ENGINE (STUB)
// =============================================================================

// BedrockEngine is a placeholder satisfying the Engine interface so "bedrock"
// is a selectable provider at the configuration layer. No AWS SDK ships in
// this module (see DESIGN.md); Embed and EmbedBatch always fail with a
// ConfigurationError.
type BedrockEngine struct {
	region string
	model  string
}

// NewBedrockEngine validates inputs and returns a stub engine. It never talks
// to AWS. Construction fails with a ConfigurationError only when region or
// model is empty; otherwise it succeeds, and the failure surfaces on the
// first Embed or EmbedBatch call.
func NewBedrockEngine(region, model string) (*BedrockEngine, error) {
	if region == "" || model == "" {
		return nil, errs.NewConfigurationError("bedrock embedding provider requires bedrock_region and bedrock_model, and is not implemented in this build")
	}
	return &BedrockEngine{region: region, model: model}, nil
}

func (e *BedrockEngine) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	return nil, errs.NewConfigurationError("bedrock embedding provider is not implemented in this build")
}

func (e *BedrockEngine) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	return nil, errs.NewConfigurationError("bedrock embedding provider is not implemented in this build")
}

func (e *BedrockEngine) Dimensions() int {
	return 1024
}

func (e *BedrockEngine) Name() string {
	return "bedrock:" + e.model
}
