package embedding

import (
	"context"
	"fmt"
	"time"

	"docnerd/internal/logging"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// =============================================================================
// OPENAI-COMPATIBLE EMBEDDING ENGINE
// =============================================================================

// dimensionsByModel holds the known output width for OpenAI's published
// embedding models. Azure deployments and other OpenAI-compatible backends
// (same wire format, different baseURL) are expected to name one of these
// models too; unknown models default to the text-embedding-3-small width.
var dimensionsByModel = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEngine generates embeddings via the OpenAI embeddings API, or any
// OpenAI-compatible endpoint (Azure OpenAI, self-hosted) reached through baseURL.
type OpenAIEngine struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEngine creates a new OpenAI-compatible embedding engine.
// baseURL overrides the default OpenAI endpoint for Azure/self-hosted deployments.
func NewOpenAIEngine(apiKey, baseURL, model string) (*OpenAIEngine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewOpenAIEngine")
	defer timer.Stop()

	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	dim, ok := dimensionsByModel[model]
	if !ok {
		dim = dimensionsByModel["text-embedding-3-small"]
	}

	logging.Get(logging.CategoryEmbedding).Info("OpenAI engine created: model=%s base_url=%s dimensions=%d", model, baseURL, dim)
	return &OpenAIEngine{client: client, model: model, dimensions: dim}, nil
}

// Embed generates an embedding for a single text. mode is ignored: OpenAI has
// no asymmetric query/document task type.
func (e *OpenAIEngine) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	results, err := e.EmbedBatch(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return results[0], nil
}

// EmbedBatch generates embeddings for multiple texts, chunking to respect
// MaxBatchItems/MaxBatchChars.
func (e *OpenAIEngine) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "OpenAI.EmbedBatch")
	defer timer.Stop()

	if len(texts) == 0 {
		return nil, nil
	}

	batches := splitBatches(texts)
	logging.Get(logging.CategoryEmbedding).Debug("OpenAI.EmbedBatch: %d texts split into %d batches", len(texts), len(batches))

	all := make([][]float32, 0, len(texts))
	for i, batch := range batches {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		chunk, err := e.embedBatchChunk(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d failed: %w", i+1, len(batches), err)
		}
		all = append(all, chunk...)
	}
	return all, nil
}

func (e *OpenAIEngine) embedBatchChunk(ctx context.Context, texts []string) ([][]float32, error) {
	apiStart := time.Now()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed failed: %w", err)
	}
	logging.Get(logging.CategoryEmbedding).Debug("OpenAI.embedBatchChunk: %d embeddings in %v", len(resp.Data), time.Since(apiStart))

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings for the configured model.
func (e *OpenAIEngine) Dimensions() int {
	return e.dimensions
}

// Name returns the engine name.
func (e *OpenAIEngine) Name() string {
	return fmt.Sprintf("openai:%s", e.model)
}
