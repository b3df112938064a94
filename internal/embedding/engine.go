// Package embedding provides vector embedding generation for semantic search.
// Supports multiple backends behind a single capability interface: OpenAI-compatible
// (and Azure OpenAI via base URL override), Google GenAI, and AWS Bedrock.
package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"docnerd/internal/logging"
)

// =============================================================================
// EMBEDDING ENGINE INTERFACE
// =============================================================================

// MaxBatchItems and MaxBatchChars bound a single EmbedBatch request per spec §4.4.
const (
	MaxBatchItems = 100
	MaxBatchChars = 50000
)

// Engine generates vector embeddings for text. The core treats it purely as
// a capability; provider selection is configuration only.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string, mode Mode) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, splitting internally
	// to respect MaxBatchItems/MaxBatchChars.
	EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings produced.
	Dimensions() int

	// Name returns a human-readable engine identifier (provider:model).
	Name() string
}

// HealthChecker is an optional interface for engines that support liveness checks.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds embedding engine configuration. Exactly one provider is active.
type Config struct {
	// Provider: "openai", "google", or "bedrock".
	Provider string `json:"provider"`

	// OpenAI-compatible configuration (also covers Azure OpenAI).
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url,omitempty"` // override for Azure/self-hosted
	OpenAIModel   string `json:"openai_model"`               // default: "text-embedding-3-small"

	// Google GenAI configuration.
	GoogleAPIKey string `json:"google_api_key"`
	GoogleModel  string `json:"google_model"` // default: "gemini-embedding-001"

	// Bedrock configuration (credentials come from the standard AWS chain;
	// this struct only names the model/region to select).
	BedrockRegion string `json:"bedrock_region"`
	BedrockModel  string `json:"bedrock_model"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		OpenAIModel: "text-embedding-3-small",
		GoogleModel: "gemini-embedding-001",
	}
}

// =============================================================================
// FACTORY
// =============================================================================

// NewEngine creates an embedding engine based on configuration.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Get(logging.CategoryEmbedding).Info("creating embedding engine with provider=%s", cfg.Provider)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "openai":
		engine, err = NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case "google":
		engine, err = NewGenAIEngine(cfg.GoogleAPIKey, cfg.GoogleModel)
	case "bedrock":
		engine, err = NewBedrockEngine(cfg.BedrockRegion, cfg.BedrockModel)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'openai', 'google', or 'bedrock')", cfg.Provider)
	}

	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Get(logging.CategoryEmbedding).Info("embedding engine created: name=%s dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}

// =============================================================================
// BATCH SPLITTING
// =============================================================================

// splitBatches groups texts into chunks respecting MaxBatchItems and MaxBatchChars,
// so a provider's embedBatchChunk never sees an oversized request.
func splitBatches(texts []string) [][]string {
	var batches [][]string
	var current []string
	currentChars := 0

	for _, text := range texts {
		tooManyItems := len(current) >= MaxBatchItems
		tooManyChars := currentChars+len(text) > MaxBatchChars && len(current) > 0
		if tooManyItems || tooManyChars {
			batches = append(batches, current)
			current = nil
			currentChars = 0
		}
		current = append(current, text)
		currentChars += len(text)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// =============================================================================
// COSINE SIMILARITY UTILITY
// =============================================================================

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// FindTopK returns the top K most similar vectors to the query by cosine similarity.
// Used by the pure-Go fallback store path when sqlite-vec is unavailable.
func FindTopK(query []float32, corpus [][]float32, k int) ([]SimilarityResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "FindTopK")
	defer timer.Stop()

	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	for i, vec := range corpus {
		similarity, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: similarity})
	}

	sortStart := time.Now()
	for i := 0; i < len(results) && i < k; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Similarity > results[i].Similarity {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	logging.Get(logging.CategoryEmbedding).Debug("FindTopK: sorted %d results in %v", len(results), time.Since(sortStart))

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SimilarityResult represents a similarity search result.
type SimilarityResult struct {
	Index      int
	Similarity float64
}
