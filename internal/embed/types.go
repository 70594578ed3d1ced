package embed

import (
	"context"
	"time"

	"github.com/rshah/memex/internal/memexcfg"
)

// DefaultHost is the default embedding service endpoint.
const DefaultHost = "http://localhost:11434"

// DefaultModel is the embedding model requested when none is configured.
const DefaultModel = "embeddinggemma"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, pipelined in
	// batches. A slot whose embedding call fails is nil in the result slice
	// rather than aborting the whole batch (spec.md §4.1).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier used to produce embeddings.
	ModelName() string

	// Close releases any held resources.
	Close() error
}

// Config configures an HTTPEmbedder.
type Config struct {
	// Host is the embedding service base URL.
	Host string
	// Model is the embedding model name sent with every request.
	Model string
	// Dimensions is the expected embedding length.
	Dimensions int
	// BatchSize bounds how many texts are pipelined per EmbedBatch stage.
	BatchSize int
	// Timeout bounds a single embedding HTTP call.
	Timeout time.Duration
	// MaxConcurrency bounds how many embedding requests are in flight at
	// once within a single EmbedBatch call.
	MaxConcurrency int
}

// DefaultConfig returns the spec-mandated embedding client defaults.
func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Model:          DefaultModel,
		Dimensions:     memexcfg.EmbeddingDim,
		BatchSize:      memexcfg.EmbedBatchSize,
		Timeout:        memexcfg.EmbedTimeout,
		MaxConcurrency: 4,
	}
}
