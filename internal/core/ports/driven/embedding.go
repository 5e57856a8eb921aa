// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates dense vector embeddings from text.
// Implementations must be deterministic and stateless: the same input
// yields the same vector regardless of batching, and vectors come back
// L2-normalised so similarity search reduces to an inner product.
//
// Note: this is separate from VectorIndex, which stores and searches
// vectors. EmbeddingService generates them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a normalised embedding for the given text.
	// Empty or whitespace-only text fails with domain.ErrInvalidInput
	// rather than silently producing a zero vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. It exists
	// purely for throughput and is semantically identical to calling
	// Embed per item: no cross-item leakage.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 384, 768).
	// Determined by the model; must match the index configuration.
	Dimensions() int

	// ModelName returns the embedding model identifier.
	ModelName() string

	// Ping validates the service is reachable with a lightweight
	// request. Used at startup before committing to semantic mode.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
