package driven

import "context"

// VectorIndex provides nearest-neighbour search over the chunk corpus.
// An index is built once from the full corpus and then treated as an
// immutable, shared, read-only resource: concurrent Search calls are
// safe without locking. Rebuilding means constructing a new index and
// swapping it in wholesale; a partially-built index is never visible.
type VectorIndex interface {
	// Search finds the k nearest neighbours to the query vector by
	// inner product. k must be >= 1. Results are ordered by score
	// descending; ties break by chunk ID ascending for determinism.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Size returns the number of vectors in the index.
	Size() int
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the inner-product similarity. With normalised vectors
	// this equals cosine similarity.
	Score float64
}
