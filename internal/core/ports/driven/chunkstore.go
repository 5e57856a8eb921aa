package driven

import (
	"context"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

// ChunkStore persists chunk metadata alongside the vector index.
// Rows are keyed by ordinal so the metadata table and the vector file
// stay aligned: row N of the vector file describes ordinal N here.
type ChunkStore interface {
	// PutBatch stores chunks, replacing any prior corpus content.
	// Ordinals must be dense and start at zero.
	PutBatch(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk returns the chunk with the given ID, or
	// domain.ErrNotFound.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetByOrdinal returns the chunk at the given corpus position, or
	// domain.ErrNotFound.
	GetByOrdinal(ctx context.Context, ordinal int) (*domain.Chunk, error)

	// Count returns the number of stored chunks. Used at load time to
	// verify alignment with the vector file.
	Count(ctx context.Context) (int, error)

	// List returns all chunks ordered by ordinal.
	List(ctx context.Context) ([]domain.Chunk, error)

	// Close releases resources.
	Close() error
}
