package driving

import (
	"context"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

// KeepFunc decides whether a chunk must survive deduplication even when
// its text duplicates an earlier chunk. Callers supply this to retain
// version-specific duplicates (e.g. current release notes).
type KeepFunc func(domain.Chunk) bool

// Ingestor turns raw corpus records into the uniform chunk shape.
// Ingestion is a best-effort batch job: malformed records are skipped
// with a reported reason, never aborting the whole batch.
type Ingestor interface {
	// IngestDocs chunks long-form documentation records with a sliding
	// window. Returned errors are per-record IngestionRecordErrors.
	IngestDocs(ctx context.Context, records []domain.RawDocRecord) ([]domain.Chunk, []error)

	// IngestDiffs renders version-transition records into chunks.
	// A before/after pair is always kept atomic in a single chunk.
	IngestDiffs(ctx context.Context, records []domain.RawDiffRecord) ([]domain.Chunk, []error)

	// Deduplicate removes exact-text duplicates except where keep
	// retains them. Idempotent: dedup(dedup(x)) == dedup(x).
	Deduplicate(chunks []domain.Chunk, keep KeepFunc) []domain.Chunk
}
