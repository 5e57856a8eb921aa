package driving

import (
	"context"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

// Retriever is the public semantic query contract.
type Retriever interface {
	// Search embeds the query, searches the vector index, joins chunk
	// metadata and returns results sorted by score descending.
	//
	// Empty or whitespace-only queries fail with
	// domain.ErrInvalidQuery; an unbuilt or empty index fails with
	// domain.ErrIndexNotReady. Neither case returns an empty success
	// result, so callers can distinguish bad input and a broken index
	// from "no relevant docs found".
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// ContextForQuery concatenates result texts in score order up to a
	// character budget. The last included chunk is truncated at the
	// nearest preceding whitespace rather than omitted entirely.
	ContextForQuery(ctx context.Context, query string, maxContextLength int) (string, error)
}
