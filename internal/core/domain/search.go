package domain

// KindFilter selects which corpora a retrieval query covers.
type KindFilter int

const (
	// KindAny interleaves documentation and diff chunks by score.
	KindAny KindFilter = iota

	// KindDocOnly restricts results to documentation chunks.
	KindDocOnly

	// KindDiffOnly restricts results to diff chunks.
	KindDiffOnly
)

// Matches reports whether a chunk kind passes the filter.
func (f KindFilter) Matches(k SourceKind) bool {
	switch f {
	case KindDocOnly:
		return k == SourceDoc
	case KindDiffOnly:
		return k == SourceDiff
	default:
		return true
	}
}

// SearchOptions configures a retrieval query.
type SearchOptions struct {
	// MaxResults is the maximum number of results to return.
	// Defaults to the retriever's configured limit when <= 0.
	MaxResults int

	// Kind filters results by source kind.
	Kind KindFilter
}

// SearchResult is a scored, attributed retrieval hit for a query.
// Result sets are sorted descending by score and contain no duplicate
// chunk IDs.
type SearchResult struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// Score is the similarity score; higher means more relevant.
	Score float64

	// Text is the denormalised chunk content.
	Text string

	// Kind is the chunk's source kind.
	Kind SourceKind

	// SourceTag is the chunk's version identifier.
	SourceTag string

	// OriginPath is the citation path back to the original source.
	OriginPath string
}

// Citation points a suggestion back to the retrieval provenance that
// informed it.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	SourceTag  string `json:"source_tag"`
	OriginPath string `json:"origin_path"`
}
