package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driving"
	"github.com/railsup-labs/railsup-cli/internal/logger"
)

// Ensure RetrieverService implements the interface.
var _ driving.Retriever = (*RetrieverService)(nil)

const (
	// DefaultScoreThreshold drops hits with cosine similarity below
	// this floor before ranking.
	DefaultScoreThreshold = 0.25

	// DefaultNearDupThreshold controls near-duplicate suppression:
	// two hits from different origins whose text similarity exceeds
	// this collapse to the higher-scored copy.
	DefaultNearDupThreshold = 0.97

	// DefaultSearchLimit is the result count when the caller does not
	// set one.
	DefaultSearchLimit = 5

	// overFetchFactor over-requests from the index so threshold, dedup
	// and kind filtering still leave enough results to fill k.
	overFetchFactor = 3
)

// RetrieverService implements semantic search: embed the query, search
// the vector index, join chunk metadata, filter and rank.
type RetrieverService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	store    driven.ChunkStore

	scoreThreshold   float64
	nearDupThreshold float64
	defaultLimit     int
}

// RetrieverOption configures the retriever service.
type RetrieverOption func(*RetrieverService)

// WithScoreThreshold sets the minimum similarity score.
func WithScoreThreshold(threshold float64) RetrieverOption {
	return func(s *RetrieverService) {
		if threshold >= 0 {
			s.scoreThreshold = threshold
		}
	}
}

// WithNearDupThreshold sets the near-duplicate suppression threshold.
// Values >= 1 disable suppression.
func WithNearDupThreshold(threshold float64) RetrieverOption {
	return func(s *RetrieverService) {
		if threshold > 0 {
			s.nearDupThreshold = threshold
		}
	}
}

// WithDefaultLimit sets the result count used when SearchOptions does
// not specify one.
func WithDefaultLimit(limit int) RetrieverOption {
	return func(s *RetrieverService) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

// NewRetrieverService creates a retriever over an embedder, a vector
// index and the chunk metadata store.
func NewRetrieverService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	store driven.ChunkStore,
	opts ...RetrieverOption,
) *RetrieverService {
	s := &RetrieverService{
		embedder:         embedder,
		index:            index,
		store:            store,
		scoreThreshold:   DefaultScoreThreshold,
		nearDupThreshold: DefaultNearDupThreshold,
		defaultLimit:     DefaultSearchLimit,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Search runs a semantic query against the corpus.
func (s *RetrieverService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: %w", domain.ErrInvalidQuery)
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = s.defaultLimit
	}

	if s.index.Size() == 0 {
		return nil, fmt.Errorf("search: %w", domain.ErrIndexNotReady)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.index.Search(ctx, vec, limit*overFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	logger.Debug("Query %q: %d raw hits for limit %d", query, len(hits), limit)

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < s.scoreThreshold {
			continue
		}

		chunk, err := s.store.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("joining chunk %s: %w", hit.ChunkID, err)
		}
		if !opts.Kind.Matches(chunk.Kind) {
			continue
		}

		results = append(results, domain.SearchResult{
			ChunkID:    chunk.ID,
			Score:      hit.Score,
			Text:       chunk.Text,
			Kind:       chunk.Kind,
			SourceTag:  chunk.SourceTag,
			OriginPath: chunk.OriginPath,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	results = s.suppressNearDuplicates(results)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ContextForQuery assembles a prompt context block from the top search
// results. The returned string never exceeds maxContextLength; the last
// included chunk is cut at a whitespace boundary instead of mid-word.
func (s *RetrieverService) ContextForQuery(
	ctx context.Context, query string, maxContextLength int,
) (string, error) {
	if maxContextLength <= 0 {
		return "", fmt.Errorf("context length must be positive: %w", domain.ErrInvalidInput)
	}

	results, err := s.Search(ctx, query, domain.SearchOptions{})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, res := range results {
		block := fmt.Sprintf("[%s] %s\n%s\n\n", res.SourceTag, res.OriginPath, res.Text)

		remaining := maxContextLength - b.Len()
		if remaining <= 0 {
			break
		}

		if len(block) <= remaining {
			b.WriteString(block)
			continue
		}

		b.WriteString(truncateAtWhitespace(block, remaining))
		break
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

// suppressNearDuplicates drops results whose text is nearly identical
// to an earlier (higher-scored) result from a different origin.
// Similarity is pairwise over normalised word tokens; only values
// above the configured threshold suppress. Suppression never applies
// within the same origin path: consecutive windows of one document
// legitimately share overlap text.
func (s *RetrieverService) suppressNearDuplicates(
	results []domain.SearchResult,
) []domain.SearchResult {
	if s.nearDupThreshold >= 1 {
		return results
	}

	type kept struct {
		tokens map[string]struct{}
		origin string
	}

	seen := make([]kept, 0, len(results))
	out := results[:0]

	for _, res := range results {
		tokens := tokenSet(res.Text)

		dup := false
		for _, k := range seen {
			if k.origin == res.OriginPath {
				continue
			}
			if textSimilarity(k.tokens, tokens) > s.nearDupThreshold {
				dup = true
				break
			}
		}
		if dup {
			logger.Debug("Suppressed near-duplicate chunk %s", res.ChunkID)
			continue
		}

		seen = append(seen, kept{tokens: tokens, origin: res.OriginPath})
		out = append(out, res)
	}

	return out
}

// tokenSet lowercases text and collects its distinct word tokens.
func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// textSimilarity is the Jaccard similarity of two token sets in [0,1].
func textSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}

	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// truncateAtWhitespace cuts s to at most limit bytes, stepping back to
// the nearest whitespace so the cut never lands mid-word.
func truncateAtWhitespace(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !isSpaceByte(s[cut-1]) {
		cut--
	}
	if cut == 0 {
		// Single unbroken token; hard cut, stepped back to a rune
		// boundary so a multi-byte character is never split.
		cut = limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}
	return strings.TrimRight(s[:cut], " \t\n\r")
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
