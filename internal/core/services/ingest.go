package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/railsup-labs/railsup-cli/internal/chunker"
	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driving"
	"github.com/railsup-labs/railsup-cli/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// nsChunk is the UUID namespace for chunk identifiers. SHA1 UUIDs over
// this namespace make chunk IDs stable across re-ingestion runs.
var nsChunk = uuid.MustParse("8a4bd1f0-55c1-47d2-9c42-3f6f7f1b8e20")

// IngestService turns raw corpus records into uniform chunks.
// Ingestion has partial-failure semantics: a malformed record is
// skipped with a reported reason and the batch continues.
type IngestService struct {
	chunker *chunker.Chunker
}

// NewIngestService creates an ingest service around a chunker.
func NewIngestService(c *chunker.Chunker) *IngestService {
	if c == nil {
		c = chunker.New()
	}
	return &IngestService{chunker: c}
}

// IngestDocs splits documentation records into sliding-window chunks.
func (s *IngestService) IngestDocs(
	ctx context.Context, records []domain.RawDocRecord,
) ([]domain.Chunk, []error) {
	var chunks []domain.Chunk
	var errs []error

	for _, rec := range records {
		if ctx.Err() != nil {
			return chunks, append(errs, ctx.Err())
		}

		if reason := validateDocRecord(rec); reason != "" {
			err := &domain.IngestionRecordError{Record: rec.Path, Reason: reason}
			logger.Error("%v", err)
			errs = append(errs, err)
			continue
		}

		for _, span := range s.chunker.Split(rec.Text) {
			chunks = append(chunks, domain.Chunk{
				ID:         chunkID(rec.Path, rec.VersionTag, span.Start),
				Text:       span.Text,
				Kind:       domain.SourceDoc,
				SourceTag:  rec.VersionTag,
				OriginPath: rec.Path,
			})
		}
	}

	logger.Debug("Ingested %d doc chunks from %d records (%d skipped)",
		len(chunks), len(records), len(errs))
	return chunks, errs
}

// IngestDiffs renders version-transition records into chunks. The
// before/after pair is always kept atomic in a single chunk, however
// long, so a code fence is never split across chunk boundaries.
func (s *IngestService) IngestDiffs(
	ctx context.Context, records []domain.RawDiffRecord,
) ([]domain.Chunk, []error) {
	var chunks []domain.Chunk
	var errs []error

	for _, rec := range records {
		if ctx.Err() != nil {
			return chunks, append(errs, ctx.Err())
		}

		if reason := validateDiffRecord(rec); reason != "" {
			err := &domain.IngestionRecordError{
				Record: rec.TransitionTag() + " " + rec.FilePath,
				Reason: reason,
			}
			logger.Error("%v", err)
			errs = append(errs, err)
			continue
		}

		tag := rec.TransitionTag()
		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(rec.FilePath, tag, 0),
			Text:       renderDiff(rec),
			Kind:       domain.SourceDiff,
			SourceTag:  tag,
			OriginPath: rec.FilePath,
		})
	}

	logger.Debug("Ingested %d diff chunks from %d records (%d skipped)",
		len(chunks), len(records), len(errs))
	return chunks, errs
}

// Deduplicate removes exact-text duplicates. The first occurrence of a
// text wins; a later duplicate survives only when keep retains it
// (version-specific chunks flagged "always retain" by the caller).
// Idempotent: dedup(dedup(x)) == dedup(x).
func (s *IngestService) Deduplicate(
	chunks []domain.Chunk, keep driving.KeepFunc,
) []domain.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]domain.Chunk, 0, len(chunks))

	for _, c := range chunks {
		if seen[c.Text] {
			if keep != nil && keep(c) {
				out = append(out, c)
			}
			continue
		}
		seen[c.Text] = true
		out = append(out, c)
	}

	if dropped := len(chunks) - len(out); dropped > 0 {
		logger.Info("Deduplication removed %d duplicate chunks", dropped)
	}
	return out
}

func validateDocRecord(rec domain.RawDocRecord) string {
	switch {
	case rec.Path == "":
		return "missing path"
	case strings.TrimSpace(rec.Text) == "":
		return "empty text"
	default:
		return ""
	}
}

func validateDiffRecord(rec domain.RawDiffRecord) string {
	switch {
	case rec.FilePath == "":
		return "missing file path"
	case rec.VersionFrom == "" || rec.VersionTo == "":
		return "missing version pair"
	case strings.TrimSpace(rec.Before) == "" && strings.TrimSpace(rec.After) == "":
		return "empty diff"
	default:
		return ""
	}
}

// renderDiff formats a transition record as prose plus fenced code so
// the embedding captures both the change description and the code.
func renderDiff(rec domain.RawDiffRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rails %s to %s: %s\n", rec.VersionFrom, rec.VersionTo, rec.FilePath)

	switch {
	case strings.TrimSpace(rec.Before) == "":
		b.WriteString("New file added in this version.\n")
	case strings.TrimSpace(rec.After) == "":
		b.WriteString("File removed in this version.\n")
	default:
		b.WriteString("File modified in this version.\n")
	}

	if strings.TrimSpace(rec.Before) != "" {
		b.WriteString("\nBefore:\n```ruby\n")
		b.WriteString(strings.TrimRight(rec.Before, "\n"))
		b.WriteString("\n```\n")
	}
	if strings.TrimSpace(rec.After) != "" {
		b.WriteString("\nAfter:\n```ruby\n")
		b.WriteString(strings.TrimRight(rec.After, "\n"))
		b.WriteString("\n```\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// chunkID derives a stable chunk identifier from origin, version tag
// and offset.
func chunkID(origin, tag string, offset int) string {
	key := fmt.Sprintf("%s|%s|%d", origin, tag, offset)
	return uuid.NewSHA1(nsChunk, []byte(key)).String()
}
