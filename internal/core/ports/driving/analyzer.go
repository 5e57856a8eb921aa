package driving

import (
	"context"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

// ProjectStats summarises a project-wide analysis run.
type ProjectStats struct {
	FilesScanned    int `json:"files_scanned"`
	FilesWithIssues int `json:"files_with_issues"`
	PatternHits     int `json:"pattern_hits"`
	HybridCount     int `json:"hybrid_count"`
	FallbackCount   int `json:"fallback_count"`
	DurationMillis  int `json:"duration_ms"`
}

// ProjectReport is the always-returned result of a project analysis.
// A degraded run carries warnings instead of failing outright.
type ProjectReport struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
	Warnings    []string            `json:"warnings"`
	Stats       ProjectStats        `json:"stats"`
}

// Analyzer exposes the upgrade analysis operations.
type Analyzer interface {
	// AnalyzeFile runs the hybrid pipeline over a single file's
	// content and returns ranked suggestions.
	AnalyzeFile(ctx context.Context, path, content string) ([]domain.Suggestion, error)

	// AnalyzeProject walks a Rails project root, analyses eligible
	// files and aggregates suggestions, warnings and stats. It returns
	// a report rather than failing when individual files degrade;
	// only a global failure (unreadable root, cancelled context before
	// any work) produces an error.
	AnalyzeProject(ctx context.Context, root string) (*ProjectReport, error)

	// Suggest answers a free-text upgrade question: retrieval context
	// plus generation, without a source file. Used by the query-pack
	// suggestion mode of the CLI.
	Suggest(ctx context.Context, query string, maxResults int) ([]domain.Suggestion, error)
}
