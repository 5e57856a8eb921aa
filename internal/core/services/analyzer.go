package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driving"
	"github.com/railsup-labs/railsup-cli/internal/logger"
)

// Ensure AnalyzerService implements the interface.
var _ driving.Analyzer = (*AnalyzerService)(nil)

// DefaultAnalyzerConcurrency bounds concurrent file analyses during a
// project walk.
const DefaultAnalyzerConcurrency = 4

// skippedDirs are directory names excluded from the project walk.
// Vendored and generated trees are never upgrade targets.
var skippedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"tmp":          true,
	"log":          true,
	".git":         true,
}

// AnalyzerService is the outward analysis surface: single files,
// project walks and free-text questions, all funnelled through the
// composer.
type AnalyzerService struct {
	composer    *SuggestionComposer
	concurrency int
}

// AnalyzerOption configures the analyzer service.
type AnalyzerOption func(*AnalyzerService)

// WithAnalyzerConcurrency sets the number of files analysed in
// parallel.
func WithAnalyzerConcurrency(n int) AnalyzerOption {
	return func(s *AnalyzerService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewAnalyzerService creates an analyzer around a composer.
func NewAnalyzerService(composer *SuggestionComposer, opts ...AnalyzerOption) *AnalyzerService {
	s := &AnalyzerService{
		composer:    composer,
		concurrency: DefaultAnalyzerConcurrency,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AnalyzeFile runs the hybrid pipeline over one file's content.
func (s *AnalyzerService) AnalyzeFile(
	ctx context.Context, path, content string,
) ([]domain.Suggestion, error) {
	return s.composer.Compose(ctx, path, content)
}

// AnalyzeProject walks root for Ruby files and analyses them
// concurrently. Per-file failures become warnings; only a failed walk
// or an immediately-cancelled context produces an error.
func (s *AnalyzerService) AnalyzeProject(
	ctx context.Context, root string,
) (*driving.ProjectReport, error) {
	started := time.Now()

	files, err := collectRubyFiles(root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Section(fmt.Sprintf("Analyzing %d Ruby files under %s", len(files), root))

	type fileResult struct {
		path        string
		suggestions []domain.Suggestion
		warning     string
	}

	results := make([]fileResult, len(files))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := fileResult{path: path}
			defer func() { results[i] = res }()

			data, err := os.ReadFile(path)
			if err != nil {
				res.warning = fmt.Sprintf("%s: %v", path, err)
				return
			}
			if strings.TrimSpace(string(data)) == "" {
				return
			}

			rel := relPath(root, path)
			suggestions, err := s.composer.Compose(ctx, rel, string(data))
			if err != nil {
				res.warning = fmt.Sprintf("%s: %v", rel, err)
				return
			}
			res.suggestions = suggestions
		}(i, path)
	}

	wg.Wait()

	report := &driving.ProjectReport{
		Stats: driving.ProjectStats{FilesScanned: len(files)},
	}
	for _, res := range results {
		if res.warning != "" {
			report.Warnings = append(report.Warnings, res.warning)
		}
		if len(res.suggestions) > 0 {
			report.Stats.FilesWithIssues++
		}
		for _, sg := range res.suggestions {
			switch {
			case sg.Fallback:
				report.Stats.FallbackCount++
			case sg.Tier == domain.TierHybrid:
				report.Stats.HybridCount++
			default:
				report.Stats.PatternHits++
			}
		}
		report.Suggestions = append(report.Suggestions, res.suggestions...)
	}

	if report.Stats.FallbackCount > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"%d suggestions degraded to pattern-only fixes; semantic enrichment was unavailable or failed",
			report.Stats.FallbackCount))
	}

	domain.SortSuggestions(report.Suggestions)
	report.Stats.DurationMillis = int(time.Since(started).Milliseconds())

	logger.Info("Project analysis: %d suggestions across %d/%d files",
		len(report.Suggestions), report.Stats.FilesWithIssues, report.Stats.FilesScanned)
	return report, nil
}

// Suggest answers a free-text upgrade question via retrieval and
// generation.
func (s *AnalyzerService) Suggest(
	ctx context.Context, query string, maxResults int,
) ([]domain.Suggestion, error) {
	return s.composer.SuggestForQuery(ctx, query, maxResults)
}

// collectRubyFiles lists .rb files under root in walk order, skipping
// vendored and generated directories.
func collectRubyFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".rb") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
