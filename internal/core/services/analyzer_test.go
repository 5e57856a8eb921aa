package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func scaffoldProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeProjectFile(t, root, "app/controllers/users_controller.rb", vulnerableController)
	writeProjectFile(t, root, "app/models/user.rb", "class User < ApplicationRecord\nend\n")
	writeProjectFile(t, root, "config/application.rb",
		"module App\n  config.secrets.api_key\nend\n")
	writeProjectFile(t, root, "vendor/gems/legacy.rb",
		"before_filter :everything\n")
	writeProjectFile(t, root, "app/views/users/index.html.erb", "<h1>Users</h1>\n")

	return root
}

func newPatternOnlyAnalyzer() *AnalyzerService {
	detector := NewPatternDetector(mustDefaultRules())
	composer := NewSuggestionComposer(detector, nil, nil)
	return NewAnalyzerService(composer)
}

func TestAnalyzeProject(t *testing.T) {
	root := scaffoldProject(t)
	svc := newPatternOnlyAnalyzer()

	report, err := svc.AnalyzeProject(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 3, report.Stats.FilesScanned, "only .rb files outside skipped dirs")
	assert.Equal(t, 2, report.Stats.FilesWithIssues)
	assert.Greater(t, report.Stats.PatternHits, 0)
	assert.Zero(t, report.Stats.FallbackCount)
	assert.Empty(t, report.Warnings)
	assert.NotEmpty(t, report.Suggestions)

	// Security findings lead the aggregate ordering too.
	assert.Equal(t, domain.RiskHigh, report.Suggestions[0].Risk)

	for _, s := range report.Suggestions {
		assert.False(t, strings.HasPrefix(s.FilePath, "vendor/"),
			"vendored code is never analysed")
	}
}

func TestAnalyzeProject_SecretsDeprecationFound(t *testing.T) {
	root := scaffoldProject(t)
	svc := newPatternOnlyAnalyzer()

	report, err := svc.AnalyzeProject(context.Background(), root)
	require.NoError(t, err)

	var found bool
	for _, s := range report.Suggestions {
		if s.IssueType == "secrets_deprecation" {
			found = true
			assert.Equal(t, "config/application.rb", s.FilePath)
		}
	}
	assert.True(t, found)
}

func TestAnalyzeProject_MissingRoot(t *testing.T) {
	svc := newPatternOnlyAnalyzer()
	_, err := svc.AnalyzeProject(context.Background(), "/nonexistent/project/root")
	assert.Error(t, err)
}

func TestAnalyzeProject_DegradedRunWarns(t *testing.T) {
	root := scaffoldProject(t)

	detector := NewPatternDetector(mustDefaultRules())
	composer := NewSuggestionComposer(detector,
		&mockRetriever{results: docResults()},
		&mockGenerator{err: domain.ErrGenerationFailed})
	svc := NewAnalyzerService(composer)

	report, err := svc.AnalyzeProject(context.Background(), root)
	require.NoError(t, err, "degraded runs still produce a report")

	assert.Greater(t, report.Stats.FallbackCount, 0)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[len(report.Warnings)-1], "pattern-only")
}

func TestAnalyzeFile(t *testing.T) {
	svc := newPatternOnlyAnalyzer()

	suggestions, err := svc.AnalyzeFile(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)
	assert.NotEmpty(t, suggestions)
}

func TestSuggest_Delegates(t *testing.T) {
	detector := NewPatternDetector(mustDefaultRules())
	composer := NewSuggestionComposer(detector,
		&mockRetriever{results: docResults()},
		&mockGenerator{replies: []string{validFixJSON}})
	svc := NewAnalyzerService(composer)

	suggestions, err := svc.Suggest(context.Background(), "upgrade to rails 7", 3)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, domain.TierSemantic, suggestions[0].Tier)
}
