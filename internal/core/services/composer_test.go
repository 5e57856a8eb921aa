package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
	"github.com/railsup-labs/railsup-cli/internal/rules"
)

// mockRetriever serves canned search results.
type mockRetriever struct {
	results []domain.SearchResult
	err     error
}

func (m *mockRetriever) Search(
	_ context.Context, _ string, _ domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockRetriever) ContextForQuery(
	ctx context.Context, query string, maxContextLength int,
) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	block := contextBlock(m.results, maxContextLength)
	return block, nil
}

// mockGenerator replays scripted replies in order, sharing the script
// across concurrent callers.
type mockGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	prompts []string
}

func (m *mockGenerator) Generate(
	_ context.Context, prompt string, _ driven.GenerateOptions,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", domain.ErrGenerationFailed
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

func (m *mockGenerator) ModelName() string          { return "mock-gen" }
func (m *mockGenerator) Ping(context.Context) error { return nil }
func (m *mockGenerator) Close() error               { return nil }

const validFixJSON = `{
  "refactored_code": "@user = User.create(user_params)",
  "explanation": "Raw params allow mass assignment; use strong parameters.",
  "confidence": 0.9,
  "risk": "high",
  "requires_human_review": true
}`

func docResults() []domain.SearchResult {
	return []domain.SearchResult{
		{ChunkID: "doc-1", Score: 0.9, Text: "Strong parameters guide.", Kind: domain.SourceDoc, SourceTag: "7.1", OriginPath: "guides/action_controller.md"},
	}
}

func newTestComposer(gen driven.GenerationService) *SuggestionComposer {
	detector := NewPatternDetector(mustDefaultRules())
	return NewSuggestionComposer(detector, &mockRetriever{results: docResults()}, gen)
}

func TestCompose_HybridPipeline(t *testing.T) {
	gen := &mockGenerator{replies: []string{validFixJSON}}
	c := newTestComposer(gen)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)

	// The security finding is pinned first regardless of confidence.
	first := suggestions[0]
	assert.Equal(t, domain.RiskHigh, first.Risk)
	assert.Equal(t, domain.TierHybrid, first.Tier)
	assert.Equal(t, "mass_assignment_create", first.IssueType)
	assert.Equal(t, 5, first.LineNumber)
	assert.True(t, first.RequiresReview)
	assert.NotEmpty(t, first.Sources, "generated suggestions cite their provenance")

	// Deprecations resolve deterministically without a model call.
	var deprecations int
	for _, s := range suggestions[1:] {
		assert.Equal(t, domain.TierPattern, s.Tier)
		assert.False(t, s.Fallback)
		deprecations++
	}
	assert.Equal(t, 2, deprecations)
	assert.Equal(t, 1, gen.calls, "only the unsafe hit reaches the model")
}

func TestCompose_DeprecationReplacement(t *testing.T) {
	gen := &mockGenerator{replies: []string{validFixJSON}}
	c := newTestComposer(gen)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)

	var filter *domain.Suggestion
	for i := range suggestions {
		if suggestions[i].IssueType == "before_filter_deprecation" {
			filter = &suggestions[i]
		}
	}
	require.NotNil(t, filter)
	assert.Equal(t, "before_action :authenticate", filter.RefactoredCode)
	assert.Equal(t, domain.RiskLow, filter.Risk)
	assert.False(t, filter.RequiresReview)
}

func TestCompose_FallbackOnGenerationFailure(t *testing.T) {
	gen := &mockGenerator{err: domain.ErrGenerationFailed}
	c := newTestComposer(gen)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err, "generation failure degrades, never aborts")

	first := suggestions[0]
	assert.Equal(t, domain.TierPattern, first.Tier)
	assert.True(t, first.Fallback)
	assert.True(t, first.RequiresReview)
	assert.Equal(t, domain.RiskHigh, first.Risk, "security finding keeps high risk in fallback")
	assert.Equal(t, "@user = User.create(user_params)", first.RefactoredCode)
	assert.Equal(t, 0.95, first.Confidence, "fallback confidence capped at the rule's")
}

func TestCompose_FallbackOnRetrievalFailure(t *testing.T) {
	detector := NewPatternDetector(mustDefaultRules())
	gen := &mockGenerator{replies: []string{validFixJSON}}
	c := NewSuggestionComposer(detector,
		&mockRetriever{err: domain.ErrIndexNotReady}, gen)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)

	assert.True(t, suggestions[0].Fallback)
	assert.Zero(t, gen.calls, "no model call without retrieval context")
}

func TestCompose_RetryOnUnparseableReply(t *testing.T) {
	gen := &mockGenerator{replies: []string{
		"Sure! Here is my advice about strong parameters.",
		validFixJSON,
	}}
	c := newTestComposer(gen)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)

	assert.Equal(t, 2, gen.calls, "one strict retry after a bad reply")
	assert.Equal(t, domain.TierHybrid, suggestions[0].Tier)
	assert.Contains(t, gen.prompts[1], "ONLY the JSON object")
}

func TestCompose_FallbackAfterSecondBadReply(t *testing.T) {
	gen := &mockGenerator{replies: []string{"not json", "still not json"}}
	c := newTestComposer(gen)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)

	assert.Equal(t, 2, gen.calls)
	assert.True(t, suggestions[0].Fallback)
	assert.Equal(t, domain.TierPattern, suggestions[0].Tier)
}

func TestCompose_PatternOnlyWithoutSemanticServices(t *testing.T) {
	detector := NewPatternDetector(mustDefaultRules())
	c := NewSuggestionComposer(detector, nil, nil)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)

	for _, s := range suggestions {
		assert.Equal(t, domain.TierPattern, s.Tier)
		assert.False(t, s.Fallback, "deterministic mode is not the degraded path")
	}

	// The unsafe hit still surfaces first with a mechanical fix.
	assert.Equal(t, "mass_assignment_create", suggestions[0].IssueType)
	assert.Equal(t, domain.RiskHigh, suggestions[0].Risk)
	assert.Equal(t, "@user = User.create(user_params)", suggestions[0].RefactoredCode)
}

func TestCompose_CancelledContextReturnsPartialResults(t *testing.T) {
	gen := &mockGenerator{replies: []string{validFixJSON}}
	c := newTestComposer(gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suggestions, err := c.Compose(ctx,
		"app/controllers/users_controller.rb", vulnerableController)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions, "cancelled run still reports findings")

	for _, s := range suggestions {
		if s.IssueType == "mass_assignment_create" {
			assert.True(t, s.Fallback)
		}
	}
}

func TestCompose_EmptyContent(t *testing.T) {
	c := newTestComposer(&mockGenerator{})
	_, err := c.Compose(context.Background(), "a.rb", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCompose_CleanFileNoSuggestions(t *testing.T) {
	c := newTestComposer(&mockGenerator{})
	suggestions, err := c.Compose(context.Background(), "app/models/user.rb",
		"class User < ApplicationRecord\nend\n")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestForQuery(t *testing.T) {
	gen := &mockGenerator{replies: []string{`{
  "refactored_code": "",
  "explanation": "Run rails app:update and review each initializer.",
  "confidence": 0.8,
  "risk": "low",
  "requires_human_review": false
}`}}
	c := newTestComposer(gen)

	suggestions, err := c.SuggestForQuery(context.Background(),
		"how do I upgrade from Rails 6.1 to 7.0", 3)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, domain.TierSemantic, s.Tier)
	assert.Contains(t, s.Explanation, "app:update")
	assert.NotEmpty(t, s.Sources)
	assert.False(t, s.Fallback)
}

func TestSuggestForQuery_RawTextDegrade(t *testing.T) {
	gen := &mockGenerator{replies: []string{
		"Upgrade advice in plain prose, twice over.",
		"Upgrade advice in plain prose, twice over.",
	}}
	c := newTestComposer(gen)

	suggestions, err := c.SuggestForQuery(context.Background(), "upgrade question", 3)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	assert.True(t, suggestions[0].Fallback)
	assert.True(t, suggestions[0].RequiresReview)
	assert.Contains(t, suggestions[0].Explanation, "plain prose")
}

func TestSuggestForQuery_EmptyQuery(t *testing.T) {
	c := newTestComposer(&mockGenerator{})
	_, err := c.SuggestForQuery(context.Background(), "  ", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestDedupeSuggestions_UnsafeNeverSuppressed(t *testing.T) {
	hits := []domain.DetectionHit{
		{RuleID: "mass_assignment_update", Category: domain.CategoryUnsafe, FilePath: "a.rb", LineNumber: 7},
		{RuleID: "update_attributes_deprecation", Category: domain.CategoryDeprecation, FilePath: "a.rb", LineNumber: 7},
	}
	suggestions := []domain.Suggestion{
		{IssueType: "update_attributes_deprecation", FilePath: "a.rb", LineNumber: 7, Confidence: 0.95, RefactoredCode: "@u.update(x)"},
		{IssueType: "mass_assignment_update", FilePath: "a.rb", LineNumber: 7, Confidence: 0.9, RefactoredCode: "@u.update(user_params)"},
	}

	out := dedupeSuggestions(suggestions, hits)
	require.Len(t, out, 2, "lower-confidence security fix survives a different-fix winner")
}

func TestDedupeSuggestions_IdenticalFixCollapses(t *testing.T) {
	hits := []domain.DetectionHit{
		{RuleID: "mass_assignment_update", Category: domain.CategoryUnsafe, FilePath: "a.rb", LineNumber: 7},
	}
	suggestions := []domain.Suggestion{
		{IssueType: "other_rule", FilePath: "a.rb", LineNumber: 7, Confidence: 0.95, RefactoredCode: "@u.update(user_params)"},
		{IssueType: "mass_assignment_update", FilePath: "a.rb", LineNumber: 7, Confidence: 0.9, RefactoredCode: "@u.update(user_params)"},
	}

	out := dedupeSuggestions(suggestions, hits)
	require.Len(t, out, 1)
	assert.Equal(t, "other_rule", out[0].IssueType)
}

func TestCompose_WorkerPoolBounded(t *testing.T) {
	content := `class UsersController < ApplicationController
  def a
    @u = User.new(params[:user])
  end

  def b
    @u = User.create(params[:user])
  end

  def c
    @u = User.update(params[:user])
  end

  def d
    @u = User.new(params[:user])
  end

  def e
    @u = User.create(params[:user])
  end
end
`
	var mu sync.Mutex
	active, peak := 0, 0

	gen := &trackingGenerator{onCall: func() {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
	}}

	detector := NewPatternDetector(mustDefaultRules())
	c := NewSuggestionComposer(detector,
		&mockRetriever{results: docResults()}, gen,
		WithConcurrency(2))

	_, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", content)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "pool never exceeds configured concurrency")
}

// trackingGenerator invokes a hook per call and returns a valid fix.
type trackingGenerator struct {
	onCall func()
}

func (g *trackingGenerator) Generate(
	context.Context, string, driven.GenerateOptions,
) (string, error) {
	g.onCall()
	return validFixJSON, nil
}

func (g *trackingGenerator) ModelName() string          { return "tracking" }
func (g *trackingGenerator) Ping(context.Context) error { return nil }
func (g *trackingGenerator) Close() error               { return nil }

func TestCompose_PartialGenerationTimeoutSurfacesAllFindings(t *testing.T) {
	content := `class UsersController < ApplicationController
  def build_user
    @user = User.new(params[:user])
  end

  def create
    @user = User.create(params[:user])
  end

  def update
    @user = User.update(params[:user])
  end
end
`
	gen := &selectiveGenerator{
		failOn:  "mass_assignment_create",
		failErr: domain.ErrGenerationTimeout,
	}
	detector := NewPatternDetector(mustDefaultRules())
	c := NewSuggestionComposer(detector,
		&mockRetriever{results: docResults()}, gen)

	suggestions, err := c.Compose(context.Background(),
		"app/controllers/users_controller.rb", content)
	require.NoError(t, err, "one timed-out call never aborts the run")
	require.Len(t, suggestions, 3)

	byLine := map[int]domain.Suggestion{}
	for _, s := range suggestions {
		assert.Equal(t, domain.RiskHigh, s.Risk)
		assert.True(t, s.RequiresReview)
		byLine[s.LineNumber] = s
	}
	require.Len(t, byLine, 3, "every finding surfaces despite the timeout")

	assert.Equal(t, domain.TierHybrid, byLine[3].Tier)
	assert.False(t, byLine[3].Fallback)
	assert.Equal(t, domain.TierHybrid, byLine[11].Tier)
	assert.False(t, byLine[11].Fallback)

	timedOut := byLine[7]
	assert.Equal(t, domain.TierPattern, timedOut.Tier)
	assert.True(t, timedOut.Fallback, "timed-out hit degrades to the pattern fallback")
	assert.Equal(t, "mass_assignment_create", timedOut.IssueType)

	assert.Equal(t, 3, gen.calls, "generator errors are not retried")
}

// selectiveGenerator fails calls whose prompt contains failOn and
// answers every other call with a valid fix.
type selectiveGenerator struct {
	mu      sync.Mutex
	failOn  string
	failErr error
	calls   int
}

func (g *selectiveGenerator) Generate(
	_ context.Context, prompt string, _ driven.GenerateOptions,
) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if strings.Contains(prompt, g.failOn) {
		return "", g.failErr
	}
	return validFixJSON, nil
}

func (g *selectiveGenerator) ModelName() string          { return "selective" }
func (g *selectiveGenerator) Ping(context.Context) error { return nil }
func (g *selectiveGenerator) Close() error               { return nil }

func mustDefaultRules() domain.RuleSet {
	store, err := rules.NewStore("")
	if err != nil {
		panic(err)
	}
	return store.RuleSet()
}
