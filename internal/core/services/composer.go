package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driving"
	"github.com/railsup-labs/railsup-cli/internal/logger"
	"github.com/railsup-labs/railsup-cli/internal/rubyscan"
)

const (
	// DefaultComposerConcurrency bounds the worker pool running
	// generation calls for one file.
	DefaultComposerConcurrency = 4

	// DefaultComposerTimeout bounds a single generation call including
	// its retry.
	DefaultComposerTimeout = 45 * time.Second

	// DefaultPromptContextBudget is the character budget for retrieved
	// context inside a generation prompt.
	DefaultPromptContextBudget = 2400

	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
)

// generatedFix is the JSON shape the model is asked to produce.
type generatedFix struct {
	RefactoredCode string  `json:"refactored_code"`
	Explanation    string  `json:"explanation"`
	Confidence     float64 `json:"confidence"`
	Risk           string  `json:"risk"`
	RequiresReview bool    `json:"requires_human_review"`
}

// SuggestionComposer turns detection hits into ranked suggestions.
// Simple deprecations resolve deterministically from the rule table;
// unsafe hits go through retrieval-augmented generation with a
// pattern-only fallback when generation fails.
type SuggestionComposer struct {
	detector  *PatternDetector
	retriever driving.Retriever
	generator driven.GenerationService
	limiter   *rate.Limiter

	concurrency   int
	timeout       time.Duration
	contextBudget int
	genOpts       driven.GenerateOptions
}

// ComposerOption configures the composer.
type ComposerOption func(*SuggestionComposer)

// WithConcurrency sets the generation worker pool size.
func WithConcurrency(n int) ComposerOption {
	return func(c *SuggestionComposer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithTimeout sets the per-hit generation timeout.
func WithTimeout(d time.Duration) ComposerOption {
	return func(c *SuggestionComposer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps generation calls per second across the pool.
func WithRateLimit(perSecond float64) ComposerOption {
	return func(c *SuggestionComposer) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithGenerateOptions overrides the options passed to the generation
// service.
func WithGenerateOptions(opts driven.GenerateOptions) ComposerOption {
	return func(c *SuggestionComposer) {
		c.genOpts = opts
	}
}

// WithContextBudget sets the retrieved-context character budget per
// prompt.
func WithContextBudget(n int) ComposerOption {
	return func(c *SuggestionComposer) {
		if n > 0 {
			c.contextBudget = n
		}
	}
}

// NewSuggestionComposer creates a composer. retriever and generator may
// be nil, in which case every hit resolves through the deterministic
// path.
func NewSuggestionComposer(
	detector *PatternDetector,
	retriever driving.Retriever,
	generator driven.GenerationService,
	opts ...ComposerOption,
) *SuggestionComposer {
	c := &SuggestionComposer{
		detector:      detector,
		retriever:     retriever,
		generator:     generator,
		concurrency:   DefaultComposerConcurrency,
		timeout:       DefaultComposerTimeout,
		contextBudget: DefaultPromptContextBudget,
		genOpts: driven.GenerateOptions{
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compose runs the full hybrid pipeline over one file's content.
// Returned suggestions are deduplicated and sorted for display.
// Generation failures degrade per hit; Compose itself only fails on
// empty input.
func (c *SuggestionComposer) Compose(
	ctx context.Context, filePath, content string,
) ([]domain.Suggestion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("compose %s: %w", filePath, domain.ErrInvalidInput)
	}

	hits := c.detector.Detect(filePath, content)
	if len(hits) == 0 {
		return nil, nil
	}

	var unsafe, simple []domain.DetectionHit
	for _, hit := range hits {
		if hit.Category == domain.CategoryUnsafe && c.generator != nil && c.retriever != nil {
			unsafe = append(unsafe, hit)
		} else {
			simple = append(simple, hit)
		}
	}

	suggestions := make([]domain.Suggestion, 0, len(hits))
	for _, hit := range simple {
		suggestions = append(suggestions, c.patternSuggestion(hit, false))
	}
	suggestions = append(suggestions, c.generateAll(ctx, unsafe)...)

	suggestions = dedupeSuggestions(suggestions, hits)
	domain.SortSuggestions(suggestions)
	return suggestions, nil
}

// SuggestForQuery answers a free-text upgrade question without a
// source file: retrieval context plus one generation call, returned as
// a semantic-tier suggestion. An unparseable reply degrades to the raw
// model text rather than failing, since there is no pattern fallback
// for an open question.
func (c *SuggestionComposer) SuggestForQuery(
	ctx context.Context, query string, maxResults int,
) ([]domain.Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("suggest: %w", domain.ErrInvalidQuery)
	}
	if c.retriever == nil || c.generator == nil {
		return nil, fmt.Errorf("suggest: semantic services unavailable: %w", domain.ErrIndexNotReady)
	}

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := c.retriever.Search(genCtx, query, domain.SearchOptions{MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("suggest retrieval: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a Rails upgrade assistant. Answer the question using the reference material.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", query)
	if block := contextBlock(results, c.contextBudget); block != "" {
		b.WriteString("\nReference material:\n")
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString(`
Reply with a single JSON object and nothing else:
{
  "refactored_code": "<example code, or empty string>",
  "explanation": "<the answer>",
  "confidence": <0.0-1.0>,
  "risk": "<low|medium|high>",
  "requires_human_review": <true|false>
}`)

	raw, err := c.generate(genCtx, b.String())
	if err != nil {
		return nil, fmt.Errorf("suggest generation: %w", err)
	}

	s := domain.Suggestion{
		IssueType: "upgrade_question",
		Tier:      domain.TierSemantic,
		Sources:   citations(results),
	}

	if fix, perr := parseFix(raw); perr == nil {
		s.RefactoredCode = strings.TrimSpace(fix.RefactoredCode)
		s.Explanation = strings.TrimSpace(fix.Explanation)
		s.Confidence = fix.Confidence
		s.Risk = domain.Risk(fix.Risk)
		s.RequiresReview = fix.RequiresReview
	} else {
		logger.Debug("Suggest reply not JSON, keeping raw text: %v", perr)
		s.Explanation = strings.TrimSpace(raw)
		s.Confidence = 0.3
		s.Risk = domain.RiskMedium
		s.RequiresReview = true
		s.Fallback = true
	}

	s.Normalise()
	return []domain.Suggestion{s}, nil
}

// generateAll fans unsafe hits out over the worker pool, preserving hit
// order in the output. Cancellation degrades unstarted hits to the
// pattern fallback so partial runs still report every finding.
func (c *SuggestionComposer) generateAll(
	ctx context.Context, hits []domain.DetectionHit,
) []domain.Suggestion {
	if len(hits) == 0 {
		return nil
	}

	out := make([]domain.Suggestion, len(hits))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i, hit := range hits {
		wg.Add(1)
		go func(i int, hit domain.DetectionHit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				out[i] = c.patternSuggestion(hit, true)
				return
			}
			out[i] = c.generateOne(ctx, hit)
		}(i, hit)
	}

	wg.Wait()
	return out
}

// generateOne runs the RAG path for a single unsafe hit.
func (c *SuggestionComposer) generateOne(
	ctx context.Context, hit domain.DetectionHit,
) domain.Suggestion {
	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := targetedQuery(hit)

	results, err := c.retriever.Search(genCtx, query, domain.SearchOptions{})
	if err != nil {
		logger.Warn("Retrieval failed for %s:%d: %v", hit.FilePath, hit.LineNumber, err)
		return c.patternSuggestion(hit, true)
	}

	prompt := c.buildPrompt(hit, results)

	fix, err := c.generateFix(genCtx, prompt)
	if err != nil {
		logger.Warn("Generation failed for %s:%d: %v", hit.FilePath, hit.LineNumber, err)
		return c.patternSuggestion(hit, true)
	}

	s := domain.Suggestion{
		IssueType:      hit.RuleID,
		Tier:           domain.TierHybrid,
		FilePath:       hit.FilePath,
		LineNumber:     hit.LineNumber,
		OriginalCode:   hit.LineContent,
		RefactoredCode: strings.TrimSpace(fix.RefactoredCode),
		Explanation:    strings.TrimSpace(fix.Explanation),
		Confidence:     fix.Confidence,
		Risk:           domain.Risk(fix.Risk),
		RequiresReview: fix.RequiresReview,
		Sources:        citations(results),
	}
	if s.RefactoredCode == "" {
		return c.patternSuggestion(hit, true)
	}
	s.Normalise()
	return s
}

// generateFix calls the model and parses its JSON reply, retrying once
// with a strict instruction when the first reply fails to parse.
func (c *SuggestionComposer) generateFix(
	ctx context.Context, prompt string,
) (*generatedFix, error) {
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	fix, perr := parseFix(raw)
	if perr == nil {
		return fix, nil
	}
	logger.Debug("Unparseable generation reply, retrying strictly: %v", perr)

	raw, err = c.generate(ctx, prompt+
		"\n\nYour previous reply was not valid JSON. Respond with ONLY the JSON object, no prose, no code fences.")
	if err != nil {
		return nil, err
	}

	return parseFix(raw)
}

func (c *SuggestionComposer) generate(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	raw, err := c.generator.Generate(ctx, prompt, c.genOpts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", domain.ErrGenerationTimeout, err)
		}
		return "", err
	}
	return raw, nil
}

// buildPrompt assembles the constrained generation prompt: the finding,
// its method context and the retrieved references.
func (c *SuggestionComposer) buildPrompt(
	hit domain.DetectionHit, results []domain.SearchResult,
) string {
	var b strings.Builder

	b.WriteString("You are a Rails upgrade assistant. Fix the issue below using modern Rails idioms.\n\n")
	fmt.Fprintf(&b, "Issue: %s\n", hit.RuleID)
	fmt.Fprintf(&b, "File: %s (line %d)\n", hit.FilePath, hit.LineNumber)

	if rubyscan.IsControllerPath(hit.FilePath) {
		fmt.Fprintf(&b, "Controller: %s\n", rubyscan.ControllerName(hit.FilePath))
	}

	if hit.Method != nil {
		fmt.Fprintf(&b, "\nMethod %q:\n```ruby\n%s\n```\n", hit.Method.Name, hit.Method.Body)
	} else {
		fmt.Fprintf(&b, "\nLine:\n```ruby\n%s\n```\n", hit.LineContent)
	}

	if block := contextBlock(results, c.contextBudget); block != "" {
		b.WriteString("\nReference material:\n")
		b.WriteString(block)
		b.WriteString("\n")
	}

	b.WriteString(`
Reply with a single JSON object and nothing else:
{
  "refactored_code": "<the corrected Ruby code>",
  "explanation": "<why this change is needed>",
  "confidence": <0.0-1.0>,
  "risk": "<low|medium|high>",
  "requires_human_review": <true|false>
}`)

	return b.String()
}

// patternSuggestion builds the deterministic suggestion for a hit.
// fallback marks suggestions produced because the generation path was
// unavailable or failed; those carry medium risk and forced review.
func (c *SuggestionComposer) patternSuggestion(
	hit domain.DetectionHit, fallback bool,
) domain.Suggestion {
	rule, _ := c.detector.RuleSet().Lookup(hit.RuleID)

	s := domain.Suggestion{
		IssueType:      hit.RuleID,
		Tier:           domain.TierPattern,
		FilePath:       hit.FilePath,
		LineNumber:     hit.LineNumber,
		OriginalCode:   hit.LineContent,
		RefactoredCode: applyRule(rule, hit),
		Explanation:    rule.Explanation,
		Confidence:     rule.Confidence,
		Risk:           domain.RiskLow,
		Fallback:       fallback,
	}

	if hit.Category == domain.CategoryUnsafe {
		s.Risk = domain.RiskHigh
		s.RequiresReview = true
	}
	if fallback {
		if s.Risk != domain.RiskHigh {
			s.Risk = domain.RiskMedium
		}
		s.RequiresReview = true
	}

	s.Normalise()
	return s
}

// applyRule produces the mechanically fixed line. Deprecation rules
// carry a literal replacement; unsafe mass-assignment hits get the raw
// params argument swapped for a strong-parameters helper.
func applyRule(rule domain.Rule, hit domain.DetectionHit) string {
	if rule.Pattern == nil {
		return ""
	}

	if rule.Category == domain.CategoryUnsafe {
		resource := rubyscan.ResourceName(
			rubyscan.ControllerName(hit.FilePath), hit.LineContent)
		if resource == "" {
			resource = "record"
		}
		return rawParamsRe.ReplaceAllString(hit.LineContent, resource+"_params")
	}

	if rule.Replacement == "" {
		return ""
	}
	return rule.Pattern.ReplaceAllString(hit.LineContent, rule.Replacement)
}

// rawParamsRe matches a raw params argument, optionally subscripted,
// as passed to new/create/update.
var rawParamsRe = regexp.MustCompile(`params(?:\[[^\]]+\])?`)

// targetedQuery builds the retrieval query for an unsafe hit from the
// rule and the surrounding method, the most specific signal available.
func targetedQuery(hit domain.DetectionHit) string {
	parts := []string{"rails", strings.ReplaceAll(hit.RuleID, "_", " ")}

	if hit.Method != nil {
		parts = append(parts, hit.Method.Name, "controller action")
	}
	parts = append(parts, "strong parameters")

	return strings.Join(parts, " ")
}

// contextBlock renders retrieval results with attribution headers,
// bounded by the character budget.
func contextBlock(results []domain.SearchResult, budget int) string {
	var b strings.Builder

	for _, res := range results {
		block := fmt.Sprintf("[%s] %s\n%s\n\n", res.SourceTag, res.OriginPath, res.Text)

		remaining := budget - b.Len()
		if remaining <= 0 {
			break
		}
		if len(block) > remaining {
			b.WriteString(truncateAtWhitespace(block, remaining))
			break
		}
		b.WriteString(block)
	}

	return strings.TrimRight(b.String(), "\n")
}

func citations(results []domain.SearchResult) []domain.Citation {
	if len(results) == 0 {
		return nil
	}
	out := make([]domain.Citation, len(results))
	for i, res := range results {
		out[i] = domain.Citation{
			ChunkID:    res.ChunkID,
			SourceTag:  res.SourceTag,
			OriginPath: res.OriginPath,
		}
	}
	return out
}

// parseFix extracts and validates the JSON object from a model reply.
// Models wrap JSON in prose or code fences often enough that scanning
// for the outermost braces beats strict decoding of the whole reply.
func parseFix(raw string) (*generatedFix, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply: %w", domain.ErrParse)
	}

	var fix generatedFix
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fix); err != nil {
		return nil, fmt.Errorf("decoding reply: %v: %w", err, domain.ErrParse)
	}
	if strings.TrimSpace(fix.RefactoredCode) == "" && strings.TrimSpace(fix.Explanation) == "" {
		return nil, fmt.Errorf("reply carries neither code nor explanation: %w", domain.ErrParse)
	}
	return &fix, nil
}

// dedupeSuggestions collapses suggestions sharing (file, line) down to
// the highest-confidence one, with one exception: a suggestion backed
// by an unsafe hit survives even when outranked, unless the winner
// proposes the identical fix. Security findings are never silently
// dropped in favour of a cosmetic deprecation fix on the same line.
func dedupeSuggestions(
	suggestions []domain.Suggestion, hits []domain.DetectionHit,
) []domain.Suggestion {
	unsafeRules := make(map[string]bool)
	for _, hit := range hits {
		if hit.Category == domain.CategoryUnsafe {
			unsafeRules[hit.RuleID] = true
		}
	}

	type lineKey struct {
		file string
		line int
	}

	best := make(map[lineKey]int)
	for i, s := range suggestions {
		key := lineKey{s.FilePath, s.LineNumber}
		if j, ok := best[key]; !ok || s.Confidence > suggestions[j].Confidence {
			best[key] = i
		}
	}

	out := make([]domain.Suggestion, 0, len(best))
	for i, s := range suggestions {
		key := lineKey{s.FilePath, s.LineNumber}
		winner := best[key]
		if winner == i {
			out = append(out, s)
			continue
		}
		if unsafeRules[s.IssueType] &&
			s.RefactoredCode != suggestions[winner].RefactoredCode {
			out = append(out, s)
		}
	}
	return out
}
