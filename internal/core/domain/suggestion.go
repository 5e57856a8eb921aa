package domain

import "sort"

// Tier classifies a suggestion by which detection path produced it.
type Tier string

const (
	// TierPattern means the suggestion came from the deterministic rule
	// engine alone, including the degraded fallback path.
	TierPattern Tier = "pattern"

	// TierSemantic means the suggestion came from retrieval-augmented
	// generation without a pattern hit behind it.
	TierSemantic Tier = "semantic"

	// TierHybrid means a pattern hit was enriched with retrieved
	// context and generated output.
	TierHybrid Tier = "hybrid"
)

// Risk is the qualitative severity label gating human review.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// rank orders risks for sorting; lower rank surfaces first among equal
// confidence.
func (r Risk) rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}

// Suggestion is the final unit surfaced to the user.
// Suggestions are never mutated after creation, only filtered and
// re-ordered for display.
type Suggestion struct {
	IssueType      string     `json:"issue_type"`
	Tier           Tier       `json:"tier"`
	FilePath       string     `json:"file_path"`
	LineNumber     int        `json:"line_number"`
	OriginalCode   string     `json:"original_code"`
	RefactoredCode string     `json:"refactored_code"`
	Explanation    string     `json:"explanation"`
	Confidence     float64    `json:"confidence"`
	Risk           Risk       `json:"risk"`
	RequiresReview bool       `json:"requires_human_review"`
	Sources        []Citation `json:"sources,omitempty"`

	// Fallback marks suggestions produced by the degraded pattern-only
	// path after a generation failure.
	Fallback bool `json:"fallback,omitempty"`
}

// Normalise enforces the suggestion invariants in place:
// confidence clamped to [0,1], high risk always requires review, and
// unknown risk labels collapse to medium.
func (s *Suggestion) Normalise() {
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	switch s.Risk {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		s.Risk = RiskMedium
	}
	if s.Risk == RiskHigh {
		s.RequiresReview = true
	}
}

// SortSuggestions orders suggestions for display: high-risk items are
// pinned to the front regardless of confidence, then confidence
// descending, risk ascending, line ascending.
func SortSuggestions(suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if (a.Risk == RiskHigh) != (b.Risk == RiskHigh) {
			return a.Risk == RiskHigh
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Risk != b.Risk {
			return a.Risk.rank() < b.Risk.rank()
		}
		return a.LineNumber < b.LineNumber
	})
}
