package domain

import "regexp"

// RuleCategory classifies what a detection rule finds.
type RuleCategory string

const (
	// CategoryDeprecation marks ordinary API deprecations with a known
	// mechanical replacement (before_filter -> before_action).
	CategoryDeprecation RuleCategory = "deprecation"

	// CategoryUnsafe marks security-relevant constructs such as
	// unguarded mass assignment. Unsafe hits carry elevated default
	// risk and are never silently suppressed downstream.
	CategoryUnsafe RuleCategory = "unsafe"
)

// Rule is a single deterministic detection rule.
// Rules are immutable once compiled into a RuleSet.
type Rule struct {
	// ID identifies the rule (e.g. "before_filter_deprecation").
	ID string

	// Pattern is the compiled regular expression evaluated per line.
	Pattern *regexp.Regexp

	// Replacement is the mechanical substitution applied for
	// deterministic fixes. May be empty for rules that only flag.
	Replacement string

	// Explanation is the human-readable rationale shown with hits.
	Explanation string

	// Confidence is the rule-defined fixed confidence in [0,1].
	Confidence float64

	// Category distinguishes deprecations from unsafe constructs.
	Category RuleCategory
}

// RuleSet is an immutable, versioned collection of rules.
// The ordering is significant: rules are evaluated in order and a line
// may match any number of them.
type RuleSet struct {
	// Version identifies the rule set revision (e.g. "2024.2").
	Version string

	// Rules is the ordered rule list.
	Rules []Rule
}

// Unsafe returns the subset of rules flagging security-relevant
// constructs, preserving order.
func (rs RuleSet) Unsafe() []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Category == CategoryUnsafe {
			out = append(out, r)
		}
	}
	return out
}

// Lookup returns the rule with the given ID, or false.
func (rs RuleSet) Lookup(id string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}
