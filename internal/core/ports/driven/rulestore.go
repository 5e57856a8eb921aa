package driven

import "github.com/railsup-labs/railsup-cli/internal/core/domain"

// RuleStore provides access to versioned detection rule sets.
// Implementations load rules from files or embed defaults in the
// binary. Loaded rule sets are immutable values; a reload produces a
// new RuleSet rather than mutating a shared one.
type RuleStore interface {
	// RuleSet returns the current rule set.
	RuleSet() domain.RuleSet

	// Reload re-reads the backing source and swaps in a fresh rule
	// set. Safe to call concurrently with RuleSet.
	Reload() error
}
