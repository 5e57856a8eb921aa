package domain

// MethodContext describes the smallest enclosing Ruby method around a
// detected line. Produced by a linear scan, not a full parser.
type MethodContext struct {
	// Name is the method name (without "def").
	Name string

	// StartLine and EndLine are the 1-based method boundaries,
	// inclusive of the "def" and "end" lines.
	StartLine int
	EndLine   int

	// Body is the full method source, def through end.
	Body string
}

// DetectionHit is a single deterministic pattern match in source code.
// Hits are ephemeral: created per scan, consumed by the composer.
type DetectionHit struct {
	// RuleID is the rule that matched.
	RuleID string

	// Category is the matched rule's category.
	Category RuleCategory

	// FilePath is the scanned file.
	FilePath string

	// LineNumber is 1-based.
	LineNumber int

	// LineContent is the trimmed matched line.
	LineContent string

	// Confidence is the rule-defined fixed confidence.
	Confidence float64

	// Method is the enclosing method span, when one exists.
	// Nil for top-level code.
	Method *MethodContext
}
