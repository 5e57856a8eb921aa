package services

import (
	"regexp"
	"strings"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/rubyscan"
)

// safeLineRes match lines that already use strong parameters (or are
// comments). Unsafe-category rules skip these to avoid flagging code
// that is already guarded.
var safeLineRes = []*regexp.Regexp{
	regexp.MustCompile(`params\[[^\]]*\]\.permit\(`),
	regexp.MustCompile(`params\.require\(`),
	regexp.MustCompile(`params\.permit\(`),
	regexp.MustCompile(`^\s*def\s+\w+_params\b`),
	regexp.MustCompile(`^\s*#`),
}

// PatternDetector is the deterministic rule engine: a linear scan over
// source lines evaluating an immutable rule set. Given identical input
// and rules, output is byte-for-byte identical across runs. Detectors
// hold no mutable state, so scans may run fully in parallel across
// files.
type PatternDetector struct {
	rules domain.RuleSet
}

// NewPatternDetector creates a detector bound to a rule set.
func NewPatternDetector(rules domain.RuleSet) *PatternDetector {
	return &PatternDetector{rules: rules}
}

// RuleSet returns the rule set the detector was built with.
func (d *PatternDetector) RuleSet() domain.RuleSet {
	return d.rules
}

// Detect scans file content line by line against the full rule set.
// A line may match multiple rules; all matches are retained.
//
// Unsafe-category rules only apply to controller files and skip lines
// already guarded by strong parameters. Deprecation rules skip lines
// touching raw params, which belong to the mass-assignment path.
func (d *PatternDetector) Detect(filePath, content string) []domain.DetectionHit {
	lines := strings.Split(content, "\n")
	isController := rubyscan.IsControllerPath(filePath)

	var hits []domain.DetectionHit
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		lineNum := i + 1
		safe := isSafeLine(line)

		for _, rule := range d.rules.Rules {
			if rule.Category == domain.CategoryUnsafe {
				if !isController || safe {
					continue
				}
			} else if strings.Contains(line, "params[") {
				continue
			}

			if !rule.Pattern.MatchString(line) {
				continue
			}

			hit := domain.DetectionHit{
				RuleID:      rule.ID,
				Category:    rule.Category,
				FilePath:    filePath,
				LineNumber:  lineNum,
				LineContent: trimmed,
				Confidence:  rule.Confidence,
			}
			if rule.Category == domain.CategoryUnsafe {
				hit.Method = rubyscan.MethodContext(content, lineNum)
			}
			hits = append(hits, hit)
		}
	}

	return hits
}

// FindVulnerableLines flags known-unsafe constructs only, regardless
// of file path. This is the distinguished security category: hits here
// carry elevated default risk downstream.
func (d *PatternDetector) FindVulnerableLines(content string) []domain.DetectionHit {
	lines := strings.Split(content, "\n")

	var hits []domain.DetectionHit
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSafeLine(line) {
			continue
		}

		for _, rule := range d.rules.Unsafe() {
			if !rule.Pattern.MatchString(line) {
				continue
			}
			hits = append(hits, domain.DetectionHit{
				RuleID:      rule.ID,
				Category:    rule.Category,
				LineNumber:  i + 1,
				LineContent: trimmed,
				Confidence:  rule.Confidence,
			})
		}
	}

	return hits
}

func isSafeLine(line string) bool {
	for _, re := range safeLineRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
