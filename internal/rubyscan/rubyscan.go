// Package rubyscan provides linear-scan helpers over Ruby source:
// enclosing-method extraction and controller naming heuristics.
//
// Method boundaries are found with a small depth-counter state machine
// over block keywords, not a real parser. The package boundary exists
// so a parser can replace the internals later without changing callers.
package rubyscan

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

// methodStartRe matches a Ruby method definition and captures its
// indentation and name.
var methodStartRe = regexp.MustCompile(`^(\s*)def\s+([a-zA-Z_][a-zA-Z0-9_]*[!?=]?)`)

// blockOpeners are keywords that open a block when they lead a line.
var blockOpeners = map[string]bool{
	"def": true, "if": true, "unless": true, "case": true,
	"while": true, "until": true, "begin": true,
	"class": true, "module": true,
}

var (
	doWordRe  = regexp.MustCompile(`\bdo\b`)
	endWordRe = regexp.MustCompile(`\bend\b`)
)

// backwardScanLimit bounds how far above the target line the method
// definition is searched for.
const backwardScanLimit = 200

// MethodContext finds the smallest enclosing method around the given
// 1-based line. Returns nil for out-of-range lines and top-level code.
func MethodContext(content string, lineNumber int) *domain.MethodContext {
	lines := strings.Split(content, "\n")
	if lineNumber < 1 || lineNumber > len(lines) {
		return nil
	}

	startIdx := -1
	var name string

	low := lineNumber - backwardScanLimit
	if low < 0 {
		low = 0
	}
	for i := lineNumber - 1; i >= low; i-- {
		if m := methodStartRe.FindStringSubmatch(lines[i]); m != nil {
			startIdx = i
			name = m[2]
			break
		}
	}
	if startIdx < 0 {
		return nil
	}

	endIdx := -1
	depth := 0
	for i := startIdx; i < len(lines); i++ {
		depth += lineDepthDelta(lines[i])
		if depth <= 0 {
			endIdx = i
			break
		}
	}
	if endIdx < 0 {
		// Unterminated method; assume it runs to end of file.
		endIdx = len(lines) - 1
	}

	// The nearest def above the target may belong to a method that
	// already closed before the target line: then the target is
	// top-level code between methods.
	if endIdx < lineNumber-1 {
		return nil
	}

	return &domain.MethodContext{
		Name:      name,
		StartLine: startIdx + 1,
		EndLine:   endIdx + 1,
		Body:      strings.Join(lines[startIdx:endIdx+1], "\n"),
	}
}

// lineDepthDelta computes the nesting change contributed by one line:
// +1 for a leading block keyword, +1 per inline "do", -1 per "end".
// Comment lines contribute nothing.
func lineDepthDelta(line string) int {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return 0
	}

	delta := 0
	if first := firstWord(trimmed); blockOpeners[first] {
		delta++
	}
	delta += len(doWordRe.FindAllString(trimmed, -1))
	delta -= len(endWordRe.FindAllString(trimmed, -1))
	return delta
}

func firstWord(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '(' {
			return s[:i]
		}
	}
	return s
}

// ControllerName derives the Rails controller class name from a file
// path: app/controllers/users_controller.rb -> UsersController.
func ControllerName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".rb")

	parts := strings.Split(base, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}

	name := b.String()
	if !strings.HasSuffix(name, "Controller") {
		name += "Controller"
	}
	return name
}

// IsControllerPath reports whether a file path looks like a Rails
// controller. Mass-assignment rules only apply to controllers.
func IsControllerPath(path string) bool {
	norm := strings.ToLower(filepath.ToSlash(path))
	return strings.Contains(norm, "controller") ||
		strings.Contains(norm, "/app/controllers/")
}

var resourceCallRe = regexp.MustCompile(`(\w+)\.(?:new|create|update)`)

// ResourceName guesses the model resource a controller manages, for
// strong-parameter prompt building: UsersController -> "user". Falls
// back to the receiver of the vulnerable call, then to "resource".
func ResourceName(controllerName, vulnerableLine string) string {
	name := strings.TrimSuffix(controllerName, "Controller")
	name = strings.TrimSuffix(name, "s")
	if name != "" {
		return strings.ToLower(name)
	}

	if m := resourceCallRe.FindStringSubmatch(vulnerableLine); m != nil {
		return strings.ToLower(m[1])
	}
	return "resource"
}
