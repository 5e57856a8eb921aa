// Package chunker provides sliding-window text chunking for corpus
// ingestion. Window size and overlap are configuration, not hardcoded.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultWindowSize is the default number of characters per chunk.
// The target chunk length is 800-1600 characters; 1200 sits in the
// middle of that band.
const DefaultWindowSize = 1200

// DefaultOverlap is the default overlap between consecutive chunks,
// roughly 15% of the window, to preserve context across boundaries.
const DefaultOverlap = 180

// Span is one window over the source text.
type Span struct {
	// Start and End are byte offsets into the source text.
	Start int
	End   int

	// Text is the trimmed window content.
	Text string
}

// Chunker splits long-form text into overlapping windows.
type Chunker struct {
	windowSize int
	overlap    int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithWindowSize sets the window size in characters.
func WithWindowSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.windowSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		windowSize: DefaultWindowSize,
		overlap:    DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave forward progress per step.
	if c.overlap >= c.windowSize {
		c.overlap = c.windowSize / 4
	}

	return c
}

// WindowSize returns the configured window size.
func (c *Chunker) WindowSize() int {
	return c.windowSize
}

// Split breaks text into overlapping spans. Window boundaries are
// nudged back to the nearest preceding whitespace so a chunk never
// ends mid-word; the overlap keeps the dropped tail in the next span.
// Empty or whitespace-only text produces no spans.
func (c *Chunker) Split(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	textLen := len(text)
	step := c.windowSize - c.overlap

	estimated := textLen/step + 1
	spans := make([]Span, 0, estimated)

	start := 0
	for start < textLen {
		end := start + c.windowSize
		if end >= textLen {
			end = textLen
		} else if cut := wordSafeCut(text, start, end); cut > start {
			end = cut
		} else {
			// Single unbroken token; hard cut, stepped back to a rune
			// boundary so a multi-byte character is never split.
			for end > start+1 && !utf8.RuneStart(text[end]) {
				end--
			}
		}

		trimmed := strings.TrimSpace(text[start:end])
		if trimmed != "" {
			spans = append(spans, Span{Start: start, End: end, Text: trimmed})
		}

		if end == textLen {
			break
		}
		next := end - c.overlap
		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			// Degenerate window (whitespace right after start);
			// fall forward without overlap to guarantee progress.
			next = end
		}
		start = next
	}

	return spans
}

// wordSafeCut walks back from end to the nearest whitespace boundary.
// Returns start when the window holds a single unbroken token, in which
// case the caller keeps a rune-aligned hard cut.
func wordSafeCut(text string, start, end int) int {
	for i := end; i > start; i-- {
		if isSpace(text[i-1]) {
			return i
		}
	}
	return start
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
