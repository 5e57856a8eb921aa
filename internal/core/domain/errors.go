package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed caller input, such as empty
	// text handed to the embedder. Always surfaced, never swallowed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery indicates an empty or whitespace-only retrieval
	// query. Distinct from "no results found" by contract.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIndexNotReady indicates the vector index is missing, empty,
	// or misaligned with its chunk metadata. Fatal for retrieval;
	// analysis degrades to pattern-only mode instead of failing.
	ErrIndexNotReady = errors.New("vector index not ready")

	// ErrGenerationTimeout indicates a generation call exceeded its
	// per-call deadline. Transient and per-hit.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrGenerationFailed indicates a transient generation service
	// failure. Retryable; triggers the pattern-only fallback per hit.
	ErrGenerationFailed = errors.New("generation service failed")

	// ErrContentPolicy indicates the generation service refused the
	// prompt. Non-retryable; treated as permanent for that hit.
	ErrContentPolicy = errors.New("content policy rejection")

	// ErrParse indicates generated text did not match the structured
	// suggestion schema.
	ErrParse = errors.New("structured output parse failed")
)

// IngestionRecordError reports a single malformed record skipped during
// batch ingestion. The batch continues past it.
type IngestionRecordError struct {
	// Record identifies the offending record (path or diff identifier).
	Record string

	// Reason explains why the record was skipped.
	Reason string
}

// Error implements the error interface.
func (e *IngestionRecordError) Error() string {
	return "ingestion: skipped " + e.Record + ": " + e.Reason
}
