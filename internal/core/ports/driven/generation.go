package driven

import "context"

// GenerationService is the external language-model collaborator.
// It is an opaque synchronous text-completion call: no contract exists
// on internal behaviour beyond "returns text or fails".
//
// Failure classification matters to callers: transient failures
// (timeouts, 5xx, rate limits) map to domain.ErrGenerationFailed or
// domain.ErrGenerationTimeout and are retryable; content-policy
// rejections map to domain.ErrContentPolicy and are permanent for
// that prompt.
//
// Implementations may include:
//   - OpenAI (chat completions)
//   - Anthropic (messages)
//   - Ollama (local models)
type GenerationService interface {
	// Generate produces a text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
