// Package llm defines the TextGenerator interface for large language model
// backends.
//
// A TextGenerator wraps a remote or local model API (OpenAI, Anthropic,
// Ollama and others) and exposes a single request/response completion call.
// The speaking-practice service uses it to phrase bilingual feedback and to
// estimate a quality score for an utterance; it never depends on a specific
// SDK.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// TextGenerator is the abstraction over any text-generation backend.
type TextGenerator interface {
	// Complete sends req to the model and blocks until the full response is
	// available or ctx is cancelled.
	//
	// Returns an error on network failure, authentication failure, an empty
	// response, or context cancellation. The caller owns the returned value.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
