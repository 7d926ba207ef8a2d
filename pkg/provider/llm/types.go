package llm

// Roles accepted in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the plain-text body of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a
// response. At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional instruction placed before Messages.
	SystemPrompt string

	// Messages is the ordered conversation; the last entry is usually from
	// the user.
	Messages []Message

	// Temperature controls randomness in [0.0, 2.0]. Zero leaves the
	// provider default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// JSONOutput asks the backend to constrain its output to a single JSON
	// object when it supports doing so. Callers must still validate the
	// result.
	JSONOutput bool
}

// FinishLength is the [CompletionResponse.FinishReason] of a reply cut off
// by [CompletionRequest.MaxTokens].
const FinishLength = "length"

// CompletionResponse is the complete, non-streamed model output.
type CompletionResponse struct {
	Content string
	Usage   Usage

	// FinishReason is the backend's stop reason ("stop", [FinishLength]),
	// empty when the backend does not report one.
	FinishReason string
}
