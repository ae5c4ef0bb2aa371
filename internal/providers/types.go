package providers

import "context"

// Provider is the interface the generation collaborator must implement.
type Provider interface {
	// Chat sends the message list to the model and returns a single completion.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "openrouter").
	Name() string
}

// Message represents one role-tagged conversation entry.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest contains the input for a Chat call.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the result from a completion call.
type ChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"` // "stop", "length"
	Usage        *Usage `json:"usage,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
