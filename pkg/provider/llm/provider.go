// Package llm defines the Provider interface for chat-completion backends.
//
// The translator sends one short request per final transcript, so the
// interface is limited to a single blocking completion. Implementations wrap a
// remote or local model API and must be safe for concurrent use.
package llm

import "context"

// Roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
type CompletionRequest struct {
	// Messages is the ordered conversation. Must be non-empty.
	Messages []Message

	// Temperature in [0, 2]. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the reply length. Zero means provider default.
	MaxTokens int

	// SystemPrompt is sent ahead of Messages as a system-role turn.
	SystemPrompt string
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req and waits for the full response. It returns promptly
	// when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend in logs and metrics, e.g. "openai/gpt-4o-mini".
	Name() string
}
