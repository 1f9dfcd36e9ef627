// Package chat implements the portfolio's AI assistant: an LLM-backed chat
// widget with redis-persisted transcripts, reachable over WebSocket with an
// HTTP fallback.
package chat

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token counts for a completion.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// CompletionRequest is a provider-neutral completion call.
type CompletionRequest struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// CompletionResponse is a provider-neutral completion result.
type CompletionResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient abstracts the model provider. The provider is chosen once at
// startup from configuration; handlers never branch on it.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
