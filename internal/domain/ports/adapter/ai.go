package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM chat used by the rewrite gateway.
type AIServiceAdapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Chat returns only the assistant text
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	ChatWithUsage(ctx context.Context, messages []Message) (string, Usage, error)
}
