// Package model provides LLM integration adapters for cognition nodes.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// The engine treats a model as stateless: one request carrying a system
// message and a user message, one response string. Implementations should:
//   - Handle provider-specific authentication.
//   - Convert the standard Message format to the provider's wire format.
//   - Respect context cancellation and deadlines.
//   - Handle provider retries and rate limiting internally.
//
// Example:
//
//	m := anthropic.NewChatModel(apiKey, "claude-sonnet-4-5")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleSystem, Content: "Respond with only valid JSON."},
//	    {Role: model.RoleUser, Content: "classify: ..."},
//	}, &model.ChatOptions{Temperature: 0.3})
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response text.
	// A nil opts uses provider defaults.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (ChatOut, error)
}

// ChatOptions carries the per-call sampling parameters cognition uses.
type ChatOptions struct {
	// Temperature controls sampling randomness. Cognition pins this to 0.3
	// for format stability.
	Temperature float64

	// MaxTokens bounds the response length; 0 uses the provider default.
	MaxTokens int
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role identifies the sender; use the Role* constants.
	Role string

	// Content is the message text.
	Content string
}

// Standard role constants, aligned with the conventions of the major
// providers.
const (
	// RoleSystem sets context or instructions; system messages appear first.
	RoleSystem = "system"

	// RoleUser carries the request or input data.
	RoleUser = "user"

	// RoleAssistant carries a prior model response.
	RoleAssistant = "assistant"
)

// ChatOut represents the output of an LLM chat completion.
type ChatOut struct {
	// Text is the model's generated response.
	Text string
}
