// Package anthropic provides a ChatModel adapter for Anthropic's Claude API.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/oswaldoh/agentflow-go/flow/model"
)

// defaultMaxTokens bounds responses when the caller does not.
const defaultMaxTokens = 4096

// ChatModel implements model.ChatModel for Anthropic's Claude API.
//
// Provides access to Claude models with:
//   - System prompt extraction (Anthropic uses a separate system parameter)
//   - Temperature and max-token passthrough
//   - Context cancellation
//
// Example:
//
//	m := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	out, err := m.Chat(ctx, messages, &model.ChatOptions{Temperature: 0.3})
type ChatModel struct {
	apiKey    string
	modelName string
	client    anthropicClient
}

// anthropicClient defines the interface for Anthropic API operations.
// This allows for easy mocking in tests.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []model.Message, opts *model.ChatOptions) (model.ChatOut, error)
}

// NewChatModel creates a new Anthropic ChatModel. An empty modelName uses the
// current default Claude Sonnet model.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, opts *model.ChatOptions) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}
	systemPrompt, conversation := extractSystemPrompt(messages)
	return m.client.createMessage(ctx, systemPrompt, conversation, opts)
}

// extractSystemPrompt separates system messages from the conversation;
// Anthropic's API expects system prompts as a separate parameter.
func extractSystemPrompt(messages []model.Message) (string, []model.Message) {
	var systemPrompt string
	var conversation []model.Message
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		} else {
			conversation = append(conversation, msg)
		}
	}
	return systemPrompt, conversation
}

// defaultClient wraps the official Anthropic SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt string, messages []model.Message, opts *model.ChatOptions) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	maxTokens := int64(defaultMaxTokens)
	if opts != nil && opts.MaxTokens > 0 {
		maxTokens = int64(opts.MaxTokens)
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertMessages(messages),
		MaxTokens: maxTokens,
	}
	if opts != nil {
		params.Temperature = anthropicsdk.Float(opts.Temperature)
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return convertResponse(resp), nil
}

// convertMessages converts our Message format to Anthropic's format.
func convertMessages(messages []model.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleAssistant:
			result[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			// System messages are handled separately; anything else is user.
			result[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return result
}

// convertResponse flattens Anthropic's content blocks into response text.
func convertResponse(resp *anthropicsdk.Message) model.ChatOut {
	out := model.ChatOut{}
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		}
	}
	return out
}
