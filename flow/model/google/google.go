// Package google provides a ChatModel adapter for Google's Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/oswaldoh/agentflow-go/flow/model"
)

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// Provides access to Gemini models with:
//   - System instruction passthrough
//   - Temperature and max-token passthrough
//   - Context cancellation
//
// Example:
//
//	m := google.NewChatModel(os.Getenv("GOOGLE_API_KEY"), "gemini-2.0-flash")
//	out, err := m.Chat(ctx, messages, &model.ChatOptions{Temperature: 0.3})
type ChatModel struct {
	apiKey    string
	modelName string
	client    googleClient
}

// googleClient defines the interface for Gemini API operations.
// This allows for easy mocking in tests.
type googleClient interface {
	generateContent(ctx context.Context, messages []model.Message, opts *model.ChatOptions) (model.ChatOut, error)
}

// NewChatModel creates a new Google ChatModel. An empty modelName uses
// gemini-2.0-flash.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.0-flash"
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
	return m.client.generateContent(ctx, messages, opts)
}

// defaultClient wraps the official Gemini SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []model.Message, opts *model.ChatOptions) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	genModel := client.GenerativeModel(c.modelName)
	if opts != nil {
		temp := float32(opts.Temperature)
		genModel.Temperature = &temp
		if opts.MaxTokens > 0 {
			maxTokens := int32(opts.MaxTokens)
			genModel.MaxOutputTokens = &maxTokens
		}
	}

	system, parts := convertMessages(messages)
	if system != "" {
		genModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google API error: %w", err)
	}
	return convertResponse(resp), nil
}

// convertMessages separates the system instruction and flattens the
// remaining conversation into text parts.
func convertMessages(messages []model.Message) (string, []genai.Part) {
	var system string
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return system, parts
}

// convertResponse flattens Gemini candidates into response text.
func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				if out.Text != "" {
					out.Text += "\n"
				}
				out.Text += string(text)
			}
		}
	}
	return out
}
