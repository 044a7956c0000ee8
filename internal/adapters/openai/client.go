// Package openai wraps the OpenAI chat completions API for the LLM
// improvement tool.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/agentworkbench/workbench/internal/core"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-3.5-turbo"

// Usage reports the token consumption of one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client wraps a go-openai client with a fixed model.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates an OpenAI client. An empty model falls back to
// DefaultModel.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// ProviderTag returns the cost-tracking provider tag for this client.
func (c *Client) ProviderTag() string {
	return "openai-" + c.model
}

// Complete sends a single-turn chat completion and returns the reply
// content with its token usage.
func (c *Client) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   1500,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", Usage{}, core.ErrNetwork("OPENAI_REQUEST_FAILED", "chat completion failed").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices in completion response")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}
