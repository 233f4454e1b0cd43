package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no API key was supplied. Callers degrade
// to a fixed apology message instead of propagating it to the patient.
var ErrNotConfigured = errors.New("completion service not configured")

// Request is one completion call: a system instruction, a user instruction,
// and sampling bounds. The service returns free text.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Client is the completion-service boundary consumed by the dialogue policy
// and the upload analyzer.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIClient calls an OpenAI-compatible chat completion API. The base URL is
// configurable so Groq or a local gateway can serve it.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient constructs the client. An empty apiKey yields a client whose
// calls fail with ErrNotConfigured; the server still boots so document uploads
// and dashboards keep working without a key.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if apiKey == "" {
		return &OpenAIClient{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends the instructions to the chat completion API and returns the
// raw assistant text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
