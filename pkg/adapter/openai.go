package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
	}
}

// Generate sends a prompt to OpenAI and returns the response text.
func (a *OpenAIAdapter) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	return chatCompletion(ctx, a.client, a.Name(), openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens(req))),
		Temperature:         openai.Float(req.Temperature),
	})
}

// chatCompletion is shared by every adapter speaking the OpenAI chat format.
func chatCompletion(ctx context.Context, client openai.Client, name string, params openai.ChatCompletionNewParams) (*Response, error) {
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		adapterErr := &AdapterError{Adapter: name, Err: fmt.Errorf("%s API error: %w", name, err)}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			adapterErr.Status = apiErr.StatusCode
		}
		return nil, adapterErr
	}

	if len(resp.Choices) == 0 {
		return nil, &AdapterError{Adapter: name, Err: fmt.Errorf("%s returned no choices", name)}
	}

	usage := &Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Adapter: name,
		Model:   string(params.Model),
		Usage:   usage,
	}, nil
}
