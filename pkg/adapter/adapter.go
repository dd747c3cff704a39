package adapter

import "context"

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a prompt to the model and returns its text.
	Generate(ctx context.Context, req GenerateRequest) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// ModelInfo holds metadata about a model.
type ModelInfo struct {
	ID          string
	Description string
}

const defaultMaxTokens = 4096

func maxTokens(req GenerateRequest) int {
	if req.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return req.MaxTokens
}
