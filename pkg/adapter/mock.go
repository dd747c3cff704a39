package adapter

import (
	"context"
	"fmt"
	"strings"
)

// MockRule answers any prompt containing Contains with Response.
type MockRule struct {
	Contains string
	Response string
}

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	responses       map[string]string
	rules           []MockRule
	defaultResponse string
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// NewMockAdapterWithRules creates a mock adapter that matches prompts by substring.
// Rules are checked in order after exact prompt matches.
func NewMockAdapterWithRules(rules []MockRule, defaultResponse string) *MockAdapter {
	a := NewMockAdapterWithResponses(nil, defaultResponse)
	a.rules = rules
	return a
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(_ context.Context, req GenerateRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "mock-1"
	}
	if response, ok := a.responses[req.Prompt]; ok {
		return &Response{Content: response, Adapter: a.Name(), Model: model, Usage: a.Usage}, nil
	}
	for _, rule := range a.rules {
		if strings.Contains(req.Prompt, rule.Contains) {
			return &Response{Content: rule.Response, Adapter: a.Name(), Model: model, Usage: a.Usage}, nil
		}
	}
	content := fmt.Sprintf("%s\n%s", a.defaultResponse, req.Prompt)
	return &Response{Content: content, Adapter: a.Name(), Model: model, Usage: a.Usage}, nil
}
