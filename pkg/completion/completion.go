// Package completion turns an assembled stage prompt into stage text.
package completion

import (
	"context"

	"github.com/zen-systems/socflow/pkg/adapter"
)

// Request is one stage completion.
type Request struct {
	// StageID identifies the stage for logs and metrics.
	StageID string
	// Prompt is the fully assembled stage prompt.
	Prompt string
	// Capabilities lists the capability names the stage may invoke.
	Capabilities []string
	// Model overrides the completer's default model selector when set.
	Model string
}

// CapabilityCall records one capability invocation made while completing.
type CapabilityCall struct {
	Name     string `json:"name"`
	Argument string `json:"argument"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Completion is the result of a successful completion.
type Completion struct {
	Text            string           `json:"text"`
	Provider        string           `json:"provider"`
	Model           string           `json:"model"`
	Usage           adapter.Usage    `json:"usage"`
	CapabilityCalls []CapabilityCall `json:"capability_calls,omitempty"`
}

// Completer produces text for a prompt. Implementations must be safe for
// concurrent use by independent runs.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (*Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Completion, error) {
	return f(ctx, req)
}
