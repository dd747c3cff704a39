package adapter

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// Add returns the sum of two usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		Estimated:        u.Estimated || other.Estimated,
	}
}

// GenerateRequest is a single text-completion call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response wraps an adapter output and optional usage data.
type Response struct {
	Content string
	Adapter string
	Model   string
	Usage   *Usage
}
