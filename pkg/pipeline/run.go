package pipeline

import (
	"time"

	"github.com/zen-systems/socflow/pkg/adapter"
	"github.com/zen-systems/socflow/pkg/completion"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// StageOutput is the immutable result of one completed stage.
type StageOutput struct {
	StageID         string                      `json:"stage_id"`
	Text            string                      `json:"text"`
	CompletedAt     time.Time                   `json:"completed_at"`
	Provider        string                      `json:"provider,omitempty"`
	Model           string                      `json:"model,omitempty"`
	Usage           adapter.Usage               `json:"usage"`
	Duration        time.Duration               `json:"duration"`
	CapabilityCalls []completion.CapabilityCall `json:"capability_calls,omitempty"`
}

// Run is one execution of a pipeline against one alert.
// Runs share no mutable state with each other.
type Run struct {
	ID          string
	Pipeline    *Pipeline
	Alert       string
	Status      Status
	FailedStage string
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
	Cost        *Cost

	outputs   map[string]StageOutput
	completed []string
}

func newRun(id string, p *Pipeline, alert string, now time.Time) *Run {
	return &Run{
		ID:        id,
		Pipeline:  p,
		Alert:     alert,
		Status:    StatusRunning,
		StartedAt: now,
		outputs:   make(map[string]StageOutput),
	}
}

func (r *Run) record(out StageOutput) {
	r.outputs[out.StageID] = out
	r.completed = append(r.completed, out.StageID)
}

// Outputs returns the recorded stage outputs in completion order.
func (r *Run) Outputs() []StageOutput {
	out := make([]StageOutput, 0, len(r.completed))
	for _, id := range r.completed {
		out = append(out, r.outputs[id])
	}
	return out
}

// Output returns the recorded output for a stage.
func (r *Run) Output(stageID string) (StageOutput, bool) {
	out, ok := r.outputs[stageID]
	return out, ok
}

// Usage sums token usage across completed stages.
func (r *Run) Usage() adapter.Usage {
	var total adapter.Usage
	for _, id := range r.completed {
		total = total.Add(r.outputs[id].Usage)
	}
	return total
}

// Duration returns the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TerminalOutput returns the text of the terminal stage of a succeeded run.
func TerminalOutput(r *Run) (string, error) {
	if r == nil {
		return "", &RunNotSucceededError{Status: StatusFailed}
	}
	if r.Status != StatusSucceeded {
		return "", &RunNotSucceededError{RunID: r.ID, Status: r.Status}
	}
	out, ok := r.outputs[r.Pipeline.Terminal()]
	if !ok {
		return "", &StageNotFoundError{Stage: r.Pipeline.Terminal()}
	}
	return out.Text, nil
}

// StageOutputText returns the text a stage produced in r.
func StageOutputText(r *Run, stageID string) (string, error) {
	if r == nil {
		return "", &StageNotFoundError{Stage: stageID}
	}
	out, ok := r.outputs[stageID]
	if !ok {
		return "", &StageNotFoundError{Stage: stageID}
	}
	return out.Text, nil
}
