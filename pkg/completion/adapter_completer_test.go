package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/socflow/pkg/adapter"
	"github.com/zen-systems/socflow/pkg/capability"
	"github.com/zen-systems/socflow/pkg/config"
	"github.com/zen-systems/socflow/pkg/metrics"
)

// scriptedAdapter replies with each scripted answer in turn and records prompts.
type scriptedAdapter struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	err     error
}

func (a *scriptedAdapter) Generate(_ context.Context, req adapter.GenerateRequest) (*adapter.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, req.Prompt)
	if a.err != nil {
		return nil, a.err
	}
	reply := "done"
	if len(a.replies) > 0 {
		reply = a.replies[0]
		a.replies = a.replies[1:]
	}
	return &adapter.Response{Content: reply, Model: req.Model, Usage: &adapter.Usage{PromptTokens: 3, CompletionTokens: 2}}, nil
}

func (a *scriptedAdapter) Name() string     { return "scripted" }
func (a *scriptedAdapter) Models() []string { return []string{"scripted-1"} }

func newRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	logs, err := capability.NewLogReader(t.TempDir())
	require.NoError(t, err)
	reg, err := capability.NewRegistry(capability.NewReputationLookup(nil), logs)
	require.NoError(t, err)
	reg.Freeze()
	return reg
}

func newCompleter(t *testing.T, a adapter.Adapter, opts ...Option) *AdapterCompleter {
	t.Helper()
	opts = append([]Option{WithRegistry(newRegistry(t))}, opts...)
	c, err := NewAdapterCompleter(map[string]adapter.Adapter{"mock": a}, config.ModelRef{Provider: "mock", Model: "mock-1"}, opts...)
	require.NoError(t, err)
	return c
}

func TestCompletePlainPrompt(t *testing.T) {
	fake := &scriptedAdapter{replies: []string{"summary text"}}
	c := newCompleter(t, fake)

	out, err := c.Complete(context.Background(), Request{StageID: "summarize", Prompt: "Summarize this"})
	require.NoError(t, err)
	assert.Equal(t, "summary text", out.Text)
	assert.Equal(t, "mock", out.Provider)
	assert.Equal(t, 5, out.Usage.TotalTokens)
	assert.Equal(t, []string{"Summarize this"}, fake.prompts)
}

func TestCompleteIgnoresCallLinesWithoutCapabilities(t *testing.T) {
	fake := &scriptedAdapter{replies: []string{"CALL check_ip_reputation(1.2.3.4)"}}
	c := newCompleter(t, fake)

	out, err := c.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "CALL check_ip_reputation(1.2.3.4)", out.Text)
}

func TestCompleteInvokesCapability(t *testing.T) {
	fake := &scriptedAdapter{replies: []string{
		"CALL check_ip_reputation(45.12.34.7)",
		"The source is malicious.",
	}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newCompleter(t, fake, WithMetrics(m))

	out, err := c.Complete(context.Background(), Request{
		StageID:      "threat_intel",
		Prompt:       "Investigate",
		Capabilities: []string{capability.ReputationName},
	})
	require.NoError(t, err)
	assert.Equal(t, "The source is malicious.", out.Text)
	require.Len(t, out.CapabilityCalls, 1)
	assert.Equal(t, "45.12.34.7", out.CapabilityCalls[0].Argument)
	rec, ok := out.CapabilityCalls[0].Result.(capability.ReputationRecord)
	require.True(t, ok)
	assert.Equal(t, 85, rec.RiskScore)

	require.Len(t, fake.prompts, 2)
	assert.Contains(t, fake.prompts[0], "## Tools")
	assert.Contains(t, fake.prompts[0], "check_ip_reputation:")
	assert.Contains(t, fake.prompts[1], `RESULT check_ip_reputation: {"ip":"45.12.34.7","risk_score":85`)
	assert.Equal(t, 10, out.Usage.TotalTokens)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapabilityCallsTotal.WithLabelValues(capability.ReputationName, "ok")))
}

func TestCompleteDeniesCapabilityOutsideStage(t *testing.T) {
	fake := &scriptedAdapter{replies: []string{"CALL read_log_file(auth.log)", "final"}}
	c := newCompleter(t, fake)

	out, err := c.Complete(context.Background(), Request{
		Prompt:       "Investigate",
		Capabilities: []string{capability.ReputationName},
	})
	require.NoError(t, err)
	assert.Equal(t, "final", out.Text)
	require.Len(t, out.CapabilityCalls, 1)
	assert.Contains(t, out.CapabilityCalls[0].Error, "not available")
	assert.Contains(t, fake.prompts[1], "RESULT read_log_file:")
}

func TestCompleteCapabilityFailureFails(t *testing.T) {
	fake := &scriptedAdapter{replies: []string{"CALL read_log_file(missing.log)"}}
	c := newCompleter(t, fake)

	_, err := c.Complete(context.Background(), Request{
		Prompt:       "Analyze",
		Capabilities: []string{capability.LogReaderName},
	})
	var capErr *capability.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capability.LogReaderName, capErr.Name)
}

func TestCompleteCallLimit(t *testing.T) {
	fake := &scriptedAdapter{replies: []string{
		"CALL check_ip_reputation(a)",
		"CALL check_ip_reputation(b)",
		"CALL check_ip_reputation(c)",
	}}
	c := newCompleter(t, fake, WithMaxCapabilityCalls(2))

	_, err := c.Complete(context.Background(), Request{
		StageID:      "threat_intel",
		Prompt:       "p",
		Capabilities: []string{capability.ReputationName},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 2 capability calls")
}

func TestCompleteUnknownCapabilityInRequest(t *testing.T) {
	c := newCompleter(t, &scriptedAdapter{})

	_, err := c.Complete(context.Background(), Request{Prompt: "p", Capabilities: []string{"port_scan"}})
	assert.ErrorIs(t, err, capability.ErrUnknownCapability)
}

func TestCompleteAdapterError(t *testing.T) {
	c := newCompleter(t, &scriptedAdapter{err: errors.New("quota exhausted")})

	_, err := c.Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestCompleteEstimatesUsage(t *testing.T) {
	c := newCompleter(t, adapter.NewMockAdapter())

	out, err := c.Complete(context.Background(), Request{Prompt: "Summarize the alert"})
	require.NoError(t, err)
	assert.True(t, out.Usage.Estimated)
	assert.Positive(t, out.Usage.PromptTokens)
	assert.True(t, strings.HasPrefix(out.Text, "mock response:"))
}

func TestCompleteModelOverride(t *testing.T) {
	c := newCompleter(t, &scriptedAdapter{})

	_, err := c.Complete(context.Background(), Request{Prompt: "p", Model: "gemini/gemini-2.0-flash"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "google"`)

	out, err := c.Complete(context.Background(), Request{Prompt: "p", Model: "offline"})
	require.NoError(t, err)
	assert.Equal(t, "mock-1", out.Model)
}

func TestNewAdapterCompleterRequiresDefaultAdapter(t *testing.T) {
	_, err := NewAdapterCompleter(map[string]adapter.Adapter{}, config.ModelRef{Provider: "google", Model: "gemini-2.0-flash"})
	require.Error(t, err)
}

func TestParseCall(t *testing.T) {
	name, arg, ok := parseCall("\n  CALL check_ip_reputation(\"45.12.34.7\")  \nextra")
	require.True(t, ok)
	assert.Equal(t, "check_ip_reputation", name)
	assert.Equal(t, "45.12.34.7", arg)

	_, _, ok = parseCall("The IP is bad.\nCALL check_ip_reputation(1.1.1.1)")
	assert.False(t, ok)
}
