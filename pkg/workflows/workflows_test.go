package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"incident", "logs", "summary", "threat", "triage"}, Names())
}

func TestAllBuiltinsLoad(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Load(name)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name())
			assert.NotEmpty(t, p.Order())
		})
	}
}

func TestThreatPipelineShape(t *testing.T) {
	p, err := Load(Default)
	require.NoError(t, err)

	assert.Equal(t, []string{"summarize", "threat_intel", "mitigate", "report"}, p.Order())
	assert.Equal(t, "report", p.Terminal())

	intel, ok := p.Stage("threat_intel")
	require.True(t, ok)
	assert.Equal(t, []string{"check_ip_reputation"}, intel.Capabilities)
}

func TestLogsPipelineUsesLogReader(t *testing.T) {
	p, err := Load("logs")
	require.NoError(t, err)

	s, ok := p.Stage("analyze_logs")
	require.True(t, ok)
	assert.Equal(t, []string{"read_log_file"}, s.Capabilities)
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: incident")
}
