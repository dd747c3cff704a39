package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/socflow/pkg/completion"
	"github.com/zen-systems/socflow/pkg/pipeline"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"md": FormatMarkdown, "Markdown": FormatMarkdown, "pdf": FormatPDF, "gv": FormatDOT} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestExportAllFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	artifacts, err := Export(dir, sampleDocument())
	require.NoError(t, err)
	require.Len(t, artifacts, len(Formats))

	for _, a := range artifacts {
		require.NoError(t, a.Err)
		info, err := os.Stat(a.Path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}

func TestExportFailuresAreIndependent(t *testing.T) {
	artifacts, err := Export(t.TempDir(), sampleDocument(), FormatMarkdown, Format("docx"))
	require.Error(t, err)
	require.Len(t, artifacts, 2)

	assert.NoError(t, artifacts[0].Err)
	assert.FileExists(t, artifacts[0].Path)
	assert.Error(t, artifacts[1].Err)
	assert.Empty(t, artifacts[1].Path)
}

func TestFromRun(t *testing.T) {
	p, err := pipeline.New("triage",
		&pipeline.Stage{ID: "summarize", Instruction: "Summarize {{ .Alert }}"},
		&pipeline.Stage{ID: "report", Instruction: "Report", DependsOn: []string{"summarize"}},
	)
	require.NoError(t, err)
	c := completion.CompleterFunc(func(_ context.Context, req completion.Request) (*completion.Completion, error) {
		return &completion.Completion{Text: req.StageID + " text", Provider: "mock", Model: "mock-1"}, nil
	})
	runner, err := pipeline.NewRunner(c)
	require.NoError(t, err)
	run := runner.Run(context.Background(), p, "alert from 10.0.0.9")

	doc, err := FromRun(run, true)
	require.NoError(t, err)
	assert.Equal(t, "report text", doc.Report)
	assert.Equal(t, "triage", doc.Pipeline)
	assert.Equal(t, "mock/mock-1", doc.Model)
	assert.Equal(t, []Section{{Title: "summarize", Text: "summarize text"}}, doc.Stages)

	doc, err = FromRun(run, false)
	require.NoError(t, err)
	assert.Empty(t, doc.Stages)
}

func TestFromRunFailed(t *testing.T) {
	p, err := pipeline.New("single", &pipeline.Stage{ID: "only", Instruction: "x"})
	require.NoError(t, err)
	runner, err := pipeline.NewRunner(completion.CompleterFunc(func(context.Context, completion.Request) (*completion.Completion, error) {
		return nil, assert.AnError
	}))
	require.NoError(t, err)

	_, err = FromRun(runner.Run(context.Background(), p, "alert"), false)
	var notSucceeded *pipeline.RunNotSucceededError
	assert.ErrorAs(t, err, &notSucceeded)
}
