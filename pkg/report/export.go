package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zen-systems/socflow/pkg/pipeline"
)

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatDOT      Format = "dot"
)

// Formats lists every supported export format.
var Formats = []Format{FormatMarkdown, FormatPDF, FormatDOT}

// ParseFormat accepts a format name or its file extension.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	case "dot", "graph", "gv":
		return FormatDOT, nil
	default:
		return "", fmt.Errorf("unknown report format %q", name)
	}
}

// FileName is the file an export of this format is written to.
func (f Format) FileName() string {
	switch f {
	case FormatMarkdown:
		return "report.md"
	case FormatPDF:
		return "report.pdf"
	case FormatDOT:
		return "threat.dot"
	default:
		return "report." + string(f)
	}
}

// FromRun builds a document from a succeeded run. When withStages is set the
// non-terminal stage outputs are included in completion order.
func FromRun(run *pipeline.Run, withStages bool) (Document, error) {
	text, err := pipeline.TerminalOutput(run)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		RunID:       run.ID,
		GeneratedAt: run.FinishedAt,
		Alert:       run.Alert,
		Report:      text,
	}
	if run.Pipeline != nil {
		doc.Pipeline = run.Pipeline.Name()
		if out, ok := run.Output(run.Pipeline.Terminal()); ok && out.Model != "" {
			doc.Model = out.Provider + "/" + out.Model
		}
	}
	if withStages && run.Pipeline != nil {
		for _, out := range run.Outputs() {
			if out.StageID == run.Pipeline.Terminal() {
				continue
			}
			doc.Stages = append(doc.Stages, Section{Title: out.StageID, Text: out.Text})
		}
	}
	return doc, nil
}

// Render produces the bytes of doc in the given format.
func Render(format Format, doc Document) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatMarkdown:
		if err := WriteMarkdown(&buf, doc); err != nil {
			return nil, err
		}
	case FormatPDF:
		if err := WritePDF(&buf, doc); err != nil {
			return nil, err
		}
	case FormatDOT:
		buf.WriteString(ThreatGraph(GraphInputFromAlert(doc.Alert)))
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	return buf.Bytes(), nil
}

// Artifact is the outcome of exporting one format.
type Artifact struct {
	Format Format
	Path   string
	Err    error
}

// Export writes doc to dir in each requested format, defaulting to all of
// them. Every format is attempted; the returned error joins the failures.
func Export(dir string, doc Document, formats ...Format) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = Formats
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(formats))
	var errs []error
	for _, f := range formats {
		a := Artifact{Format: f, Path: filepath.Join(dir, f.FileName())}
		data, err := Render(f, doc)
		if err == nil {
			err = os.WriteFile(a.Path, data, 0600)
		}
		if err != nil {
			a.Path = ""
			a.Err = fmt.Errorf("export %s: %w", f, err)
			errs = append(errs, a.Err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, errors.Join(errs...)
}
