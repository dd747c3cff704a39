package report

import (
	"fmt"
	"io"
	"time"

	"github.com/nao1215/markdown"
)

// DefaultTitle heads every rendered report.
const DefaultTitle = "SOC Incident Report"

// Section is an intermediate stage output included in a document.
type Section struct {
	Title string
	Text  string
}

// Document is everything a renderer needs from a finished run.
type Document struct {
	Title       string
	RunID       string
	Pipeline    string
	Model       string
	GeneratedAt time.Time
	Alert       string
	Report      string
	// Stages are optional intermediate outputs appended after the report.
	Stages []Section
}

func (d Document) title() string {
	if d.Title == "" {
		return DefaultTitle
	}
	return d.Title
}

// WriteMarkdown renders doc as a Markdown document.
func WriteMarkdown(w io.Writer, doc Document) error {
	md := markdown.NewMarkdown(w)

	md.H1(doc.title())
	md.PlainText("")

	rows := [][]string{}
	if doc.RunID != "" {
		rows = append(rows, []string{"Run", "`" + doc.RunID + "`"})
	}
	if doc.Pipeline != "" {
		rows = append(rows, []string{"Pipeline", doc.Pipeline})
	}
	if doc.Model != "" {
		rows = append(rows, []string{"Model", doc.Model})
	}
	if !doc.GeneratedAt.IsZero() {
		rows = append(rows, []string{"Generated", doc.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")})
	}
	if len(rows) > 0 {
		md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
		md.PlainText("")
	}

	if doc.Alert != "" {
		md.H2("Alert")
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlight("text"), doc.Alert)
		md.PlainText("")
	}

	writeBlocks(md, Parse(doc.Report), 2)

	if len(doc.Stages) > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.H2("Stage Outputs")
		md.PlainText("")
		for _, s := range doc.Stages {
			md.H3(s.Title)
			md.PlainText("")
			writeBlocks(md, Parse(s.Text), 4)
		}
	}

	return md.Build()
}

// writeBlocks emits parsed blocks. Headings are shifted so the shallowest one
// lands on minLevel.
func writeBlocks(md *markdown.Markdown, blocks []Block, minLevel int) {
	shallowest := 0
	for _, b := range blocks {
		if b.Kind == BlockHeading && (shallowest == 0 || b.Level < shallowest) {
			shallowest = b.Level
		}
	}

	for _, b := range blocks {
		switch b.Kind {
		case BlockHeading:
			level := b.Level - shallowest + minLevel
			switch {
			case level <= 2:
				md.H2(b.Text)
			case level == 3:
				md.H3(b.Text)
			case level == 4:
				md.H4(b.Text)
			default:
				md.H5(b.Text)
			}
		case BlockList:
			md.BulletList(b.Items...)
		default:
			md.PlainText(b.Text)
		}
		md.PlainText("")
	}
}

// Summary renders a one-line description used in logs and notices.
func (d Document) Summary() string {
	return fmt.Sprintf("%s (%s, run %s)", d.title(), d.Pipeline, d.RunID)
}
