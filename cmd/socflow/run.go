package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zen-systems/socflow/pkg/evidence"
	"github.com/zen-systems/socflow/pkg/pipeline"
	"github.com/zen-systems/socflow/pkg/report"
)

// SampleAlert is analyzed when no alert is given.
const SampleAlert = "[ALERT] 2025-11-29 19:57 IST\n" +
	"Multiple failed SSH login attempts detected.\n" +
	"Source IP: 45.12.34.7\n" +
	"Target: Ubuntu-Prod-Server-04\n" +
	"Attempts: 56\n" +
	"Status: Blocked by Fail2Ban\n"

// alertsFile is read from the working directory when no alert is given.
const alertsFile = "alerts.txt"

// readAlert picks the alert text: arguments, then --file, then alerts.txt in
// dir, then SampleAlert. It also names where the text came from.
func readAlert(args []string, file, dir string) (string, string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), "arguments", nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", "", fmt.Errorf("failed to read alert file: %w", err)
		}
		return string(data), file, nil
	}
	path := filepath.Join(dir, alertsFile)
	if data, err := os.ReadFile(path); err == nil {
		return string(data), alertsFile, nil
	}
	return SampleAlert, "built-in sample", nil
}

type runOptions struct {
	file       string
	pipeline   string
	model      string
	out        string
	pdf        string
	markdown   string
	graph      string
	showStages bool
}

// NewRunCmd creates the run command.
func NewRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [alert text...]",
		Short: "Analyze one alert and print the incident report",
		Long: `Runs an alert through a pipeline and prints the final report.

The alert is taken from the arguments, then --file, then alerts.txt in the
working directory, and finally a built-in sample alert.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			alert, source, err := readAlert(args, opts.file, wd)
			if err != nil {
				return err
			}

			svc, cleanup, err := root.service(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			root.log().Debug("alert loaded", slog.String("source", source))
			run, err := svc.Analyze(cmd.Context(), alert, opts.model, opts.pipeline)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.showStages {
				printStages(out, run)
			}

			evidenceDir := opts.out
			if evidenceDir == "" {
				evidenceDir = svc.Config().Evidence.Dir
			}
			if evidenceDir != "" {
				dir, err := evidence.Export(evidenceDir, run)
				if err != nil {
					root.log().Warn("evidence export failed", slog.String("error", err.Error()))
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "Evidence: %s\n", dir)
				}
			}

			if run.Status != pipeline.StatusSucceeded {
				color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(), "Run %s failed at stage %s\n", run.ID, run.FailedStage)
				return run.Err
			}

			doc, err := report.FromRun(run, opts.showStages)
			if err != nil {
				return err
			}

			color.New(color.FgCyan, color.Bold).Fprintln(out, "=== FINAL REPORT ===")
			fmt.Fprintln(out, doc.Report)

			writeExports(cmd.ErrOrStderr(), root.log(), doc, map[report.Format]string{
				report.FormatMarkdown: opts.markdown,
				report.FormatPDF:      opts.pdf,
				report.FormatDOT:      opts.graph,
			})
			printSummary(cmd.ErrOrStderr(), run)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read the alert from a file")
	cmd.Flags().StringVarP(&opts.pipeline, "pipeline", "p", "", "built-in pipeline name, manifest path, or auto (default from config)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model selector such as gemini/gemini-2.0-flash or an alias")
	cmd.Flags().StringVar(&opts.out, "out", "", "export run evidence under this directory")
	cmd.Flags().StringVar(&opts.pdf, "pdf", "", "write the report as PDF to this path")
	cmd.Flags().StringVar(&opts.markdown, "markdown", "", "write the report as Markdown to this path")
	cmd.Flags().StringVar(&opts.graph, "graph", "", "write the threat graph as Graphviz DOT to this path")
	cmd.Flags().BoolVar(&opts.showStages, "show-stages", false, "print every stage output before the report")

	return cmd
}

// writeExports renders each requested format. A failing format is reported
// and the others are still written.
func writeExports(w io.Writer, logger *slog.Logger, doc report.Document, paths map[report.Format]string) {
	for _, f := range report.Formats {
		path := paths[f]
		if path == "" {
			continue
		}
		data, err := report.Render(f, doc)
		if err == nil {
			err = os.WriteFile(path, data, 0600)
		}
		if err != nil {
			logger.Warn("report export failed", slog.String("format", string(f)), slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintf(w, "%s written to %s\n", f, path)
	}
}

func printStages(w io.Writer, run *pipeline.Run) {
	heading := color.New(color.FgYellow, color.Bold)
	for _, out := range run.Outputs() {
		heading.Fprintf(w, "=== %s (%s/%s, %s) ===\n", strings.ToUpper(out.StageID), out.Provider, out.Model, out.Duration.Round(time.Millisecond))
		fmt.Fprintln(w, out.Text)
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, run *pipeline.Run) {
	usage := run.Usage()
	line := fmt.Sprintf("Run %s: %d stages in %s, %s tokens", run.ID, len(run.Outputs()), run.Duration().Round(time.Millisecond), humanize.Comma(int64(usage.TotalTokens)))
	if usage.Estimated {
		line += " (estimated)"
	}
	if run.Cost != nil {
		line += fmt.Sprintf(", ~$%s", humanize.FtoaWithDigits(run.Cost.Amount, 4))
		if len(run.Cost.Unpriced) > 0 {
			line += fmt.Sprintf(" (%d unpriced stages)", len(run.Cost.Unpriced))
		}
	}
	fmt.Fprintln(w, line)
}
