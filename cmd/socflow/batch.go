package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zen-systems/socflow/pkg/pipeline"
	"github.com/zen-systems/socflow/pkg/report"
)

// NewBatchCmd creates the batch command.
func NewBatchCmd(root *rootOptions) *cobra.Command {
	var (
		pipelineName string
		model        string
		concurrency  int
		outDir       string
	)

	cmd := &cobra.Command{
		Use:   "batch <alert-file>...",
		Short: "Analyze several alert files concurrently",
		Long: `Runs every alert file through the same pipeline. Runs are independent;
a failing alert does not stop the others. With --out-dir each successful
report is written as <file>.md.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts := make([]string, len(args))
			for i, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read alert file: %w", err)
				}
				alerts[i] = string(data)
			}

			svc, cleanup, err := root.service(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := svc.Pipeline(pipelineName)
			if err != nil {
				return err
			}
			runner, err := svc.Runner(model)
			if err != nil {
				return err
			}

			runs, err := runner.RunBatch(cmd.Context(), p, alerts, concurrency)
			if err != nil {
				return err
			}

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0700); err != nil {
					return err
				}
			}

			names := batchReportNames(args)
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("FILE", "RUN", "STATUS", "DETAIL")
			failed := 0
			for i, run := range runs {
				detail := ""
				if run.Status != pipeline.StatusSucceeded {
					failed++
					detail = run.Err.Error()
				} else if outDir != "" {
					detail = writeBatchReport(filepath.Join(outDir, names[i]), run)
				}
				if err := table.Append([]string{args[i], run.ID, string(run.Status), detail}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d alerts failed", failed, len(runs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pipelineName, "pipeline", "p", "", "built-in pipeline name or manifest path")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model selector")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "maximum concurrent runs")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write each report as Markdown into this directory")
	return cmd
}

// batchReportNames maps alert files to report file names. Files sharing a
// base name get their argument position appended so reports do not collide.
func batchReportNames(paths []string) []string {
	bases := make([]string, len(paths))
	seen := make(map[string]int, len(paths))
	for i, path := range paths {
		bases[i] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		seen[bases[i]]++
	}
	names := make([]string, len(paths))
	for i, base := range bases {
		if seen[base] > 1 {
			base = fmt.Sprintf("%s-%d", base, i+1)
		}
		names[i] = base + ".md"
	}
	return names
}

func writeBatchReport(path string, run *pipeline.Run) string {
	doc, err := report.FromRun(run, false)
	if err != nil {
		return err.Error()
	}
	data, err := report.Render(report.FormatMarkdown, doc)
	if err != nil {
		return err.Error()
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err.Error()
	}
	return path
}
