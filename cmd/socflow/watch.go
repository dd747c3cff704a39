package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zen-systems/socflow/pkg/pipeline"
	"github.com/zen-systems/socflow/pkg/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd(root *rootOptions) *cobra.Command {
	var (
		match        string
		pipelineName string
		model        string
		fromStart    bool
		interval     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <logfile>",
		Short: "Follow a log file and analyze matching lines",
		Long: `Follows a log file from its end and runs every new line matching --match
through the pipeline, printing one report per line. A failing run is logged
and watching continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, cleanup, err := root.service(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := []watch.Option{watch.WithLogger(root.log()), watch.WithPollInterval(interval)}
			if fromStart {
				opts = append(opts, watch.FromStart())
			}
			tailer, err := watch.NewTailer(args[0], match, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			alertColor := color.New(color.FgRed, color.Bold)
			return tailer.Run(ctx, func(ctx context.Context, line string) error {
				alertColor.Fprintf(out, "[ALERT] %s\n", line)
				run, err := svc.Analyze(ctx, line, model, pipelineName)
				if err != nil {
					return err
				}
				text, err := pipeline.TerminalOutput(run)
				if err != nil {
					root.log().Error("alert analysis failed", slog.String("run_id", run.ID), slog.Any("error", run.Err))
					return nil
				}
				fmt.Fprintln(out, text)
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&match, "match", watch.DefaultMatch, "regular expression selecting alert lines")
	cmd.Flags().StringVarP(&pipelineName, "pipeline", "p", "", "built-in pipeline name, manifest path, or auto")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model selector")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "analyze existing lines before following")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval in addition to file notifications")
	return cmd
}
