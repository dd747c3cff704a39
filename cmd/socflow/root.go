package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zen-systems/socflow/pkg/config"
	sflog "github.com/zen-systems/socflow/pkg/log"
	"github.com/zen-systems/socflow/pkg/soc"
	"github.com/zen-systems/socflow/pkg/telemetry"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	jsonLogs   bool
	logger     *slog.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "socflow",
		Short: "Autonomous SOC incident response pipelines",
		Long: `socflow runs security alerts through multi-stage LLM pipelines: each stage
receives the alert plus the outputs of the stages it depends on, and the last
stage produces the incident report.

Provider API keys are read from the environment (GEMINI_API_KEY,
ANTHROPIC_API_KEY, OPENAI_API_KEY, DEEPSEEK_API_KEY) and from a .env file in
the working directory.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			opts.logger = sflog.NewLogger(cmd.ErrOrStderr(), opts.verbose, opts.jsonLogs)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "log in JSON")

	cmd.AddCommand(NewRunCmd(opts))
	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewBatchCmd(opts))
	cmd.AddCommand(NewWatchCmd(opts))
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewPipelinesCmd())
	cmd.AddCommand(NewModelsCmd(opts))
	cmd.AddCommand(NewIntelCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file selected by --config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// service builds the SOC service. The returned cleanup flushes telemetry and
// must be called once the command is done.
func (o *rootOptions) service(ctx context.Context) (*soc.Service, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(telemetry.Options{
			ServiceName: "socflow",
			Version:     getVersion(),
			Pipeline:    cfg.Pipeline,
			Model:       cfg.Model,
			Writer:      os.Stderr,
			Logger:      o.log(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init telemetry: %w", err)
		}
		cleanup = func() {
			if err := shutdown(context.Background()); err != nil {
				o.log().Warn("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}
	}

	svc, err := soc.NewService(ctx, cfg, soc.WithLogger(o.log()))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func (o *rootOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}
