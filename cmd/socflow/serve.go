package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zen-systems/socflow/pkg/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the alert analysis HTTP API",
		Long: `Starts the HTTP API.

  POST /analyze_alert  {"alert_text": "...", "model": "...", "pipeline": "..."}
  GET  /healthz
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, cleanup, err := root.service(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := svc.Config()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := server.New(svc, server.Options{
				Addr:           addr,
				RequestTimeout: cfg.Server.RequestTimeout,
				Gatherer:       svc.Gatherer(),
				Logger:         root.log(),
			})
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	return cmd
}
