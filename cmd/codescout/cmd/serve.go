package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search engine over MCP",
		Long: `Start the MCP server on stdio.

Stdout carries JSON-RPC messages exclusively; logs go to stderr or the
configured log file. Register the binary with your AI client:

  codescout serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command) error {
	// SIGINT/SIGTERM cancel the context and stop the transport.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := mcp.NewServer(a.engine, a.metadata, a.embedder, a.cfg)
	if err != nil {
		return err
	}
	defer srv.Close()
	srv.SetMetrics(a.metrics)

	return srv.Serve(ctx, a.cfg.Server.Transport)
}
