// Package cmd provides the CLI commands for CodeScout.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/pkg/version"
)

// NewRootCmd creates the root command for the codescout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codescout",
		Short: "Adaptive multi-strategy code retrieval",
		Long: `CodeScout answers code search queries by classifying each query,
routing it through keyword (BM25) and semantic (vector) retrieval,
fusing the ranked lists, and optionally reranking the top candidates
with a cross-encoder.

Run 'codescout serve' to expose the search tool over MCP, or
'codescout search <query>' for one-off queries.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("codescout version {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
