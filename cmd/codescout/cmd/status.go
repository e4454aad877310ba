package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and embedder status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setupApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			docCount, err := a.metadata.Count(ctx)
			if err != nil {
				return err
			}
			sparseStats := a.sparse.Stats()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data dir:    %s\n", a.dataDir)
			fmt.Fprintf(out, "documents:   %d\n", docCount)
			fmt.Fprintf(out, "vectors:     %d\n", a.vectors.Count())
			fmt.Fprintf(out, "sparse:      %s (%d docs, %d terms)\n",
				a.cfg.Sparse.Backend, sparseStats.DocumentCount, sparseStats.TermCount)
			fmt.Fprintf(out, "embedder:    %s (%s, %d dims, available=%t)\n",
				a.cfg.Embedder.Provider, a.embedder.ModelName(), a.embedder.Dimensions(),
				a.embedder.Available(ctx))
			fmt.Fprintf(out, "reranker:    enabled=%t endpoint=%s\n",
				a.cfg.Reranker.Enabled, a.cfg.Reranker.Endpoint)
			return nil
		},
	}
	return cmd
}
