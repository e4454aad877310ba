package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit    int
	category string
	format   string // "text", "json"
	noRerank bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search the indexed corpus with adaptive routing.

The query is classified (SPECIFIC_TERM, HOW_TO, CONCEPT, CODE_PATTERN,
DEFAULT) and routed through the pipeline configured for its category.

Examples:
  codescout search "authentication middleware"
  codescout search "getUserById" --limit 5
  codescout search "connection pooling" --category CONCEPT --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Override query classification (SPECIFIC_TERM, HOW_TO, CONCEPT, CODE_PATTERN, DEFAULT)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Skip cross-encoder reranking")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.category != "" && !search.ValidCategory(search.QueryCategory(opts.category)) {
		return fmt.Errorf("unknown category %q (valid: %v)", opts.category, search.Categories())
	}

	a, err := setupApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.engine.Search(ctx, query, search.SearchOptions{
		Limit:            opts.limit,
		CategoryOverride: search.QueryCategory(opts.category),
		DisableRerank:    opts.noRerank,
		LatencyBudget:    a.cfg.Search.LatencyBudgetDuration(),
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	return printSearchResults(cmd, query, resp)
}

func printSearchResults(cmd *cobra.Command, query string, resp *search.SearchResponse) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%d results for %q (category %s, pipeline %s, %s)\n",
		len(resp.Results), query, resp.Category, resp.Pipeline, resp.Took.Round(time.Millisecond))
	if resp.Degraded {
		fmt.Fprintln(out, "note: results are degraded (a planned stage was skipped)")
	}

	for i, r := range resp.Results {
		location := r.FilePath
		if location == "" {
			location = r.DocID
		}
		if r.StartLine > 0 {
			location = fmt.Sprintf("%s:%d-%d", location, r.StartLine, r.EndLine)
		}
		fmt.Fprintf(out, "%2d. [%.4f] %s\n", i+1, r.Score, location)
		if r.Snippet != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Snippet, "\n"), "\n") {
				fmt.Fprintf(out, "      %s\n", line)
			}
		}
	}
	return nil
}
