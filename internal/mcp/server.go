package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescout-dev/codescout/internal/config"
	"github.com/codescout-dev/codescout/internal/embed"
	"github.com/codescout-dev/codescout/internal/search"
	"github.com/codescout-dev/codescout/internal/store"
	"github.com/codescout-dev/codescout/internal/telemetry"
	"github.com/codescout-dev/codescout/pkg/version"
)

// Server is the MCP server for CodeScout.
// It bridges AI clients with the adaptive retrieval engine.
type Server struct {
	mcp      *mcp.Server
	engine   search.Searcher
	metadata store.MetadataStore
	embedder embed.Embedder // Embedder for capability signaling
	config   *config.Config
	logger   *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the search query to execute"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Category string `json:"category,omitempty" jsonschema:"override automatic query classification: SPECIFIC_TERM, HOW_TO, CONCEPT, CODE_PATTERN, DEFAULT"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results" jsonschema:"list of search results, best first"`
	Category string               `json:"category" jsonschema:"query category the router acted on"`
	Pipeline string               `json:"pipeline" jsonschema:"executed retrieval pipeline"`
	Degraded bool                 `json:"degraded,omitempty" jsonschema:"true when a planned stage was skipped and results carry a fallback ordering"`
	TookMS   int64                `json:"took_ms" jsonschema:"total query duration in milliseconds"`
}

// SearchResultOutput defines a single search result.
type SearchResultOutput struct {
	DocID     string  `json:"doc_id" jsonschema:"document identifier"`
	FilePath  string  `json:"file_path,omitempty" jsonschema:"file path relative to project root"`
	Snippet   string  `json:"snippet,omitempty" jsonschema:"matched content snippet"`
	Score     float64 `json:"score" jsonschema:"relevance score"`
	StartLine int     `json:"start_line,omitempty" jsonschema:"first line of the matched region"`
	EndLine   int     `json:"end_line,omitempty" jsonschema:"last line of the matched region"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	DocumentCount int           `json:"document_count" jsonschema:"number of indexed documents"`
	Embeddings    EmbeddingInfo `json:"embeddings"`
}

// EmbeddingInfo reports the active embedder so AI clients can adjust
// their search strategies.
type EmbeddingInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Available  bool   `json:"available"`
}

// MetricsInput defines the input schema for the query_metrics tool (no parameters).
type MetricsInput struct{}

// MetricsOutput defines the output schema for the query_metrics tool.
type MetricsOutput struct {
	TotalQueries      int64            `json:"total_queries"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	ZeroResultPct     float64          `json:"zero_result_pct"`
	DegradedCount     int64            `json:"degraded_count"`
	CategoryCounts    map[string]int64 `json:"category_counts"`
	ZeroResultQueries []string         `json:"zero_result_queries,omitempty"`
}

// NewServer creates a new MCP server.
// The embedder parameter is used for capability signaling and may be nil.
func NewServer(engine search.Searcher, metadata store.MetadataStore, embedder embed.Embedder, cfg *config.Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if metadata == nil {
		return nil, errors.New("metadata store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:   engine,
		metadata: metadata,
		embedder: embedder,
		config:   cfg,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CodeScout",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)

	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector. When set, the
// query_metrics tool reports live aggregates instead of zeros.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Adaptive code search. Classifies the query, routes it through keyword and semantic retrieval, and fuses the results. Use this instead of grep when you want matches by meaning, not just text.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check how many documents are indexed and which embedder is active. Use before searching to verify the index is populated.",
	}, s.mcpIndexStatusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_metrics",
		Description: "Report query telemetry: category distribution, zero-result queries, and degraded searches.",
	}, s.mcpMetricsHandler)

	s.logger.Info("mcp_tools_registered", slog.Int("count", 3))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}
	if input.Category != "" && !search.ValidCategory(search.QueryCategory(input.Category)) {
		return nil, SearchOutput{}, NewInvalidParamsError(fmt.Sprintf("unknown category: %s", input.Category))
	}

	opts := search.SearchOptions{
		Limit:            input.Limit,
		CategoryOverride: search.QueryCategory(input.Category),
	}

	resp, err := s.engine.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{
		Results:  make([]SearchResultOutput, 0, len(resp.Results)),
		Category: string(resp.Category),
		Pipeline: resp.Pipeline.String(),
		Degraded: resp.Degraded,
		TookMS:   resp.Took.Milliseconds(),
	}
	for _, r := range resp.Results {
		output.Results = append(output.Results, SearchResultOutput{
			DocID:     r.DocID,
			FilePath:  r.FilePath,
			Snippet:   r.Snippet,
			Score:     r.Score,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
		})
	}

	return nil, output, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	count, err := s.metadata.Count(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}

	out := &IndexStatusOutput{DocumentCount: count}
	if s.embedder != nil {
		out.Embeddings = EmbeddingInfo{
			Provider:   s.config.Embedder.Provider,
			Model:      s.embedder.ModelName(),
			Dimensions: s.embedder.Dimensions(),
			Available:  s.embedder.Available(ctx),
		}
	} else {
		out.Embeddings = EmbeddingInfo{Provider: "none"}
	}

	return nil, out, nil
}

// mcpMetricsHandler is the MCP SDK handler for the query_metrics tool.
func (s *Server) mcpMetricsHandler(_ context.Context, _ *mcp.CallToolRequest, _ MetricsInput) (
	*mcp.CallToolResult,
	*MetricsOutput,
	error,
) {
	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()

	out := &MetricsOutput{CategoryCounts: map[string]int64{}}
	if m == nil {
		return nil, out, nil
	}

	snap := m.Snapshot()
	out.TotalQueries = snap.TotalQueries
	out.ZeroResultCount = snap.ZeroResultCount
	out.ZeroResultPct = snap.ZeroResultPercentage()
	out.DegradedCount = snap.DegradedCount
	out.CategoryCounts = snap.CategoryCounts
	out.ZeroResultQueries = snap.ZeroResultQueries

	return nil, out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
// The MCP server itself stops when its context is canceled.
func (s *Server) Close() error {
	return nil
}
