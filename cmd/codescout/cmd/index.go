package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/store"
)

// indexDocument is the JSONL wire format accepted by the index command.
// Vectors are optional; documents without one are embedded on the way in.
type indexDocument struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Snippet   string    `json:"snippet,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	StartLine int       `json:"start_line,omitempty"`
	EndLine   int       `json:"end_line,omitempty"`
	Vector    []float32 `json:"vector,omitempty"`
}

const indexBatchSize = 100

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [file]",
		Short: "Index documents from a JSONL stream",
		Long: `Index pre-chunked documents from a JSONL file (or stdin).

Each line is one document:

  {"id":"pkg/db.go:42","content":"func Connect() ...","file_path":"pkg/db.go","start_line":42,"end_line":60}

Documents may carry a precomputed "vector"; otherwise the configured
embedder generates one. Existing IDs are replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				input = f
			}
			return runIndex(cmd.Context(), cmd, input)
		},
	}
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, input io.Reader) error {
	a, err := setupApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	indexer, err := a.newIndexer()
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var batch []*store.Document
	var total, lineNo int
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var doc indexDocument
		if err := json.Unmarshal(line, &doc); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		batch = append(batch, &store.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Snippet:   doc.Snippet,
			FilePath:  doc.FilePath,
			StartLine: doc.StartLine,
			EndLine:   doc.EndLine,
			Vector:    doc.Vector,
		})

		if len(batch) >= indexBatchSize {
			if err := indexer.Add(ctx, batch); err != nil {
				return err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := indexer.Add(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
	}

	if err := a.vectors.Save(a.vectorsPath()); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents\n", total)
	return nil
}
