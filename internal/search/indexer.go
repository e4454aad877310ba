package search

import (
	"context"
	"fmt"
	"log/slog"

	scouterrors "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/embed"
	"github.com/codescout-dev/codescout/internal/store"
)

// Indexer writes already-chunked documents into the three stores the
// engine retrieves from. Documents without a precomputed vector are
// embedded on the way in.
type Indexer struct {
	sparse   store.SparseIndex
	vectors  store.VectorStore
	metadata store.MetadataStore
	embedder embed.Embedder
}

// NewIndexer creates an indexer. The embedder may be nil when every
// document carries a precomputed vector.
func NewIndexer(sparse store.SparseIndex, vectors store.VectorStore, metadata store.MetadataStore, embedder embed.Embedder) (*Indexer, error) {
	if sparse == nil {
		return nil, fmt.Errorf("%w: sparse index is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}
	return &Indexer{sparse: sparse, vectors: vectors, metadata: metadata, embedder: embedder}, nil
}

// Add indexes the documents. Metadata is written first so a failure in
// a later store never leaves a searchable ID that cannot materialize.
func (ix *Indexer) Add(ctx context.Context, docs []*store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if doc.ID == "" {
			return scouterrors.New(scouterrors.ErrCodeInvalidInput,
				"document with empty ID", nil)
		}
	}

	if err := ix.metadata.SaveDocuments(ctx, docs); err != nil {
		return scouterrors.New(scouterrors.ErrCodeStoreFailed,
			"failed to save document metadata", err)
	}
	if err := ix.sparse.Index(ctx, docs); err != nil {
		return scouterrors.New(scouterrors.ErrCodeStoreFailed,
			"failed to index documents", err)
	}

	ids := make([]string, 0, len(docs))
	vecs := make([][]float32, 0, len(docs))
	for _, doc := range docs {
		vec := doc.Vector
		if vec == nil {
			if ix.embedder == nil {
				return scouterrors.New(scouterrors.ErrCodeInvalidInput,
					fmt.Sprintf("document %s has no vector and no embedder is configured", doc.ID), nil)
			}
			embedded, err := ix.embedder.Embed(ctx, doc.Content)
			if err != nil {
				return scouterrors.New(scouterrors.ErrCodeEmbedFailed,
					fmt.Sprintf("failed to embed document %s", doc.ID), err)
			}
			vec = embedded
		}
		ids = append(ids, doc.ID)
		vecs = append(vecs, vec)
	}
	if err := ix.vectors.Add(ctx, ids, vecs); err != nil {
		return scouterrors.New(scouterrors.ErrCodeStoreFailed,
			"failed to add vectors", err)
	}

	slog.Info("documents_indexed", slog.Int("count", len(docs)))
	return nil
}

// Delete removes the documents from all stores.
func (ix *Indexer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ix.sparse.Delete(ctx, ids); err != nil {
		return scouterrors.New(scouterrors.ErrCodeStoreFailed,
			"failed to delete from sparse index", err)
	}
	if err := ix.vectors.Delete(ctx, ids); err != nil {
		return scouterrors.New(scouterrors.ErrCodeStoreFailed,
			"failed to delete vectors", err)
	}
	if err := ix.metadata.DeleteDocuments(ctx, ids); err != nil {
		return scouterrors.New(scouterrors.ErrCodeStoreFailed,
			"failed to delete document metadata", err)
	}
	return nil
}
