package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadata(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDocs() []*Document {
	return []*Document{
		{ID: "a.go:1", Content: "func A()", Snippet: "func A()", FilePath: "a.go", StartLine: 1, EndLine: 3},
		{ID: "b.go:5", Content: "func B()", Snippet: "func B()", FilePath: "b.go", StartLine: 5, EndLine: 9},
	}
}

func TestSQLiteMetadataStore_SaveAndGet(t *testing.T) {
	s := newTestMetadata(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, sampleDocs()))

	doc, err := s.GetDocument(ctx, "a.go:1")
	require.NoError(t, err)
	assert.Equal(t, "func A()", doc.Content)
	assert.Equal(t, "a.go", doc.FilePath)
	assert.Equal(t, 1, doc.StartLine)
	assert.Equal(t, 3, doc.EndLine)
}

func TestSQLiteMetadataStore_GetMissing(t *testing.T) {
	s := newTestMetadata(t)

	_, err := s.GetDocument(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSQLiteMetadataStore_GetDocumentsBatch(t *testing.T) {
	s := newTestMetadata(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, sampleDocs()))

	// Missing IDs are silently absent.
	docs, err := s.GetDocuments(ctx, []string{"a.go:1", "ghost", "b.go:5"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	empty, err := s.GetDocuments(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSQLiteMetadataStore_UpsertReplaces(t *testing.T) {
	s := newTestMetadata(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, []*Document{{ID: "a", Content: "old"}}))
	require.NoError(t, s.SaveDocuments(ctx, []*Document{{ID: "a", Content: "new", FilePath: "a.go"}}))

	doc, err := s.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new", doc.Content)
	assert.Equal(t, "a.go", doc.FilePath)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteMetadataStore_AllDocuments(t *testing.T) {
	s := newTestMetadata(t)
	ctx := context.Background()

	all, err := s.AllDocuments(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	require.NoError(t, s.SaveDocuments(ctx, sampleDocs()))

	all, err = s.AllDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a.go:1", all[0].ID)
	assert.Equal(t, "b.go:5", all[1].ID)
}

func TestSQLiteMetadataStore_Delete(t *testing.T) {
	s := newTestMetadata(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, sampleDocs()))
	require.NoError(t, s.DeleteDocuments(ctx, []string{"a.go:1"}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.NoError(t, s.DeleteDocuments(ctx, nil))
}

func TestSQLiteMetadataStore_PersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta", "metadata.db")
	ctx := context.Background()

	s, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocuments(ctx, sampleDocs()))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteMetadataStore_ClosedRejectsCalls(t *testing.T) {
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.SaveDocuments(context.Background(), sampleDocs()))
	_, err = s.Count(context.Background())
	assert.Error(t, err)

	// Double close is fine.
	assert.NoError(t, s.Close())
}
