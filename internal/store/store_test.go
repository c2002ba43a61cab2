package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(id, docID string, idx int, embedding []float32) Record {
	return Record{
		ID:          id,
		DocID:       docID,
		ChunkIndex:  idx,
		TotalChunks: 2,
		Hash:        "hash-" + id,
		Content:     "content of " + id,
		Source:      docID,
		Type:        "pdf",
		Embedding:   embedding,
	}
}

func TestUpsertAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.UpsertBatch(ctx, []Record{
		rec("a_chunk_0", "a.pdf", 0, []float32{1, 0, 0}),
		rec("a_chunk_1", "a.pdf", 1, []float32{0, 1, 0}),
		rec("b_chunk_0", "b.pdf", 0, []float32{0, 0, 1}),
	})
	require.NoError(t, err)

	hits, err := s.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a_chunk_0", hits[0].ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := rec("a_chunk_0", "a.pdf", 0, []float32{1, 0, 0})
	require.NoError(t, s.UpsertBatch(ctx, []Record{r}))

	// Same id again with new content: replaced, not duplicated.
	r.Content = "revised content"
	r.Embedding = []float32{0, 1, 0}
	require.NoError(t, s.UpsertBatch(ctx, []Record{r}))

	n, err := s.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := s.Query(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "revised content", hits[0].Content)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
}

func TestQueryDocumentScopesToOneDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []Record{
		rec("a_chunk_0", "a.pdf", 0, []float32{1, 0, 0}),
		rec("b_chunk_0", "b.pdf", 0, []float32{1, 0, 0}),
		rec("b_chunk_1", "b.pdf", 1, []float32{0.9, 0.1, 0}),
	}))

	hits, err := s.QueryDocument(ctx, []float32{1, 0, 0}, "b.pdf", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "b.pdf", h.DocID)
	}
	assert.Equal(t, "b_chunk_0", hits[0].ID)
}

func TestHasDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.HasDocument(ctx, "a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertBatch(ctx, []Record{rec("a_chunk_0", "a.pdf", 0, []float32{1, 0, 0})}))

	ok, err = s.HasDocument(ctx, "a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []Record{rec("a_chunk_0", "a.pdf", 0, []float32{1, 0, 0})}))
	require.NoError(t, s.Reset(ctx))

	n, err := s.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := s.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.GetMeta(ctx, "embed_model")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMeta(ctx, "embed_model", "nomic-embed-text"))
	require.NoError(t, s.SetMeta(ctx, "embed_model", "mxbai-embed-large"))

	v, err = s.GetMeta(ctx, "embed_model")
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", v)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	ctx := context.Background()

	s, err := Open(path, 3)
	require.NoError(t, err)
	require.NoError(t, s.UpsertBatch(ctx, []Record{rec("a_chunk_0", "a.pdf", 0, []float32{1, 0, 0})}))
	require.NoError(t, s.Close())

	s, err = Open(path, 3)
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.HasDocument(ctx, "a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
}
