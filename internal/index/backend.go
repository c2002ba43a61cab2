package index

import (
	"context"

	"docquery/internal/store"
)

// Backend is the persistent vector collection behind the index. The
// production implementation is store.SQLiteStore; tests substitute fakes
// that fail a configurable number of times.
type Backend interface {
	UpsertBatch(ctx context.Context, records []store.Record) error
	Query(ctx context.Context, embedding []float32, k int) ([]store.Hit, error)
	QueryDocument(ctx context.Context, embedding []float32, docID string, k int) ([]store.Hit, error)
	HasDocument(ctx context.Context, docID string) (bool, error)
	CountChunks(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

// Embedder turns text into vectors for storage and querying.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}
