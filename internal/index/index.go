// Package index is the durable, deduplicated, queryable chunk store: it
// chunks document text, gates chunk quality, batches writes with retry, and
// answers similarity searches corpus-wide or scoped to one document.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"docquery/internal/chunker"
	"docquery/internal/store"
)

// NoInformation is the sentinel context returned when nothing qualifies.
const NoInformation = "No relevant information found."

// Config holds the index configuration.
type Config struct {
	PersistDirectory    string
	BatchSize           int
	SimilarityThreshold float64
	NResults            int
	Retry               RetryPolicy
}

// Metadata is the extra chunk metadata recorded alongside content.
type Metadata struct {
	Source string
	Type   string
}

// SearchResult is an ephemeral ranked match from a search.
type SearchResult struct {
	DocID      string
	ChunkID    string
	ChunkIndex int
	Text       string
	Source     string
	Type       string
	Score      float64
}

// Info describes the state of the index.
type Info struct {
	TotalChunks      int
	PersistDirectory string
	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	UniqueHashes     int
}

// Index owns the ingestion and search paths over a Backend. The seen-hash
// cache lives here (not in package state) so it can be reset per instance;
// the backend's id-keyed upsert remains the source of truth across restarts.
type Index struct {
	chunker  *chunker.Chunker
	embedder Embedder
	cfg      Config

	mu        sync.Mutex
	backend   Backend
	seen      map[string]struct{}
	reconnect func() (Backend, error)
}

// Option configures optional Index behavior.
type Option func(*Index)

// WithReconnect installs the recovery action run between failed flush
// attempts: it must return a fresh backend connection.
func WithReconnect(fn func() (Backend, error)) Option {
	return func(idx *Index) { idx.reconnect = fn }
}

// New creates an Index over the given backend and embedder.
func New(backend Backend, embedder Embedder, ck *chunker.Chunker, cfg Config, opts ...Option) *Index {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if cfg.NResults <= 0 {
		cfg.NResults = 5
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.15
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	idx := &Index{
		chunker:  ck,
		embedder: embedder,
		cfg:      cfg,
		backend:  backend,
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddDocument chunks the text and writes the chunks in batches. Chunks
// failing the quality gate or already seen in this process are skipped.
// The operation is at-least-once: batches flushed before a persistent
// failure remain durable, and only that failure is returned.
func (idx *Index) AddDocument(ctx context.Context, docID, text string, meta Metadata) error {
	chunks := idx.chunker.Split(text)

	var batch []store.Record
	var added, skipped int
	pending := make(map[string]struct{})
	for i, chunk := range chunks {
		if !PassesQualityGate(chunk) {
			slog.Debug("chunk failed quality gate", "doc", docID, "chunk", i)
			skipped++
			continue
		}
		hash := ChunkHash(chunk)
		if _, dup := pending[hash]; dup || idx.hasSeen(hash) {
			slog.Debug("chunk is a duplicate", "doc", docID, "chunk", i)
			skipped++
			continue
		}
		pending[hash] = struct{}{}

		batch = append(batch, store.Record{
			ID:          ChunkID(docID, i),
			DocID:       docID,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			Hash:        hash,
			Content:     chunk,
			Source:      meta.Source,
			Type:        meta.Type,
		})

		if len(batch) >= idx.cfg.BatchSize {
			if err := idx.flush(ctx, batch); err != nil {
				return fmt.Errorf("flush batch for %s: %w", docID, err)
			}
			idx.markSeen(batch)
			added += len(batch)
			batch = nil
		}
	}

	if len(batch) > 0 {
		if err := idx.flush(ctx, batch); err != nil {
			return fmt.Errorf("flush final batch for %s: %w", docID, err)
		}
		idx.markSeen(batch)
		added += len(batch)
	}

	slog.Info("document added", "doc", docID, "chunks_added", added, "chunks_skipped", skipped, "chunks_total", len(chunks))
	return nil
}

// flush embeds a batch and writes it under the retry policy. The recovery
// action between attempts swaps in a fresh backend connection.
func (idx *Index) flush(ctx context.Context, batch []store.Record) error {
	return idx.cfg.Retry.Do(ctx, func() error {
		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.Content
		}
		embeddings, err := idx.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		for i := range batch {
			batch[i].Embedding = embeddings[i]
		}
		if err := idx.currentBackend().UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		slog.Info("batch flushed", "chunks", len(batch))
		return nil
	}, idx.tryReconnect)
}

func (idx *Index) currentBackend() Backend {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.backend
}

func (idx *Index) tryReconnect() {
	if idx.reconnect == nil {
		return
	}
	fresh, err := idx.reconnect()
	if err != nil {
		slog.Error("backend reconnect failed", "error", err)
		return
	}
	idx.mu.Lock()
	old := idx.backend
	idx.backend = fresh
	idx.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	slog.Info("backend reconnected")
}

func (idx *Index) hasSeen(hash string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.seen[hash]
	return ok
}

// markSeen admits a flushed batch's hashes to the dedup cache. Hashes are
// only committed after a successful flush so a failed document can be
// retried without the cache shadowing it.
func (idx *Index) markSeen(batch []store.Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, r := range batch {
		idx.seen[r.Hash] = struct{}{}
	}
}

// Search finds the best-matching chunks corpus-wide. It over-fetches 2×
// the requested count, converts distance to a similarity score, drops
// results under the threshold, and returns the top n by score.
func (idx *Index) Search(ctx context.Context, query string, nResults int, threshold float64) ([]SearchResult, error) {
	return idx.search(ctx, query, "", nResults, threshold)
}

// SearchInDocument is Search constrained to chunks of one document.
func (idx *Index) SearchInDocument(ctx context.Context, query, docID string, nResults int, threshold float64) ([]SearchResult, error) {
	return idx.search(ctx, query, docID, nResults, threshold)
}

func (idx *Index) search(ctx context.Context, query, docID string, nResults int, threshold float64) ([]SearchResult, error) {
	if nResults <= 0 {
		nResults = idx.cfg.NResults
	}
	if threshold < 0 {
		threshold = idx.cfg.SimilarityThreshold
	}

	embedding, err := idx.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch so threshold filtering still leaves enough candidates.
	var hits []store.Hit
	if docID == "" {
		hits, err = idx.currentBackend().Query(ctx, embedding, nResults*2)
	} else {
		hits, err = idx.currentBackend().QueryDocument(ctx, embedding, docID, nResults*2)
	}
	if err != nil {
		return nil, fmt.Errorf("backend query: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		score := 1.0 / (1.0 + h.Distance)
		if score < threshold {
			continue
		}
		results = append(results, SearchResult{
			DocID:      h.DocID,
			ChunkID:    h.ID,
			ChunkIndex: h.ChunkIndex,
			Text:       h.Content,
			Source:     h.Source,
			Type:       h.Type,
			Score:      score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > nResults {
		results = results[:nResults]
	}

	slog.Info("search completed", "query", query, "doc", docID, "results", len(results))
	return results, nil
}

// HasDocument reports whether any chunk of the document is indexed.
func (idx *Index) HasDocument(ctx context.Context, docID string) (bool, error) {
	return idx.currentBackend().HasDocument(ctx, docID)
}

// CombinedContext searches corpus-wide and frames the matches as a single
// delimited, score-annotated context string. When nothing qualifies it
// returns the NoInformation sentinel and no chunks.
func (idx *Index) CombinedContext(ctx context.Context, query string, maxChunks int) (string, []SearchResult, error) {
	results, err := idx.Search(ctx, query, maxChunks, -1)
	if err != nil {
		return "", nil, err
	}
	return frameContext(results), results, nil
}

// CombinedContextForDocument is CombinedContext scoped to one document.
func (idx *Index) CombinedContextForDocument(ctx context.Context, query, docID string, maxChunks int) (string, []SearchResult, error) {
	results, err := idx.SearchInDocument(ctx, query, docID, maxChunks, -1)
	if err != nil {
		return "", nil, err
	}
	return frameContext(results), results, nil
}

func frameContext(results []SearchResult) string {
	if len(results) == 0 {
		return NoInformation
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("--- CHUNK_START (Score: %.3f) ---\n%s\n--- CHUNK_END ---", r.Score, r.Text)
	}
	return strings.Join(parts, "\n\n")
}

// ClearAll irreversibly erases all persisted chunks and the seen-hash cache.
func (idx *Index) ClearAll(ctx context.Context) error {
	if err := idx.currentBackend().Reset(ctx); err != nil {
		return fmt.Errorf("reset backend: %w", err)
	}
	idx.mu.Lock()
	idx.seen = make(map[string]struct{})
	idx.mu.Unlock()
	slog.Info("index cleared")
	return nil
}

// Info returns counts and configuration for status reporting.
func (idx *Index) Info(ctx context.Context) (Info, error) {
	count, err := idx.currentBackend().CountChunks(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("count chunks: %w", err)
	}
	idx.mu.Lock()
	hashes := len(idx.seen)
	idx.mu.Unlock()
	return Info{
		TotalChunks:      count,
		PersistDirectory: idx.cfg.PersistDirectory,
		ChunkSize:        idx.chunker.ChunkSize(),
		ChunkOverlap:     idx.chunker.Overlap(),
		BatchSize:        idx.cfg.BatchSize,
		UniqueHashes:     hashes,
	}, nil
}

// Close releases the backend connection.
func (idx *Index) Close() error {
	return idx.currentBackend().Close()
}
