// Package retriever orchestrates question answering over the document
// corpus: it lazily indexes documents on first use, gathers scored context
// either from one document or across the whole corpus, and hands the framed
// context to the language model.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"docquery/internal/index"
	"docquery/internal/llm"
)

const (
	// globalPerDoc caps how many chunks each document may contribute to a
	// corpus-wide answer so one long document cannot crowd out the rest.
	globalPerDoc = 2
	// globalTopK is how many chunks survive the cross-document merge.
	globalTopK = 4
	// globalWorkers bounds concurrent per-document searches.
	globalWorkers = 4
)

// Searcher is the slice of the index the retriever drives.
type Searcher interface {
	HasDocument(ctx context.Context, docID string) (bool, error)
	AddDocument(ctx context.Context, docID, text string, meta index.Metadata) error
	SearchInDocument(ctx context.Context, query, docID string, nResults int, threshold float64) ([]index.SearchResult, error)
	CombinedContextForDocument(ctx context.Context, query, docID string, maxChunks int) (string, []index.SearchResult, error)
}

// Extractor produces per-page text for a PDF on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// Answerer generates an answer from a question and framed context.
type Answerer interface {
	Answer(ctx context.Context, question, contextText string, chunks []llm.ContextChunk) (string, error)
}

// Response is the outcome of an Ask. Found is false when no usable context
// existed or the model reported the information absent; Answer then still
// carries a user-presentable explanation.
type Response struct {
	Answer  string
	Context string
	Chunks  []index.SearchResult
	Found   bool
}

// Config holds the retriever configuration.
type Config struct {
	DocsDir  string
	NResults int
	PerDoc   int
	TopK     int
}

// Retriever answers questions against the corpus in the docs directory.
type Retriever struct {
	searcher  Searcher
	extractor Extractor
	answerer  Answerer
	cfg       Config

	indexing singleflight.Group
}

// New creates a Retriever. Zero config fields fall back to defaults.
func New(searcher Searcher, extractor Extractor, answerer Answerer, cfg Config) *Retriever {
	if cfg.NResults <= 0 {
		cfg.NResults = 5
	}
	if cfg.PerDoc <= 0 {
		cfg.PerDoc = globalPerDoc
	}
	if cfg.TopK <= 0 {
		cfg.TopK = globalTopK
	}
	return &Retriever{
		searcher:  searcher,
		extractor: extractor,
		answerer:  answerer,
		cfg:       cfg,
	}
}

// ListDocuments snapshots the corpus directory.
func (r *Retriever) ListDocuments() ([]string, error) {
	return ListDocuments(r.cfg.DocsDir)
}

// Document pairs a corpus file with its indexing state.
type Document struct {
	Name    string
	Indexed bool
}

// Documents lists the corpus with per-document indexing state.
func (r *Retriever) Documents(ctx context.Context) ([]Document, error) {
	names, err := r.ListDocuments()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(names))
	for _, name := range names {
		indexed, err := r.searcher.HasDocument(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check document %s: %w", name, err)
		}
		docs = append(docs, Document{Name: name, Indexed: indexed})
	}
	return docs, nil
}

// EnsureIndexed indexes the document unless it already is.
func (r *Retriever) EnsureIndexed(ctx context.Context, doc string) error {
	return r.ensureIndexed(ctx, doc)
}

// AskScoped answers a question from a single document, indexing it first if
// needed.
func (r *Retriever) AskScoped(ctx context.Context, question, doc string) (*Response, error) {
	if err := r.ensureIndexed(ctx, doc); err != nil {
		return nil, fmt.Errorf("index %s: %w", doc, err)
	}

	// Read failures degrade to zero results for this scope; the user gets
	// the no-information response rather than an error.
	contextText, chunks, err := r.searcher.CombinedContextForDocument(ctx, question, doc, r.cfg.NResults)
	if err != nil {
		slog.Warn("scoped search failed, treating as no results", "doc", doc, "error", err)
		return r.answer(ctx, question, index.NoInformation, nil)
	}
	return r.answer(ctx, question, contextText, chunks)
}

// AskGlobal answers a question from the whole corpus. Each document is
// lazily indexed and searched concurrently; documents that fail to index or
// search are logged and skipped rather than failing the question.
func (r *Retriever) AskGlobal(ctx context.Context, question string) (*Response, error) {
	names, err := r.ListDocuments()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var merged []index.SearchResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(globalWorkers)
	for _, name := range names {
		g.Go(func() error {
			if err := r.ensureIndexed(gctx, name); err != nil {
				slog.Warn("skipping document: indexing failed", "doc", name, "error", err)
				return nil
			}
			results, err := r.searcher.SearchInDocument(gctx, question, name, r.cfg.PerDoc, -1)
			if err != nil {
				slog.Warn("skipping document: search failed", "doc", name, "error", err)
				return nil
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > r.cfg.TopK {
		merged = merged[:r.cfg.TopK]
	}

	return r.answer(ctx, question, frameGlobalContext(merged), merged)
}

// answer runs the model over the gathered context and classifies the result.
// Without any chunks the model is not consulted at all.
func (r *Retriever) answer(ctx context.Context, question, contextText string, chunks []index.SearchResult) (*Response, error) {
	if len(chunks) == 0 {
		return &Response{
			Answer:  llm.NotFoundSentinel,
			Context: index.NoInformation,
			Found:   false,
		}, nil
	}

	ctxChunks := make([]llm.ContextChunk, len(chunks))
	for i, c := range chunks {
		ctxChunks[i] = llm.ContextChunk{Text: c.Text, Score: c.Score, Source: c.Source}
	}

	text, err := r.answerer.Answer(ctx, question, contextText, ctxChunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Response{
		Answer:  text,
		Context: contextText,
		Chunks:  chunks,
		Found:   !llm.IsNotFound(text),
	}, nil
}

// ensureIndexed indexes the document unless it already is. Concurrent calls
// for the same document collapse into a single indexing pass.
func (r *Retriever) ensureIndexed(ctx context.Context, doc string) error {
	if indexed, err := r.searcher.HasDocument(ctx, doc); err == nil && indexed {
		return nil
	}

	_, err, _ := r.indexing.Do(doc, func() (any, error) {
		// Re-check inside the flight: a concurrent caller may have won.
		if indexed, err := r.searcher.HasDocument(ctx, doc); err == nil && indexed {
			return nil, nil
		}

		path := filepath.Join(r.cfg.DocsDir, doc)
		slog.Info("indexing document", "doc", doc, "path", path)
		pages, err := r.extractor.Extract(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", doc, err)
		}
		text := strings.Join(pages, "\n\n")
		if strings.TrimSpace(text) == "" {
			slog.Warn("document yielded no text", "doc", doc)
			return nil, nil
		}

		meta := index.Metadata{Source: doc, Type: "pdf"}
		if err := r.searcher.AddDocument(ctx, doc, text, meta); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// frameGlobalContext frames merged cross-document chunks, naming the source
// document of each so the model can attribute its answer.
func frameGlobalContext(results []index.SearchResult) string {
	if len(results) == 0 {
		return index.NoInformation
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("--- CHUNK_START [%s] (Score: %.3f) ---\n%s\n--- CHUNK_END ---", r.Source, r.Score, r.Text)
	}
	return strings.Join(parts, "\n\n")
}
