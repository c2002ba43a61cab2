package retriever

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery/internal/index"
	"docquery/internal/llm"
)

type fakeSearcher struct {
	mu        sync.Mutex
	indexed   map[string]bool
	results   map[string][]index.SearchResult
	addCalls  map[string]int
	addErr    map[string]error
	searchErr map[string]error
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		indexed:   make(map[string]bool),
		results:   make(map[string][]index.SearchResult),
		addCalls:  make(map[string]int),
		addErr:    make(map[string]error),
		searchErr: make(map[string]error),
	}
}

func (s *fakeSearcher) HasDocument(ctx context.Context, docID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexed[docID], nil
}

func (s *fakeSearcher) AddDocument(ctx context.Context, docID, text string, meta index.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls[docID]++
	if err := s.addErr[docID]; err != nil {
		return err
	}
	s.indexed[docID] = true
	return nil
}

func (s *fakeSearcher) SearchInDocument(ctx context.Context, query, docID string, nResults int, threshold float64) ([]index.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.searchErr[docID]; err != nil {
		return nil, err
	}
	results := s.results[docID]
	if nResults > 0 && nResults < len(results) {
		results = results[:nResults]
	}
	return results, nil
}

func (s *fakeSearcher) CombinedContextForDocument(ctx context.Context, query, docID string, maxChunks int) (string, []index.SearchResult, error) {
	results, err := s.SearchInDocument(ctx, query, docID, maxChunks, -1)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return index.NoInformation, nil, nil
	}
	return "framed context", results, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	pages []string
	err   error
}

func (e *fakeExtractor) Extract(ctx context.Context, path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, filepath.Base(path))
	if e.err != nil {
		return nil, e.err
	}
	return e.pages, nil
}

type fakeAnswerer struct {
	mu       sync.Mutex
	answer   string
	err      error
	called   int
	lastCtx  string
	lastText []llm.ContextChunk
}

func (a *fakeAnswerer) Answer(ctx context.Context, question, contextText string, chunks []llm.ContextChunk) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.called++
	a.lastCtx = contextText
	a.lastText = chunks
	return a.answer, a.err
}

func corpusDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644))
	}
	return dir
}

func TestListDocumentsFiltersAndSorts(t *testing.T) {
	dir := corpusDir(t, "b.pdf", "a.PDF", "notes.txt", "c.pdf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	names, err := ListDocuments(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PDF", "b.pdf", "c.pdf"}, names)
}

func TestListDocumentsMissingDir(t *testing.T) {
	_, err := ListDocuments(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestAskScopedIndexesOnFirstUse(t *testing.T) {
	dir := corpusDir(t, "manual.pdf")
	searcher := newFakeSearcher()
	searcher.results["manual.pdf"] = []index.SearchResult{
		{DocID: "manual.pdf", Source: "manual.pdf", Text: "relevant passage", Score: 0.8},
	}
	ext := &fakeExtractor{pages: []string{"page one text", "page two text"}}
	ans := &fakeAnswerer{answer: "The manual says so."}

	r := New(searcher, ext, ans, Config{DocsDir: dir})

	resp, err := r.AskScoped(context.Background(), "what does it say?", "manual.pdf")
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, "The manual says so.", resp.Answer)
	assert.Equal(t, []string{"manual.pdf"}, ext.calls)
	assert.Equal(t, 1, searcher.addCalls["manual.pdf"])

	// Second ask: already indexed, no second extraction.
	_, err = r.AskScoped(context.Background(), "and now?", "manual.pdf")
	require.NoError(t, err)
	assert.Len(t, ext.calls, 1)
	assert.Equal(t, 1, searcher.addCalls["manual.pdf"])
}

func TestAskScopedNoContextSkipsModel(t *testing.T) {
	dir := corpusDir(t, "empty.pdf")
	searcher := newFakeSearcher()
	searcher.indexed["empty.pdf"] = true
	ans := &fakeAnswerer{answer: "should never be used"}

	r := New(searcher, &fakeExtractor{}, ans, Config{DocsDir: dir})

	resp, err := r.AskScoped(context.Background(), "anything?", "empty.pdf")
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Zero(t, ans.called, "no chunks means the model is not consulted")
	assert.Equal(t, index.NoInformation, resp.Context)
}

func TestAskScopedNotFoundAnswer(t *testing.T) {
	dir := corpusDir(t, "doc.pdf")
	searcher := newFakeSearcher()
	searcher.indexed["doc.pdf"] = true
	searcher.results["doc.pdf"] = []index.SearchResult{
		{DocID: "doc.pdf", Text: "unrelated", Score: 0.2},
	}
	ans := &fakeAnswerer{answer: llm.NotFoundSentinel}

	r := New(searcher, &fakeExtractor{}, ans, Config{DocsDir: dir})

	resp, err := r.AskScoped(context.Background(), "who?", "doc.pdf")
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Equal(t, 1, ans.called)
}

func TestAskScopedSearchFailureDegrades(t *testing.T) {
	dir := corpusDir(t, "doc.pdf")
	searcher := newFakeSearcher()
	searcher.indexed["doc.pdf"] = true
	searcher.searchErr["doc.pdf"] = errors.New("backend read failed")
	ans := &fakeAnswerer{answer: "should never be used"}

	r := New(searcher, &fakeExtractor{}, ans, Config{DocsDir: dir})

	// A backend read failure is not surfaced: the caller gets the same
	// degraded response as an empty result set.
	resp, err := r.AskScoped(context.Background(), "anything?", "doc.pdf")
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Equal(t, index.NoInformation, resp.Context)
	assert.Zero(t, ans.called)
}

func TestAskGlobalRanksAcrossDocuments(t *testing.T) {
	dir := corpusDir(t, "a.pdf", "b.pdf")
	searcher := newFakeSearcher()
	searcher.indexed["a.pdf"] = true
	searcher.indexed["b.pdf"] = true
	searcher.results["a.pdf"] = []index.SearchResult{
		{DocID: "a.pdf", Source: "a.pdf", Text: "strong match", Score: 0.9},
		{DocID: "a.pdf", Source: "a.pdf", Text: "weak match", Score: 0.2},
	}
	searcher.results["b.pdf"] = []index.SearchResult{
		{DocID: "b.pdf", Source: "b.pdf", Text: "middling match", Score: 0.4},
	}
	ans := &fakeAnswerer{answer: "Answer across documents."}

	r := New(searcher, &fakeExtractor{}, ans, Config{DocsDir: dir})

	resp, err := r.AskGlobal(context.Background(), "question?")
	require.NoError(t, err)
	assert.True(t, resp.Found)

	require.Len(t, resp.Chunks, 3)
	assert.Equal(t, 0.9, resp.Chunks[0].Score)
	assert.Equal(t, "a.pdf", resp.Chunks[0].Source)
	assert.Equal(t, 0.4, resp.Chunks[1].Score)
	assert.Equal(t, "b.pdf", resp.Chunks[1].Source)
	assert.Equal(t, 0.2, resp.Chunks[2].Score)

	// The framed context names each chunk's source document.
	assert.Contains(t, resp.Context, "[a.pdf]")
	assert.Contains(t, resp.Context, "[b.pdf]")
}

func TestAskGlobalCapsMergedChunks(t *testing.T) {
	dir := corpusDir(t, "a.pdf", "b.pdf", "c.pdf")
	searcher := newFakeSearcher()
	for _, doc := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		searcher.indexed[doc] = true
		searcher.results[doc] = []index.SearchResult{
			{DocID: doc, Source: doc, Text: "one", Score: 0.8},
			{DocID: doc, Source: doc, Text: "two", Score: 0.7},
		}
	}
	ans := &fakeAnswerer{answer: "Capped."}

	r := New(searcher, &fakeExtractor{}, ans, Config{DocsDir: dir, PerDoc: 2, TopK: 4})

	resp, err := r.AskGlobal(context.Background(), "question?")
	require.NoError(t, err)
	assert.Len(t, resp.Chunks, 4)
	for _, c := range resp.Chunks {
		assert.GreaterOrEqual(t, c.Score, 0.7)
	}
}

func TestAskGlobalSkipsFailingDocuments(t *testing.T) {
	dir := corpusDir(t, "bad.pdf", "good.pdf")
	searcher := newFakeSearcher()
	searcher.indexed["good.pdf"] = true
	searcher.results["good.pdf"] = []index.SearchResult{
		{DocID: "good.pdf", Source: "good.pdf", Text: "usable", Score: 0.6},
	}
	searcher.addErr["bad.pdf"] = errors.New("corrupt pdf")
	ext := &fakeExtractor{pages: []string{"some text"}}
	ans := &fakeAnswerer{answer: "From the good document."}

	r := New(searcher, ext, ans, Config{DocsDir: dir})

	resp, err := r.AskGlobal(context.Background(), "question?")
	require.NoError(t, err)
	assert.True(t, resp.Found)
	require.Len(t, resp.Chunks, 1)
	assert.Equal(t, "good.pdf", resp.Chunks[0].Source)
}

func TestAskGlobalSkipsSearchFailingDocuments(t *testing.T) {
	dir := corpusDir(t, "broken.pdf", "good.pdf")
	searcher := newFakeSearcher()
	searcher.indexed["broken.pdf"] = true
	searcher.indexed["good.pdf"] = true
	searcher.searchErr["broken.pdf"] = errors.New("backend read failed")
	searcher.results["good.pdf"] = []index.SearchResult{
		{DocID: "good.pdf", Source: "good.pdf", Text: "usable", Score: 0.6},
	}
	ans := &fakeAnswerer{answer: "From the good document."}

	r := New(searcher, &fakeExtractor{}, ans, Config{DocsDir: dir})

	resp, err := r.AskGlobal(context.Background(), "question?")
	require.NoError(t, err)
	assert.True(t, resp.Found)
	require.Len(t, resp.Chunks, 1)
	assert.Equal(t, "good.pdf", resp.Chunks[0].Source)
}

func TestAskGlobalEmptyCorpus(t *testing.T) {
	dir := corpusDir(t)
	ans := &fakeAnswerer{answer: "unused"}

	r := New(newFakeSearcher(), &fakeExtractor{}, ans, Config{DocsDir: dir})

	resp, err := r.AskGlobal(context.Background(), "question?")
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Zero(t, ans.called)
}

func TestEnsureIndexedCollapsesConcurrentCalls(t *testing.T) {
	dir := corpusDir(t, "big.pdf")
	searcher := newFakeSearcher()
	ext := &fakeExtractor{pages: []string{"page text"}}

	r := New(searcher, ext, &fakeAnswerer{}, Config{DocsDir: dir})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.EnsureIndexed(context.Background(), "big.pdf")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, searcher.addCalls["big.pdf"], "concurrent callers must share one indexing pass")
}

func TestEnsureIndexedEmptyDocument(t *testing.T) {
	dir := corpusDir(t, "blank.pdf")
	searcher := newFakeSearcher()
	ext := &fakeExtractor{pages: nil}

	r := New(searcher, ext, &fakeAnswerer{}, Config{DocsDir: dir})

	// A document with no extractable text indexes nothing but is not an error.
	require.NoError(t, r.EnsureIndexed(context.Background(), "blank.pdf"))
	assert.Zero(t, searcher.addCalls["blank.pdf"])
}

func TestDocumentsReportsIndexState(t *testing.T) {
	dir := corpusDir(t, "a.pdf", "b.pdf")
	searcher := newFakeSearcher()
	searcher.indexed["a.pdf"] = true

	r := New(searcher, &fakeExtractor{}, &fakeAnswerer{}, Config{DocsDir: dir})

	docs, err := r.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{Name: "a.pdf", Indexed: true}, docs[0])
	assert.Equal(t, Document{Name: "b.pdf", Indexed: false}, docs[1])
}
