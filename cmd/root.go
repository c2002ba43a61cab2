// Package cmd wires the CLI surface: indexing, asking, chatting, status,
// clearing, and the MCP server.
package cmd

import (
	"fmt"
	"os"

	"docquery/internal/chunker"
	"docquery/internal/config"
	"docquery/internal/embedder"
	"docquery/internal/extractor"
	"docquery/internal/index"
	"docquery/internal/llm"
	"docquery/internal/retriever"
	"docquery/internal/store"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docquery",
	Short: "Ask questions about your PDF documents, answered locally",
	Long: `docquery indexes the PDF files in a directory, reading their text layer
or falling back to OCR for scanned pages, and answers questions about
them using a local Ollama instance. Nothing leaves your machine.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", "", "directory for the index database (default ~/.docquery)")
	pf.String("docs-dir", "", "directory holding the PDF corpus (default current directory)")
	pf.String("ollama", "", "ollama base URL (default http://localhost:11434)")
	pf.String("embed-model", "", "embedding model (default nomic-embed-text)")
	pf.String("chat-model", "", "generative model for answers (default llama3.2:3b)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default info)")
}

// app bundles the wired components behind a command.
type app struct {
	settings  *config.Settings
	index     *index.Index
	retriever *retriever.Retriever
	chat      *llm.OllamaChat
}

// newApp loads settings, sets up logging, and wires the full pipeline:
// store, embedder, chunker, index, extractor, chat model, retriever.
func newApp(cmd *cobra.Command) (*app, error) {
	settings, err := config.LoadSettingsWithFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	config.SetupLogging(settings.LogLevel)

	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.Open(settings.DBPath(), settings.EmbedDim)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}

	ck, err := chunker.New(settings.ChunkSize, settings.ChunkOverlap)
	if err != nil {
		st.Close()
		return nil, err
	}

	emb := embedder.NewOllamaEmbedder(settings.Ollama.URL, settings.Ollama.EmbedModel, settings.EmbedDim)

	idx := index.New(st, emb, ck, index.Config{
		PersistDirectory:    settings.DataDir,
		BatchSize:           settings.BatchSize,
		SimilarityThreshold: settings.SimilarityThreshold,
		NResults:            settings.NResults,
		Retry: index.RetryPolicy{
			Attempts:       settings.Retry.Attempts,
			InitialBackoff: settings.Retry.InitialBackoff,
		},
	}, index.WithReconnect(func() (index.Backend, error) {
		return store.Open(settings.DBPath(), settings.EmbedDim)
	}))

	ext := extractor.New(extractor.NewTesseract(), extractor.Config{
		Languages:   settings.OCR.Languages,
		PrimaryDPI:  settings.OCR.PrimaryDPI,
		FallbackDPI: settings.OCR.FallbackDPI,
		PSMModes:    settings.OCR.PSMModes,
		Workers:     settings.OCR.Workers,
	})

	chat := llm.NewOllamaChat(settings.Ollama.URL, settings.Ollama.ChatModel, settings.Ollama.Timeout)

	ret := retriever.New(idx, ext, chat, retriever.Config{
		DocsDir:  settings.DocsDir,
		NResults: settings.NResults,
		PerDoc:   settings.GlobalPerDoc,
		TopK:     settings.GlobalTopK,
	})

	return &app{
		settings:  settings,
		index:     idx,
		retriever: ret,
		chat:      chat,
	}, nil
}

func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close index: %v\n", err)
	}
}
