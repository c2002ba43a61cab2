package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// OllamaSettings configuration for the local Ollama instance.
type OllamaSettings struct {
	URL        string        `mapstructure:"url"`
	EmbedModel string        `mapstructure:"embed_model"`
	ChatModel  string        `mapstructure:"chat_model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// OCRSettings configuration for the Tesseract fallback.
type OCRSettings struct {
	Languages   []string `mapstructure:"languages"`
	PrimaryDPI  float64  `mapstructure:"primary_dpi"`
	FallbackDPI float64  `mapstructure:"fallback_dpi"`
	PSMModes    []int    `mapstructure:"psm_modes"`
	Workers     int      `mapstructure:"workers"`
}

// RetrySettings configuration for batch-flush retries against the store.
type RetrySettings struct {
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// Settings application settings.
type Settings struct {
	DataDir string `mapstructure:"data_dir"`
	DocsDir string `mapstructure:"docs_dir"`

	ChunkSize           int     `mapstructure:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap"`
	BatchSize           int     `mapstructure:"batch_size"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	NResults            int     `mapstructure:"n_results"`
	GlobalPerDoc        int     `mapstructure:"global_per_doc"`
	GlobalTopK          int     `mapstructure:"global_top_k"`
	EmbedDim            int     `mapstructure:"embed_dim"`

	Ollama OllamaSettings `mapstructure:"ollama"`
	OCR    OCRSettings    `mapstructure:"ocr"`
	Retry  RetrySettings  `mapstructure:"retry"`

	LogLevel string `mapstructure:"log_level"`
}

// DBPath returns the SQLite database path under the data directory.
func (s *Settings) DBPath() string {
	return filepath.Join(s.DataDir, "index.db")
}

// LoadSettings loads settings from environment variables and an optional .env file.
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	// Best-effort .env load; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("docs_dir", ".")
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("batch_size", 256)
	v.SetDefault("similarity_threshold", 0.15)
	v.SetDefault("n_results", 5)
	v.SetDefault("global_per_doc", 2)
	v.SetDefault("global_top_k", 4)
	v.SetDefault("embed_dim", 768)
	v.SetDefault("log_level", "info")

	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.embed_model", "nomic-embed-text")
	v.SetDefault("ollama.chat_model", "llama3.2:3b")
	v.SetDefault("ollama.timeout", 3*time.Minute)

	v.SetDefault("ocr.languages", []string{"eng", "deu"})
	v.SetDefault("ocr.primary_dpi", 200.0)
	v.SetDefault("ocr.fallback_dpi", 300.0)
	v.SetDefault("ocr.psm_modes", []int{6, 3, 8})
	v.SetDefault("ocr.workers", 4)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.initial_backoff", time.Second)

	v.SetEnvPrefix("DOCQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// bindFlags overlays changed CLI flags onto the viper instance.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"data-dir":    "data_dir",
		"docs-dir":    "docs_dir",
		"ollama":      "ollama.url",
		"embed-model": "ollama.embed_model",
		"chat-model":  "ollama.chat_model",
		"log-level":   "log_level",
	}
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := bindings[f.Name]; ok && err == nil {
			err = v.BindPFlag(key, f)
		}
	})
	return err
}

// Validate rejects configurations that would misbehave at runtime, most
// importantly a chunk overlap that would stall the sliding window.
func (s *Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if s.ChunkOverlap < 0 {
		return errors.New("chunk_overlap must not be negative")
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", s.ChunkOverlap, s.ChunkSize)
	}
	if s.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0,1], got %g", s.SimilarityThreshold)
	}
	if s.NResults <= 0 {
		return errors.New("n_results must be positive")
	}
	if s.EmbedDim <= 0 {
		return errors.New("embed_dim must be positive")
	}
	if s.Retry.Attempts <= 0 {
		return errors.New("retry.attempts must be positive")
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docquery"
	}
	return filepath.Join(home, ".docquery")
}
