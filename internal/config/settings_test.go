package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 1000, s.ChunkSize)
	assert.Equal(t, 200, s.ChunkOverlap)
	assert.Equal(t, 256, s.BatchSize)
	assert.Equal(t, 0.15, s.SimilarityThreshold)
	assert.Equal(t, 5, s.NResults)
	assert.Equal(t, 2, s.GlobalPerDoc)
	assert.Equal(t, 4, s.GlobalTopK)
	assert.Equal(t, 768, s.EmbedDim)
	assert.Equal(t, "info", s.LogLevel)

	assert.Equal(t, "http://localhost:11434", s.Ollama.URL)
	assert.Equal(t, "nomic-embed-text", s.Ollama.EmbedModel)
	assert.Equal(t, 3*time.Minute, s.Ollama.Timeout)

	assert.Equal(t, []string{"eng", "deu"}, s.OCR.Languages)
	assert.Equal(t, 200.0, s.OCR.PrimaryDPI)
	assert.Equal(t, 300.0, s.OCR.FallbackDPI)
	assert.Equal(t, []int{6, 3, 8}, s.OCR.PSMModes)

	assert.Equal(t, 3, s.Retry.Attempts)
	assert.Equal(t, time.Second, s.Retry.InitialBackoff)
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("DOCQUERY_CHUNK_SIZE", "500")
	t.Setenv("DOCQUERY_OLLAMA_URL", "http://ollama.internal:11434")
	t.Setenv("DOCQUERY_LOG_LEVEL", "debug")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 500, s.ChunkSize)
	assert.Equal(t, "http://ollama.internal:11434", s.Ollama.URL)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadSettingsFlagsBeatEnv(t *testing.T) {
	t.Setenv("DOCQUERY_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.String("docs-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=error", "--docs-dir=/srv/docs"}))

	s, err := LoadSettingsWithFlags(flags)
	require.NoError(t, err)
	assert.Equal(t, "error", s.LogLevel)
	assert.Equal(t, "/srv/docs", s.DocsDir)
}

func TestLoadSettingsRejectsBadOverlap(t *testing.T) {
	t.Setenv("DOCQUERY_CHUNK_SIZE", "100")
	t.Setenv("DOCQUERY_CHUNK_OVERLAP", "100")

	_, err := LoadSettings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			ChunkSize:           1000,
			ChunkOverlap:        200,
			BatchSize:           256,
			SimilarityThreshold: 0.15,
			NResults:            5,
			EmbedDim:            768,
			Retry:               RetrySettings{Attempts: 3},
		}
	}

	require.NoError(t, valid().Validate())

	s := valid()
	s.ChunkSize = 0
	assert.Error(t, s.Validate())

	s = valid()
	s.ChunkOverlap = -1
	assert.Error(t, s.Validate())

	s = valid()
	s.ChunkOverlap = s.ChunkSize
	assert.Error(t, s.Validate())

	s = valid()
	s.SimilarityThreshold = 1.5
	assert.Error(t, s.Validate())

	s = valid()
	s.BatchSize = 0
	assert.Error(t, s.Validate())

	s = valid()
	s.EmbedDim = 0
	assert.Error(t, s.Validate())

	s = valid()
	s.Retry.Attempts = 0
	assert.Error(t, s.Validate())
}

func TestDBPath(t *testing.T) {
	s := &Settings{DataDir: "/var/lib/docquery"}
	assert.Equal(t, filepath.Join("/var/lib/docquery", "index.db"), s.DBPath())
}
