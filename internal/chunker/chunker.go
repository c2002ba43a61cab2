// Package chunker splits extracted document text into overlapping
// fixed-size word windows, the atomic unit of indexing and retrieval.
package chunker

import (
	"fmt"
	"strings"
)

// DefaultChunkSize is the default number of words per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of words shared between adjacent chunks.
const DefaultOverlap = 200

// Chunker splits text on whitespace-delimited words using a sliding window.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. It rejects configurations where the window could
// never advance (overlap >= chunkSize) instead of looping at runtime.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured window size in words.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the text cut into word windows of chunkSize words, each
// window starting chunkSize-overlap words after the previous one. Text that
// fits in a single window is returned whole and untouched; the final chunk
// may be shorter than chunkSize.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.chunkSize {
		return []string{text}
	}

	step := c.chunkSize - c.overlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
