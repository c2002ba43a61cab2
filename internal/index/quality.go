package index

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk quality thresholds. Chunks below these are noise (page furniture,
// OCR debris, tables shredded into single characters) and are not indexed.
const (
	minChunkLength = 100 // runes after trimming
	minChunkWords  = 10
	minAlphaRatio  = 0.3
	minAvgWordLen  = 2.0
)

// PassesQualityGate reports whether a chunk is worth indexing.
func PassesQualityGate(chunk string) bool {
	trimmed := strings.TrimSpace(chunk)
	if trimmed == "" {
		return false
	}
	if utf8.RuneCountInString(trimmed) < minChunkLength {
		return false
	}

	words := strings.Fields(chunk)
	if len(words) < minChunkWords {
		return false
	}

	var alpha, total int
	for _, r := range chunk {
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if total > 0 && float64(alpha)/float64(total) < minAlphaRatio {
		return false
	}

	var wordLen int
	for _, w := range words {
		wordLen += utf8.RuneCountInString(w)
	}
	if float64(wordLen)/float64(len(words)) < minAvgWordLen {
		return false
	}
	return true
}

// ChunkHash content-addresses a chunk for duplicate detection.
func ChunkHash(chunk string) string {
	h := sha1.Sum([]byte(chunk))
	return hex.EncodeToString(h[:])
}

// ChunkID derives the stable chunk id from the document's absolute path and
// the chunk index, so re-indexing a document at the same chunk boundaries
// overwrites instead of duplicating.
func ChunkID(docID string, index int) string {
	abs, err := filepath.Abs(docID)
	if err != nil {
		return fmt.Sprintf("%s_chunk_%d", docID, index)
	}
	h := sha1.Sum([]byte(abs))
	return fmt.Sprintf("%s_chunk_%d", hex.EncodeToString(h[:])[:8], index)
}
