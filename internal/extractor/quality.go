package extractor

import (
	"strings"
	"unicode"
)

// Quality score weights and saturation points. Word count stops contributing
// past 100 words and average word length past 8 runes.
const (
	weightAlnumRatio = 0.4
	weightWordCount  = 0.3
	weightAvgWordLen = 0.3
	wordCountCap     = 100.0
	avgWordLengthCap = 8.0
)

// Quality scores an OCR result in [0,1]: a weighted mix of the alphanumeric
// character ratio, a saturating word count, and a saturating average word
// length. Higher is better; garbage recognition scores near zero.
func Quality(text string) float64 {
	if text == "" {
		return 0
	}

	var stripped, alnum int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		stripped++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if stripped == 0 {
		return 0
	}
	charRatio := float64(alnum) / float64(stripped)

	words := strings.Fields(text)
	var avgWordLen float64
	if len(words) > 0 {
		var total int
		for _, w := range words {
			total += len([]rune(w))
		}
		avgWordLen = float64(total) / float64(len(words))
	}

	q := charRatio*weightAlnumRatio +
		min(float64(len(words))/wordCountCap, 1.0)*weightWordCount +
		min(avgWordLen/avgWordLengthCap, 1.0)*weightAvgWordLen
	return min(q, 1.0)
}
