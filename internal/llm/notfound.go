package llm

import "strings"

// NotFoundSentinel is the canonical marker for "the context holds no answer".
const NotFoundSentinel = "INFORMATION NOT FOUND"

// notFoundPatterns are phrasings the model uses when it cannot answer,
// checked case-insensitively. German variants stem from bilingual corpora.
var notFoundPatterns = []string{
	"information not found",
	"information nicht gefunden",
	"no information found",
	"keine informationen gefunden",
	"not in the contexts",
	"nicht in den kontexten",
}

// IsNotFound reports whether a model answer amounts to "nothing found".
func IsNotFound(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range notFoundPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ValidateResponse normalizes a raw model response: empty answers and any
// known not-found phrasing collapse to the sentinel, and a short dangling
// sentence fragment at the end is dropped.
func ValidateResponse(raw string) string {
	response := strings.TrimSpace(raw)
	if response == "" {
		return NotFoundSentinel
	}
	if IsNotFound(response) {
		return NotFoundSentinel
	}

	// Trim a trailing incomplete sentence the model ran out of tokens on.
	if !strings.HasSuffix(response, ".") && !strings.HasSuffix(response, "!") && !strings.HasSuffix(response, "?") {
		sentences := strings.Split(response, ".")
		if len(sentences) > 1 {
			last := strings.TrimSpace(sentences[len(sentences)-1])
			if last != "" && len(last) < 50 {
				response = strings.Join(sentences[:len(sentences)-1], ".") + "."
			}
		}
	}
	return response
}
