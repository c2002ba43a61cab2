package llm

import (
	"fmt"
	"strings"
)

const systemPromptTemplate = `You are an expert assistant answering questions based on the provided documents.

IMPORTANT RULES:
1. Use ONLY the provided CONTEXTS. Do NOT invent facts.
2. If an answer is NOT found in the contexts, respond with: "INFORMATION NOT FOUND"
3. Complete every sentence fully and logically.
4. Always include at least one short verbatim quote from the context.
5. %s

ANSWER FORMAT:
- If information is found: give a clear, complete answer with a quote
- If NOT found: "INFORMATION NOT FOUND"
- Complete all sentences fully`

// germanKeywords mark a question as German, switching the response-language
// instruction.
var germanKeywords = []string{
	"was", "wie", "wo", "wann", "wer", "welche", "welcher", "welches",
	"erkläre", "beschreibe", "definiere", "was ist", "was bedeutet",
}

const (
	instructionEnglish = "Respond in English. Use clear, professional language. " +
		"Complete all sentences properly. If you cannot find information, " +
		"state this clearly and directly."
	instructionGerman = "Antworte auf Deutsch. Verwende eine klare, professionelle Sprache. " +
		"Beende alle Sätze vollständig. Wenn du eine Information nicht findest, " +
		"sage das klar und deutlich."
)

// buildPrompts assembles the system and user prompts. When chunk info is
// available the user prompt lists each chunk with its similarity score;
// otherwise the pre-built context string is used as-is.
func buildPrompts(question, rawContext string, chunks []ContextChunk) (system, user string) {
	system = fmt.Sprintf(systemPromptTemplate, languageInstruction(question))

	contextText := rawContext
	if len(chunks) > 0 {
		parts := make([]string, len(chunks))
		for i, c := range chunks {
			header := fmt.Sprintf("--- CHUNK %d (similarity: %.3f) ---", i+1, c.Score)
			if c.Source != "" {
				header = fmt.Sprintf("--- CHUNK %d from %s (similarity: %.3f) ---", i+1, c.Source, c.Score)
			}
			parts[i] = header + "\n" + c.Text
		}
		contextText = strings.Join(parts, "\n\n")
	}

	user = fmt.Sprintf("CONTEXTS:\n%s\n\nQUESTION: %s\n\nAnswer based on the contexts above. Use only the provided information.",
		contextText, question)
	return system, user
}

// languageInstruction picks the response-language instruction by scanning
// the question for common German interrogatives.
func languageInstruction(question string) string {
	q := strings.ToLower(question)
	words := strings.Fields(q)
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,!?")] = struct{}{}
	}
	for _, kw := range germanKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(q, kw) {
				return instructionGerman
			}
			continue
		}
		if _, ok := wordSet[kw]; ok {
			return instructionGerman
		}
	}
	return instructionEnglish
}
