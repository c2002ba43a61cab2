package cmd

import (
	"fmt"

	"docquery/internal/index"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// renderMarkdown renders model output as markdown for the terminal. On any
// renderer failure the raw text is returned unchanged.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

// formatSources lists the chunks backing an answer, one line per chunk.
func formatSources(chunks []index.SearchResult) string {
	if len(chunks) == 0 {
		return ""
	}
	s := dimStyle.Render("Sources:") + "\n"
	for _, c := range chunks {
		s += dimStyle.Render(fmt.Sprintf("  %s  chunk %d  score %.3f", c.Source, c.ChunkIndex, c.Score)) + "\n"
	}
	return s
}
