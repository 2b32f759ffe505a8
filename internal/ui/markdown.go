package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultWordWrap is the wrap width for rendered documents.
const DefaultWordWrap = 100

// Markdown renders generated documents for the terminal.
type Markdown struct {
	r *glamour.TermRenderer
}

// NewMarkdown creates a renderer wrapping at width. When enabled is false
// or glamour cannot initialize, Render returns its input unchanged.
func NewMarkdown(width int, enabled bool) *Markdown {
	if !enabled {
		return &Markdown{}
	}
	if width <= 0 {
		width = DefaultWordWrap
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Markdown{}
	}
	return &Markdown{r: r}
}

// Enabled reports whether styled rendering is active.
func (m *Markdown) Enabled() bool {
	return m.r != nil
}

// Render styles content, falling back to the raw text on error.
func (m *Markdown) Render(content string) string {
	if m.r == nil {
		return content
	}
	out, err := m.r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(out)
}
