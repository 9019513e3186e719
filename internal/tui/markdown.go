package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer converts markdown to styled terminal output. The
// underlying glamour renderer is cached and only rebuilt when the terminal
// width changes.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// newTermRenderer builds a glamour renderer for the given width.
func newTermRenderer(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Detect light/dark terminal
		glamour.WithWordWrap(width),
	)
}

// newMarkdownRenderer creates a renderer with terminal-appropriate styling.
// Returns nil renderer if initialization fails (graceful degradation).
func newMarkdownRenderer(width int) *markdownRenderer {
	if width <= 0 {
		width = 80 // Default terminal width
	}

	r, err := newTermRenderer(width)
	if err != nil {
		// Graceful degradation: caller falls back to plain text
		return nil
	}

	return &markdownRenderer{renderer: r, width: width}
}

// UpdateWidth rebuilds the renderer only if width has actually changed.
// Returns true if the renderer was rebuilt.
func (m *markdownRenderer) UpdateWidth(width int) bool {
	if m == nil || width <= 0 || m.width == width {
		return false
	}

	r, err := newTermRenderer(width)
	if err != nil {
		// Keep existing renderer on error
		return false
	}

	m.renderer = r
	m.width = width
	return true
}

// Render converts markdown to styled terminal output.
// Returns original text if rendering fails.
func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil {
		return markdown
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}

	// Trim trailing newlines added by glamour
	return strings.TrimSuffix(rendered, "\n")
}
