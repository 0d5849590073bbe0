package topics

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns a topic file into display text. format is the file
// extension with its dot.
type Renderer interface {
	Render(content string, format string) string
}

// PlainRenderer prints topics as written.
type PlainRenderer struct{}

func (*PlainRenderer) Render(content string, _ string) string { return content }

// GlamourRenderer renders markdown topics for the terminal.
type GlamourRenderer struct {
	// Style is a glamour style name or path; empty or "auto" detects the
	// terminal background.
	Style string
	// Width wraps output; 0 keeps glamour's default.
	Width int
}

// NewGlamourRenderer auto-detects style. Pass plain to get the "notty"
// style, for output that is not a terminal.
func NewGlamourRenderer(plain bool, width int) *GlamourRenderer {
	r := &GlamourRenderer{Style: "auto", Width: width}
	if plain {
		r.Style = "notty"
	}
	return r
}

// Render converts markdown; other formats pass through. Rendering errors
// fall back to the raw text.
func (r *GlamourRenderer) Render(content string, format string) string {
	if format != ".md" {
		return content
	}

	var options []glamour.TermRendererOption
	switch r.Style {
	case "", "auto":
		options = append(options, glamour.WithAutoStyle())
	case "notty", "dark", "light", "ascii":
		options = append(options, glamour.WithStandardStyle(r.Style))
	default:
		options = append(options, glamour.WithStylePath(r.Style))
	}
	if r.Width > 0 {
		options = append(options, glamour.WithWordWrap(r.Width))
	}

	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
