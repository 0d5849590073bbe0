package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Adaptive colors for light and dark terminals.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#87D787"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#AF5F00", Dark: "#FFAF5F"}
	colorError   = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}
)

// Styles groups the styles one renderer uses.
type Styles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Cell      lipgloss.Style
	Installed lipgloss.Style
	Required  lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles builds styles bound to w. plain forces the ASCII profile so
// no escape sequences are written.
func NewStyles(w io.Writer, plain bool) Styles {
	r := lipgloss.NewRenderer(w)
	if plain {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Title:     r.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1),
		Header:    r.NewStyle().Bold(true).Underline(true).PaddingRight(2),
		Cell:      r.NewStyle().PaddingRight(2),
		Installed: r.NewStyle().Foreground(colorSuccess).PaddingRight(2),
		Required:  r.NewStyle().Foreground(colorWarning).PaddingRight(2),
		Muted:     r.NewStyle().Foreground(colorMuted).PaddingRight(2),
		Success:   r.NewStyle().Foreground(colorSuccess).Bold(true),
		Warning:   r.NewStyle().Foreground(colorWarning),
		Error:     r.NewStyle().Foreground(colorError).Bold(true),
	}
}
