package ui

import (
	"os"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Format selects how command results are written.
type Format int

const (
	// FormatAuto resolves to FormatTerminal or FormatText once the output
	// is known.
	FormatAuto Format = iota
	FormatTerminal
	FormatText
	FormatJSON
	FormatYAML
)

var formatNames = [...]string{"auto", "table", "text", "json", "yaml"}

// formatAliases are accepted by --output in addition to formatNames.
var formatAliases = map[string]Format{
	"":         FormatAuto,
	"term":     FormatTerminal,
	"terminal": FormatTerminal,
	"plain":    FormatText,
	"yml":      FormatYAML,
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return "unknown"
	}
	return formatNames[f]
}

// ParseFormat reads an --output value. Case and surrounding space are
// ignored.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range formatNames {
		if n == name {
			return Format(i), nil
		}
	}
	if f, ok := formatAliases[name]; ok {
		return f, nil
	}
	return FormatAuto, errors.Newf(errors.ErrInvalidInput, "unknown output format %q", s).
		WithDetail("valid", formatNames[:])
}

// DetectFormat styles output only for a colour-capable terminal that has
// not opted out through NO_COLOR.
func DetectFormat(output *os.File) Format {
	styled := os.Getenv("NO_COLOR") == "" &&
		IsTerminal(output) &&
		termenv.ColorProfile() != termenv.Ascii
	if styled {
		return FormatTerminal
	}
	return FormatText
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
