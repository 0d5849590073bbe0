// Package ui renders command results for the CLI: styled tables on a
// terminal, plain tables when piped, or JSON and YAML for scripts.
package ui

import (
	"io"
	"os"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
)

// Renderer is the common interface for all output renderers.
type Renderer interface {
	Components(list []components.Component) error
	Catalog(pkgs []manifest.DistPackage) error
	Record(rec *fingerprint.Record) error
	Result(res *core.Result) error
	Message(msg string) error
}

// NewRenderer creates a renderer for format. FormatAuto inspects output
// when it is a file and otherwise assumes a terminal.
func NewRenderer(format Format, output io.Writer) (Renderer, error) {
	switch format {
	case FormatAuto:
		if file, ok := output.(*os.File); ok {
			return NewRenderer(DetectFormat(file), output)
		}
		return NewRenderer(FormatTerminal, output)
	case FormatTerminal:
		return newTable(output, false), nil
	case FormatText:
		return newTable(output, true), nil
	case FormatJSON:
		return &structured{w: output, encode: encodeJSON}, nil
	case FormatYAML:
		return &structured{w: output, encode: encodeYAML}, nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown format: %v", format)
	}
}
