//go:build !windows

package envconf

import (
	"os"

	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/rs/zerolog"
)

// NewHost returns the configurator for the running platform.
func NewHost(fsys types.FS, logger *zerolog.Logger) Configurator {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return NewProfileConfigurator(fsys, ProfileOptions{
		Home:    home,
		ZDotDir: os.Getenv("ZDOTDIR"),
		Shell:   os.Getenv("SHELL"),
		Logger:  logger,
	})
}
