//go:build windows

package envconf

import (
	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/rs/zerolog"
)

// NewHost returns the configurator for the running platform.
func NewHost(_ types.FS, _ *zerolog.Logger) Configurator {
	return NewRegistryConfigurator(userEnvironment{}, broadcastChange)
}
