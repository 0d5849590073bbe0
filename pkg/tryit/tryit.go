// Package tryit exports a small cargo project so a fresh installation can
// be tried out, and opens it in an editor or the file manager.
package tryit

import (
	"context"
	"embed"
	"io/fs"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/tools"
	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/rs/zerolog"
)

//go:embed all:template
var demo embed.FS

// ProjectDir is the directory Export creates.
const ProjectDir = "example_project"

// Export writes the demo project below dir, replacing files of the same
// name, and returns the project root.
func Export(fsys types.FS, dir string) (string, error) {
	root := filepath.Join(dir, ProjectDir)
	err := fs.WalkDir(demo, "template", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel("template", filepath.FromSlash(name))
		target := filepath.Join(root, rel)
		if d.IsDir() {
			if err := fsys.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "create %s", target)
			}
			return nil
		}
		data, err := demo.ReadFile(name)
		if err != nil {
			return errors.Wrapf(err, errors.ErrInternal, "read embedded %s", name)
		}
		if err := fsys.WriteFile(target, data, 0o644); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "write %s", target)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return root, nil
}

// editors are tried in order before the file manager.
var editors = []string{"vscode", "vscodium"}

// Opener launches an exported project.
type Opener struct {
	Runner execution.Runner
	// Installed lets an editor kitman installed win over one on PATH.
	Installed *fingerprint.Record
	// LookPath finds programs; nil uses exec.LookPath.
	LookPath func(string) (string, error)
	// GOOS picks the file manager; empty uses runtime.GOOS.
	GOOS   string
	Logger *zerolog.Logger
}

// Open shows project in the first editor available, else in the file
// manager, and returns the program it ran. A failure to launch is logged
// and not returned: the project is already exported.
func (o Opener) Open(ctx context.Context, project string) string {
	logger := logging.OrDefault(o.Logger, "tryit")
	lookPath := o.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	program := fileManager(o.GOOS)
	for _, editor := range editors {
		if found, err := lookPath(tools.EditorCommand(o.Installed, editor)); err == nil {
			program = found
			break
		}
	}

	logging.LogCommand(logger, program, []string{project})
	if err := o.Runner.Run(ctx, execution.Command{Name: program, Args: []string{project}}); err != nil {
		logger.Warn().Err(err).Str("program", program).Msg("could not open the example project")
	}
	return program
}

func fileManager(goos string) string {
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "windows":
		return "explorer.exe"
	case "darwin":
		return "open"
	}
	return "xdg-open"
}
