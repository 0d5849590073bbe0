// pkg/tryit/tryit_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: afero MemMapFs, FakeRunner
// PURPOSE: Test exporting the example project and choosing what opens it

package tryit_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/testutil"
	"github.com/arthur-debert/kitman/pkg/tryit"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	fsys := filesystem.NewAferoFS(afero.NewMemMapFs())

	root, err := tryit.Export(fsys, "/work")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", tryit.ProjectDir), root)

	for _, name := range []string{"Cargo.toml", filepath.Join("src", "main.rs"), filepath.Join(".vscode", "launch.json")} {
		assert.True(t, filesystem.Exists(fsys, filepath.Join(root, name)), name)
	}
	cargo, err := fsys.ReadFile(filepath.Join(root, "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(cargo), `name = "example_project"`)

	// Exporting again replaces the files in place.
	require.NoError(t, fsys.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("edited"), 0o644))
	_, err = tryit.Export(fsys, "/work")
	require.NoError(t, err)
	cargo, err = fsys.ReadFile(filepath.Join(root, "Cargo.toml"))
	require.NoError(t, err)
	assert.NotEqual(t, "edited", string(cargo))
}

func onPath(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + filepath.Base(name), nil
			}
		}
		return "", os.ErrNotExist
	}
}

func TestOpen(t *testing.T) {
	installed := fingerprint.New("/kit")
	installed.SetTool(fingerprint.ToolRecord{Name: "vscodium", Kind: manifest.KindCustom, BinDir: "/kit/tools/vscodium/bin"})

	tests := []struct {
		name      string
		installed *fingerprint.Record
		path      []string
		goos      string
		want      string
	}{
		{"vscode on path", nil, []string{"code", "codium"}, "linux", "/usr/bin/code"},
		{"vscodium on path", nil, []string{"codium"}, "linux", "/usr/bin/codium"},
		{"installed editor", installed, []string{"/kit/tools/vscodium/bin/codium"}, "linux", "/usr/bin/codium"},
		{"linux file manager", nil, nil, "linux", "xdg-open"},
		{"macos file manager", nil, nil, "darwin", "open"},
		{"windows file manager", nil, nil, "windows", "explorer.exe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := testutil.NewFakeRunner()
			o := tryit.Opener{Runner: runner, Installed: tt.installed, LookPath: onPath(tt.path...), GOOS: tt.goos}
			got := o.Open(context.Background(), "/work/example_project")
			assert.Equal(t, tt.want, got)
			want := testutil.Line(execution.Command{Name: tt.want, Args: []string{"/work/example_project"}})
			assert.Equal(t, []string{want}, runner.Lines())
		})
	}
}

func TestOpenFailureIsNotFatal(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.Fail["xdg-open"] = errors.New(errors.ErrExternalTool, "no display")
	o := tryit.Opener{Runner: runner, LookPath: onPath(), GOOS: "linux"}
	assert.Equal(t, "xdg-open", o.Open(context.Background(), "/work/example_project"))
}
