package toolchain

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/paths"
)

// proxyNames are the binaries rustup places in the cargo bin dir.
var proxyNames = []string{
	"rustup", "rustc", "rustdoc", "cargo", "rust-lldb", "rust-gdb", "rust-gdbgui",
	"rls", "cargo-clippy", "clippy-driver", "cargo-fmt", "rustfmt",
	"rust-analyzer", "cargo-miri",
}

// Remove deletes rustup's data directory and proxies. Toolchains named in
// preserve survive under RUSTUP_HOME/toolchains; directories left empty
// are removed, and so is the cargo bin dir when nothing else lives there.
func (a *Adapter) Remove(preserve ...string) error {
	done := logging.LogOperationStart(a.logger, "toolchain.remove")
	defer done()

	keep := map[string]bool{}
	for _, p := range preserve {
		if p != "" {
			keep[p] = true
		}
	}

	home := a.settings.Layout.RustupHome()
	if err := a.clearExcept(home, map[string]bool{"toolchains": len(keep) > 0}); err != nil {
		return err
	}
	toolchains := filepath.Join(home, "toolchains")
	if err := a.clearExcept(toolchains, keep); err != nil {
		return err
	}
	for _, dir := range []string{toolchains, home} {
		if err := filesystem.RemoveIfEmpty(a.fs, dir); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", dir)
		}
	}

	bin := a.settings.Layout.CargoBin()
	for _, name := range proxyNames {
		path := filepath.Join(bin, paths.ExeName(name))
		if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", path)
		}
	}
	if err := filesystem.RemoveIfEmpty(a.fs, bin); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", bin)
	}
	a.state = Removed
	return nil
}

// clearExcept removes every entry of dir not named in keep.
func (a *Adapter) clearExcept(dir string, keep map[string]bool) error {
	entries, err := a.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFileAccess, "read %s", dir)
	}
	for _, e := range entries {
		if keep[e.Name()] {
			a.logger.Debug().Str("entry", e.Name()).Msg("preserving")
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := a.fs.RemoveAll(path); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", path)
		}
	}
	return nil
}
