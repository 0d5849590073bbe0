package core

import (
	"context"
	"fmt"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/arthur-debert/kitman/pkg/resolver"
)

// Uninstall removes every recorded tool and the toolchain. With keepSelf
// the manager stays installed and the record is reset to an empty
// toolkit that still lists any tool whose removal failed; otherwise the environment changes, the manager, the record and
// the configuration directory go too.
func (e *Engine) Uninstall(ctx context.Context, keepSelf bool) (*Result, error) {
	s, err := e.begin(ctx, opUninstall, "")
	if err != nil {
		return nil, err
	}
	rec := s.store.Record()
	if rec == nil {
		return nil, s.end(errors.New(errors.ErrStateMismatch, "nothing is installed"))
	}

	kind := KindUninstallAll
	if keepSelf {
		kind = KindUninstallToolkitOnly
	}
	layout := paths.NewLayout(rec.InstallDir)
	m, err := manifest.LoadFile(layout.ManifestCopy())
	if err != nil {
		s.logger.Debug().Err(err).Msg("no manifest copy, uninstalling from the record alone")
		m = recordManifest(rec)
	}
	s.prepare(&Target{
		Kind:     kind,
		Config:   Config{InstallDir: rec.InstallDir, AddToPath: true},
		Manifest: m,
	})
	if err := s.mark(); err != nil {
		return s.result, s.end(err)
	}

	order := resolver.UninstallOrder(rec, rec.ToolNames())
	e.tracker.MainStart(fmt.Sprintf("Uninstalling %s", rec.Name), int64(len(order)+3))

	for _, name := range order {
		if err := s.ctx.Err(); err != nil {
			return s.result, s.end(errors.Wrap(err, errors.ErrCancelled, "operation cancelled"))
		}
		s.uninstallTool(name)
		e.tracker.MainUpdate(1)
	}

	if err := s.step("toolchain", func(context.Context) error { return s.removeToolchain() }); err != nil {
		s.result.ToolchainErr = err
		return s.result, s.end(err)
	}
	e.tracker.MainUpdate(1)

	if keepSelf {
		// Tools that could not be removed stay recorded so a retry finds them.
		stuck := s.result.FailedNames()
		err := s.step("reset", func(context.Context) error {
			return s.store.Update(func(r *fingerprint.Record) { r.Reset(stuck...) })
		})
		e.tracker.MainUpdate(2)
		e.tracker.MainEnd("Toolkit removed, kitman is still installed")
		return s.result, s.end(err)
	}

	if err := s.step("environment", func(context.Context) error { return e.envconf.Revert(s.environment()) }); err != nil {
		return s.result, s.end(err)
	}
	e.tracker.MainUpdate(1)

	if err := s.step("remove-self", func(context.Context) error { return s.removeSelf() }); err != nil {
		return s.result, s.end(err)
	}
	e.tracker.MainUpdate(1)
	e.tracker.MainEnd("kitman has been removed")

	if err := s.end(nil); err != nil {
		return s.result, err
	}
	// The lock file lives here, so this waits for the release.
	if err := e.fs.RemoveAll(e.paths.ConfigDir()); err != nil {
		return s.result, errors.Wrapf(err, errors.ErrFileWrite, "remove %s", e.paths.ConfigDir())
	}
	return s.result, nil
}

// removeToolchain deletes rustup and its homes, keeping the toolchains
// that rule-sets still in the record are linked as.
func (s *session) removeToolchain() error {
	var preserve []string
	for _, t := range s.store.Record().Tools {
		if t.Kind == manifest.KindRuleSet {
			name := t.Toolchain
			if name == "" {
				name = t.Name
			}
			preserve = append(preserve, name)
		}
	}
	err := s.adapter.Remove(preserve...)
	s.e.metrics.ToolchainStep("remove", err)
	if err != nil {
		return err
	}
	return s.store.RecordToolchain(nil)
}

// removeSelf deletes the manager, its links, its uninstall entry, the
// record and whatever kitman created under the root. The root itself is
// only removed once empty, as it may be a directory the user owns.
func (s *session) removeSelf() error {
	e := s.e
	l := s.layout
	for _, link := range l.ManagerLinks() {
		if err := e.host.RemoveExecutable(link); err != nil {
			return err
		}
	}
	if err := e.host.RemoveExecutable(l.ManagerExe()); err != nil {
		return err
	}
	if err := e.host.UnregisterUninstall(paths.AppName); err != nil {
		return err
	}
	if err := s.store.Delete(); err != nil {
		return err
	}

	for _, p := range []string{l.ManifestCopy(), l.LegacyFingerprint(), l.TempDir(), l.ToolsDir()} {
		if err := e.fs.RemoveAll(p); err != nil {
			return errors.Wrapf(err, errors.GetErrorCode(err), "remove %s", p)
		}
	}
	for _, dir := range []string{l.CargoBin(), l.CargoHome(), l.Root} {
		if err := filesystem.RemoveIfEmpty(e.fs, dir); err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("left directory in place")
		}
	}
	return nil
}
