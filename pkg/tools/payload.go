package tools

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/kitman/pkg/archive"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fetch"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
)

// payload is the local copy of a tool's source.
type payload struct {
	path    string
	cleanup func()
}

// fetchPayload makes the tool's source available locally. url sources are
// downloaded under <install>/temp and checked against their sha256 when the
// manifest gives one; path sources are used in place.
func (e *Executor) fetchPayload(ctx context.Context, tool manifest.Tool, env Env) (payload, error) {
	none := payload{cleanup: func() {}}
	switch tool.Source.Kind {
	case manifest.SourceVersion, manifest.SourceGit, manifest.SourceNone:
		return none, nil
	case manifest.SourceRestricted:
		if tool.Source.Path == "" && tool.Source.URL == "" {
			return none, errors.Newf(errors.ErrInvalidInput, "tool %s needs its source supplied before install", tool.Name).
				WithDetail("default", tool.Source.Default)
		}
	}

	location := tool.LocalPath()
	if location == "" {
		location = tool.Source.URL
	}
	if strings.Contains(location, "://") && !strings.HasPrefix(location, "file://") {
		if e.fetcher == nil {
			return none, errors.New(errors.ErrInternal, "tool executor has no fetcher")
		}
		dir := filepath.Join(env.Layout.TempDir(), tool.Name)
		if err := e.fs.MkdirAll(dir, 0o755); err != nil {
			return none, errors.Wrapf(err, errors.ErrDirCreate, "create %s", dir)
		}
		dest := filepath.Join(dir, tool.PayloadName())
		env.Tracker.Message("Downloading " + tool.Label())
		cleanup := func() { _ = e.fs.RemoveAll(dir) }
		if err := e.fetcher.Fetch(ctx, location, dest); err != nil {
			cleanup()
			return none, err
		}
		if sum := tool.Source.SHA256; sum != "" {
			if err := fetch.VerifySHA256(dest, sum); err != nil {
				cleanup()
				return none, errors.Wrapf(err, errors.ErrChecksum, "download of %s", tool.Name)
			}
		}
		return payload{path: dest, cleanup: cleanup}, nil
	}

	location = strings.TrimPrefix(location, "file://")
	if _, err := e.fs.Stat(location); err != nil {
		return none, errors.Wrapf(err, errors.ErrFileNotFound, "source of %s", tool.Name)
	}
	return payload{path: location, cleanup: func() {}}, nil
}

// Infer picks a kind for a tool that does not declare one, looking at the
// payload when there is one.
func (e *Executor) Infer(tool manifest.Tool, payloadPath string) (manifest.ToolKind, error) {
	if payloadPath == "" {
		switch {
		case e.routines.Has(routineName(tool)):
			return manifest.KindCustom, nil
		case tool.Source.Kind == manifest.SourceVersion || tool.Source.Kind == manifest.SourceGit:
			return manifest.KindCargoTool, nil
		}
		return manifest.KindUnknown, errors.Newf(errors.ErrInvalidInput, "cannot tell how to install %s", tool.Name)
	}

	if info, err := e.fs.Stat(payloadPath); err == nil && info.IsDir() {
		if bin, err := e.fs.Stat(filepath.Join(payloadPath, paths.BinDirName)); err == nil && bin.IsDir() {
			return manifest.KindDirWithBin, nil
		}
		return manifest.KindExecutables, nil
	}

	lower := strings.ToLower(payloadPath)
	switch {
	case strings.HasSuffix(lower, ".vsix"):
		return manifest.KindPlugin, nil
	case strings.HasSuffix(lower, ".crate"):
		return manifest.KindCrate, nil
	case e.routines.Has(routineName(tool)):
		return manifest.KindCustom, nil
	case strings.HasSuffix(lower, ".msi"), strings.HasSuffix(lower, ".exe"):
		return manifest.KindInstaller, nil
	case archive.IsArchive(lower):
		return manifest.KindDirWithBin, nil
	}
	return manifest.KindExecutables, nil
}

// unpack places a payload at dest: archives are extracted, directories
// copied and single files copied into dest. Whatever was at dest goes.
func (e *Executor) unpack(src, dest string) error {
	if err := e.fs.RemoveAll(dest); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "clear %s", dest)
	}
	info, err := e.fs.Stat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound, "stat %s", src)
	}
	switch {
	case info.IsDir():
		return filesystem.CopyDirFS(e.fs, src, dest)
	case archive.IsArchive(src):
		// Archives are read straight from disk.
		_, err := archive.Extract(src, dest)
		return err
	}
	if err := e.fs.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", dest)
	}
	return filesystem.CopyFileFS(e.fs, src, filepath.Join(dest, filepath.Base(src)))
}

// removePaths deletes recorded files and directories, tolerating ones
// that are already gone.
func (e *Executor) removePaths(list []string) error {
	for _, p := range list {
		if err := e.fs.RemoveAll(p); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", p)
		}
	}
	return nil
}
