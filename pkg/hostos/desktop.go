package hostos

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/types"
)

// GeneratedMarker tags desktop entries kitman wrote, so removal never
// touches a launcher the user or a package manager created.
const GeneratedMarker = "X-Kitman-Generated=true"

// DesktopEntry is a freedesktop.org application launcher.
type DesktopEntry struct {
	ID      string
	Name    string
	Comment string
	Exec    string
	Icon    string
}

// ApplicationsDir is where per-user launchers live.
func ApplicationsDir() string {
	return filepath.Join(xdg.DataHome, "applications")
}

// Render formats the entry as a .desktop file.
func (e DesktopEntry) Render() string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", e.Name)
	if e.Comment != "" {
		fmt.Fprintf(&b, "Comment=%s\n", e.Comment)
	}
	fmt.Fprintf(&b, "Exec=%s\n", e.Exec)
	if e.Icon != "" {
		fmt.Fprintf(&b, "Icon=%s\n", e.Icon)
	}
	b.WriteString("Terminal=false\n")
	b.WriteString("Categories=Development;IDE;\n")
	b.WriteString(GeneratedMarker + "\n")
	return b.String()
}

// WriteDesktopEntry writes <dir>/<id>.desktop and returns its path. An
// existing launcher without the marker is left alone.
func WriteDesktopEntry(fsys types.FS, dir string, e DesktopEntry) (string, error) {
	path := filepath.Join(dir, e.ID+".desktop")
	if data, err := fsys.ReadFile(path); err == nil && !strings.Contains(string(data), GeneratedMarker) {
		return "", errors.Newf(errors.ErrAlreadyExists, "%s exists and was not created by kitman", path)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "create %s", dir)
	}
	if err := fsys.WriteFile(path, []byte(e.Render()), 0o644); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileWrite, "write %s", path)
	}
	return path, nil
}

// RemoveDesktopEntry deletes path when it carries the marker and reports
// whether it did.
func RemoveDesktopEntry(fsys types.FS, path string) (bool, error) {
	if !filesystem.Exists(fsys, path) {
		return false, nil
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "read %s", path)
	}
	if !strings.Contains(string(data), GeneratedMarker) {
		return false, nil
	}
	if err := fsys.Remove(path); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "remove %s", path)
	}
	return true, nil
}
