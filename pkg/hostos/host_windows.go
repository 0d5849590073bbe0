//go:build windows

package hostos

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const uninstallRoot = `Software\Microsoft\Windows\CurrentVersion\Uninstall`

// RegisterUninstall writes HKCU\...\Uninstall\<id>.
func (Native) RegisterUninstall(e UninstallEntry) error {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, uninstallRoot+`\`+e.ID, registry.SET_VALUE)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "create uninstall entry %s", e.ID)
	}
	defer k.Close()

	for name, value := range map[string]string{
		"DisplayName":     e.DisplayName,
		"DisplayVersion":  e.DisplayVersion,
		"Publisher":       e.Publisher,
		"InstallLocation": e.InstallLocation,
		"UninstallString": e.UninstallString,
	} {
		if value == "" {
			continue
		}
		if err := k.SetStringValue(name, value); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "set %s", name)
		}
	}
	_ = k.SetDWordValue("NoModify", 1)
	_ = k.SetDWordValue("NoRepair", 1)
	return nil
}

// UnregisterUninstall deletes the entry; a missing one is fine.
func (Native) UnregisterUninstall(id string) error {
	err := registry.DeleteKey(registry.CURRENT_USER, uninstallRoot+`\`+id)
	if err != nil && !stderrors.Is(err, registry.ErrNotExist) {
		return errors.Wrapf(err, errors.ErrFileWrite, "delete uninstall entry %s", id)
	}
	return nil
}

// LookupUninstallCommand searches the per-user then machine-wide entries.
func (Native) LookupUninstallCommand(displayName string) (string, bool) {
	for _, root := range []registry.Key{registry.CURRENT_USER, registry.LOCAL_MACHINE} {
		parent, err := registry.OpenKey(root, uninstallRoot, registry.ENUMERATE_SUB_KEYS)
		if err != nil {
			continue
		}
		names, _ := parent.ReadSubKeyNames(-1)
		parent.Close()
		for _, n := range names {
			k, err := registry.OpenKey(root, uninstallRoot+`\`+n, registry.QUERY_VALUE)
			if err != nil {
				continue
			}
			name, _, _ := k.GetStringValue("DisplayName")
			cmd := ""
			if strings.EqualFold(name, displayName) {
				if quiet, _, err := k.GetStringValue("QuietUninstallString"); err == nil && quiet != "" {
					cmd = quiet
				} else {
					cmd, _, _ = k.GetStringValue("UninstallString")
				}
			}
			k.Close()
			if cmd != "" {
				return cmd, true
			}
		}
	}
	return "", false
}

// LinkExecutable hard-links target, falling back to a copy. Symlinks need
// elevated rights on most Windows setups.
func (n Native) LinkExecutable(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(link))
	}
	if err := n.RemoveExecutable(link); err != nil {
		return err
	}
	if err := os.Link(target, link); err == nil {
		return nil
	}
	if err := filesystem.CopyFile(target, link); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "link %s -> %s", link, target)
	}
	return nil
}

// ReplaceExecutable moves the running binary aside first; Windows allows
// renaming an executing image but not overwriting it.
func (Native) ReplaceExecutable(current, replacement string) error {
	old := current + ".old"
	_ = os.Remove(old)
	if err := filesystem.Retry(func() error { return os.Rename(current, old) }); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, errors.ErrFileInUse, "move %s aside", current)
	}
	if err := filesystem.Retry(func() error { return os.Rename(replacement, current) }); err != nil {
		_ = os.Rename(old, current)
		return errors.Wrapf(err, errors.ErrFileWrite, "replace %s", current)
	}
	deleteOnReboot(old)
	return nil
}

// RemoveExecutable deletes path, or schedules the deletion when it is the
// running image.
func (Native) RemoveExecutable(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	aside := path + ".old"
	_ = os.Remove(aside)
	if err := os.Rename(path, aside); err != nil {
		return errors.Wrapf(err, errors.ErrFileInUse, "remove %s", path)
	}
	deleteOnReboot(aside)
	return nil
}

func deleteOnReboot(path string) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return
	}
	if os.Remove(path) == nil {
		return
	}
	_ = windows.MoveFileEx(p, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT)
}
