// Package hostos wraps the platform capabilities kitman needs beyond plain
// file operations: registering with the system's list of installed
// programs, exposing the manager on PATH, and replacing or removing the
// binary that is currently running.
package hostos

// UninstallEntry is what the system shows in its installed-programs list.
type UninstallEntry struct {
	ID              string
	DisplayName     string
	DisplayVersion  string
	Publisher       string
	InstallLocation string
	UninstallString string
}

// Host is the platform capability set. Tests substitute a fake.
type Host interface {
	// RegisterUninstall adds or refreshes the installed-programs entry.
	RegisterUninstall(entry UninstallEntry) error
	// UnregisterUninstall removes the entry for id.
	UnregisterUninstall(id string) error
	// LookupUninstallCommand finds the uninstall command another installer
	// registered under displayName.
	LookupUninstallCommand(displayName string) (string, bool)
	// LinkExecutable exposes target under the path link.
	LinkExecutable(target, link string) error
	// ReplaceExecutable swaps current for replacement, even while current
	// is running.
	ReplaceExecutable(current, replacement string) error
	// RemoveExecutable deletes an executable, even while it is running.
	RemoveExecutable(path string) error
}

// Native is the Host for the running platform.
type Native struct{}

// New returns the native host.
func New() Host {
	return Native{}
}
