package commands

import (
	"embed"
	"io/fs"
	"strings"
)

// Short messages (one-liners)
const (
	MsgRootShort        = "Install and manage a curated Rust toolkit"
	MsgInstallShort     = "Install the toolkit or selected components"
	MsgUpdateShort      = "Update the installation to a manifest"
	MsgUninstallShort   = "Remove the toolkit"
	MsgComponentShort   = "Inspect toolkit components"
	MsgComponentList    = "List the components of the manifest"
	MsgToolkitShort     = "Inspect published and installed toolkits"
	MsgToolkitList      = "List toolkits published on the catalog server"
	MsgToolkitInfo      = "Show the installed toolkit"
	MsgSelfUpdateShort  = "Replace the manager with a newer build"
	MsgEnvShort         = "Inspect the installation environment"
	MsgEnvShow          = "Print the shell setup for the installation"
	MsgEnvPreview       = "Show the shell profile edits install would make"
	MsgConfigShort      = "Inspect or persist the configuration"
	MsgConfigShowShort  = "Print the active configuration"
	MsgConfigSaveShort  = "Write the active configuration to the config file"
	MsgServeShort       = "Serve the HTTP and websocket bridge for a graphical front end"
	MsgVersionShort     = "Print version information"
	MsgTryItShort       = "Export an example cargo project and open it"
	MsgUninstallConfirm = "Remove %s from %s?"

	// Status messages
	MsgNothingInstalled = "Nothing is installed."
	MsgProfilesUpToDate = "Shell profiles are already up to date."
	MsgUninstallAborted = "Uninstall cancelled."
	MsgSelfUpdated      = "kitman has been updated."
	MsgSelfUpToDate     = "kitman is already up to date."
	MsgConfigSaved      = "Configuration written to %s\n"
	MsgTryItExported    = "Example project exported to %s\n"
	MsgServing          = "Serving on http://%s (Ctrl-C to stop)\n"
	MsgNoCatalogServer  = "no catalog server configured (set catalog_server)"
	MsgNoUpdateLocation = "no update location configured (pass --from or set manager_update_url)"

	// Flag descriptions
	MsgFlagVerbose      = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig       = "Configuration file (default is config.toml in the kitman config dir)"
	MsgFlagOutput       = "Output format: auto, table, text, json or yaml"
	MsgFlagInstallDir   = "Installation root"
	MsgFlagNoModifyPath = "Do not add the toolkit to PATH or edit shell profiles"
	MsgFlagInsecure     = "Skip TLS certificate verification"
	MsgFlagManifest     = "Manifest location: bundled, a path, or an http(s)/s3 URL"
	MsgFlagDistServer   = "Override the toolchain distribution server"
	MsgFlagUpdateRoot   = "Override the toolchain installer update root"
	MsgFlagRegistryName = "Cargo registry name to configure"
	MsgFlagRegistryURL  = "Cargo registry index URL to configure"
	MsgFlagKeepSelf     = "Remove installed tools but keep kitman itself"
	MsgFlagYes          = "Do not ask for confirmation"
	MsgFlagLatest       = "Update to the newest release on the catalog server"
	MsgFlagInstalled    = "Only list installed components"
	MsgFlagFrom         = "Location of the new manager binary"
	MsgFlagReleases     = "Release file to check before downloading (default is manager_releases)"
	MsgFlagChannel      = "Release channel to follow: stable or beta (default is update_channel)"
	MsgFlagForce        = "Download even when the release file lists nothing newer"
	MsgFlagTryItPath    = "Directory to export into (default is the current directory)"
	MsgFlagTryItOpen    = "Open the project in an editor or the file manager"
	MsgFlagShell        = "Shell syntax: posix or fish"
	MsgFlagAddr         = "Address to listen on"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/install-long.txt
	msgInstallLongRaw string
	MsgInstallLong    = strings.TrimSpace(msgInstallLongRaw)

	//go:embed msgs/install-example.txt
	msgInstallExampleRaw string
	MsgInstallExample    = strings.TrimRight(msgInstallExampleRaw, "\n")

	//go:embed msgs/update-long.txt
	msgUpdateLongRaw string
	MsgUpdateLong    = strings.TrimSpace(msgUpdateLongRaw)

	//go:embed msgs/uninstall-long.txt
	msgUninstallLongRaw string
	MsgUninstallLong    = strings.TrimSpace(msgUninstallLongRaw)

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw) + "\n"
)

//go:embed topics
var topicFiles embed.FS

// helpTopics is the topics directory as its own root.
func helpTopics() fs.FS {
	sub, err := fs.Sub(topicFiles, "topics")
	if err != nil {
		panic(err)
	}
	return sub
}
