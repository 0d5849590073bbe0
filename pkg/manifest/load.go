package manifest

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fetch"
)

//go:embed embedded/toolset-manifest.toml
var bundledManifest []byte

// BundledLocation selects the manifest compiled into the binary.
const BundledLocation = "bundled"

// LoadOptions configures Load.
type LoadOptions struct {
	// Fetcher retrieves http(s):// and s3:// manifests.
	Fetcher fetch.Fetcher
	// TempDir receives downloaded manifests. Defaults to os.TempDir().
	TempDir string
}

// Load reads a manifest from a local path (file or directory), an http(s)
// or s3 URL, or the bundled copy when location is empty or "bundled".
func Load(ctx context.Context, location string, opts LoadOptions) (*Manifest, error) {
	switch {
	case location == "" || location == BundledLocation:
		return Bundled()
	case isRemote(location):
		return loadRemote(ctx, location, opts)
	}
	return LoadFile(location)
}

// LoadFile parses a manifest on disk; a directory means its toolset-manifest.toml.
func LoadFile(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrManifestAbsent, "toolkit manifest not found at %s", path)
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "stat %s", path)
	}
	if info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrManifestAbsent, "toolkit manifest not found at %s", path)
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "read %s", path)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		abs = filepath.Dir(path)
	}
	return Parse(data, abs)
}

// Bundled parses the manifest embedded in the binary. Offline payloads are
// looked up next to the executable.
func Bundled() (*Manifest, error) {
	base := ""
	if exe, err := os.Executable(); err == nil {
		base = filepath.Dir(exe)
	}
	return Parse(bundledManifest, base)
}

// BundledBytes exposes the embedded manifest text.
func BundledBytes() []byte {
	return append([]byte(nil), bundledManifest...)
}

func loadRemote(ctx context.Context, location string, opts LoadOptions) (*Manifest, error) {
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.New(fetch.Options{})
	}
	dir := opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.MkdirTemp(dir, "kitman-manifest-*")
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "create temp dir in %s", dir)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	dest := filepath.Join(tmp, FileName)
	if err := opts.Fetcher.Fetch(ctx, location, dest); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "read %s", dest)
	}
	return Parse(data, "")
}

func isRemote(location string) bool {
	for _, p := range []string{"http://", "https://", "s3://"} {
		if strings.HasPrefix(location, p) {
			return true
		}
	}
	return false
}
