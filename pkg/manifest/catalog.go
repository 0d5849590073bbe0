package manifest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fetch"
	version "github.com/hashicorp/go-version"
	toml "github.com/pelletier/go-toml/v2"
)

// CatalogFile is the catalog path below a distribution server.
const CatalogFile = "dist/distribution-manifest.toml"

// DistPackage is one toolkit release offered by a distribution server.
type DistPackage struct {
	Name        string `toml:"name" json:"name" yaml:"name"`
	Version     string `toml:"version" json:"version" yaml:"version"`
	Edition     string `toml:"edition,omitempty" json:"edition,omitempty" yaml:"edition,omitempty"`
	Desc        string `toml:"desc,omitempty" json:"desc,omitempty" yaml:"desc,omitempty"`
	Info        string `toml:"info,omitempty" json:"info,omitempty" yaml:"info,omitempty"`
	ManifestURL string `toml:"manifest-url" json:"manifest_url" yaml:"manifest_url"`
}

// Catalog lists the toolkits a distribution server offers.
type Catalog struct {
	Packages []DistPackage
}

type rawCatalog struct {
	Packages []DistPackage `toml:"packages"`
	Package  []DistPackage `toml:"package"`
}

// ParseCatalog decodes a distribution catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrManifestParse, "invalid distribution catalog")
	}
	c := &Catalog{Packages: append(raw.Packages, raw.Package...)}
	for _, p := range c.Packages {
		if p.Name == "" || p.ManifestURL == "" {
			return nil, errors.New(errors.ErrManifestParse, "catalog entries need a name and a manifest-url")
		}
	}
	return c, nil
}

// FetchCatalog downloads and parses the catalog served under server.
func FetchCatalog(ctx context.Context, server string, f fetch.Fetcher) (*Catalog, error) {
	data, err := fetchBytes(ctx, strings.TrimRight(server, "/")+"/"+CatalogFile, f)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// fetchBytes downloads location through a temporary file and reads it back.
func fetchBytes(ctx context.Context, location string, f fetch.Fetcher) ([]byte, error) {
	if f == nil {
		f = fetch.New(fetch.Options{})
	}
	tmp, err := os.MkdirTemp("", "kitman-fetch-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDirCreate, "create temp dir")
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	dest := filepath.Join(tmp, "download")
	if err := f.Fetch(ctx, location, dest); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "read %s", dest)
	}
	return data, nil
}

// Sorted returns the packages ordered by name, then newest version first.
// Versions that do not parse sort after the ones that do.
func (c *Catalog) Sorted() []DistPackage {
	out := append([]DistPackage(nil), c.Packages...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return newer(out[i].Version, out[j].Version)
	})
	return out
}

// Latest returns the newest release of the named toolkit (any edition when
// edition is empty).
func (c *Catalog) Latest(name, edition string) (DistPackage, bool) {
	var best DistPackage
	found := false
	for _, p := range c.Packages {
		if p.Name != name || (edition != "" && p.Edition != edition) {
			continue
		}
		if !found || newer(p.Version, best.Version) {
			best, found = p, true
		}
	}
	return best, found
}

func newer(a, b string) bool {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.GreaterThan(vb)
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a > b
}
