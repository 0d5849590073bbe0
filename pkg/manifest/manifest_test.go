// pkg/manifest/manifest_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: temp dirs, stub fetcher
// PURPOSE: Test manifest parsing, source forms, ordering and the catalog

package manifest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triple = "x86_64-unknown-linux-gnu"

const sample = `
name = "Sample"
version = "2.1.0"
edition = "pro"
rustup-dist-server = "https://dist.example.com"

[rust]
channel = "1.80.0"
profile = { name = "minimal", verbose-name = "Basic", description = "Minimal profile" }
components = ["clippy"]
optional-components = ["rust-docs"]

[proxy]
http = "http://proxy:3128"
no_proxy = "localhost"

[cargo-registry]
name = "mirror"
index = "sparse+https://mirror.example.com/index/"

[tools.descriptions]
zeta = "Last letter"

[tools.group]
Extras = ["zeta", "alpha"]

[tools.target.x86_64-unknown-linux-gnu]
zeta = "0.1.0"
alpha = { git = "https://example.com/alpha.git", tag = "v1.2" }
mid = { path = "payloads/mid.tar.gz", kind = "dir-with-bin", requires = ["zeta"] }
ext = { url = "https://example.com/ext.vsix", filename = "ext-1.vsix", dependencies = ["toolchain"], sha256 = "SHA256:E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855" }
secret = { restricted = true, default = "ask the vendor" }
rules = { kind = "rule-set", ver = "2024.1", path = "/opt/rules", obsoletes = ["old-rules"], conflicts = ["zeta"] }
`

func TestParse(t *testing.T) {
	m, err := manifest.Parse([]byte(sample), "/base")
	require.NoError(t, err)

	assert.Equal(t, "Sample", m.Name)
	assert.Equal(t, "2.1.0", m.Version)
	assert.Equal(t, "pro", m.Edition)
	assert.Equal(t, "https://dist.example.com", m.DistServer)

	assert.Equal(t, "1.80.0", m.Toolchain.Channel)
	assert.Equal(t, "minimal", m.Toolchain.Profile)
	assert.Equal(t, "Basic", m.Toolchain.Name())
	assert.Equal(t, []manifest.ComponentRef{{Name: "clippy"}, {Name: "rust-docs", Optional: true}}, m.ToolchainComponents())

	require.NotNil(t, m.Proxy)
	assert.Equal(t, "http://proxy:3128", m.Proxy.HTTP)
	assert.Equal(t, "localhost", m.Proxy.NoProxy)
	require.NotNil(t, m.Registry)
	assert.Equal(t, "mirror", m.Registry.Name)

	assert.Equal(t, "Last letter", m.Description("zeta"))
	assert.Equal(t, "Extras", m.GroupOf("alpha"))
	assert.Empty(t, m.GroupOf("mid"))
	assert.Equal(t, []byte(sample), m.Raw)
}

func TestParseKeepsDeclarationOrder(t *testing.T) {
	m, err := manifest.Parse([]byte(sample), "/base")
	require.NoError(t, err)

	var names []string
	for _, tool := range m.ToolsFor(triple) {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid", "ext", "secret", "rules"}, names)
}

func TestParseSources(t *testing.T) {
	m, err := manifest.Parse([]byte(sample), "/base")
	require.NoError(t, err)

	byName := map[string]manifest.Tool{}
	for _, tool := range m.ToolsFor(triple) {
		byName[tool.Name] = tool
	}

	tests := []struct {
		name      string
		kind      manifest.SourceKind
		version   string
		cargo     bool
		toolchain bool
	}{
		{"zeta", manifest.SourceVersion, "0.1.0", true, true},
		{"alpha", manifest.SourceGit, "v1.2", true, true},
		{"mid", manifest.SourcePath, "", false, false},
		{"ext", manifest.SourceURL, "", false, true},
		{"secret", manifest.SourceRestricted, "", false, false},
		{"rules", manifest.SourcePath, "2024.1", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := byName[tt.name]
			assert.Equal(t, tt.kind, tool.Source.Kind)
			assert.Equal(t, tt.version, tool.Version())
			assert.Equal(t, tt.cargo, tool.IsCargoTool())
			assert.Equal(t, tt.toolchain, tool.RequiresToolchain())
		})
	}

	assert.Equal(t, filepath.Join("/base", "payloads", "mid.tar.gz"), byName["mid"].LocalPath())
	assert.Equal(t, []string{"zeta"}, byName["mid"].ToolRequires())
	assert.Empty(t, byName["ext"].ToolRequires())
	assert.Equal(t, "ext-1.vsix", byName["ext"].PayloadName())
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", byName["ext"].Source.SHA256)
	assert.Empty(t, byName["zeta"].Source.SHA256)
	assert.Equal(t, "ask the vendor", byName["secret"].Source.Default)
	assert.Equal(t, "/opt/rules", byName["rules"].LocalPath())
	assert.Equal(t, manifest.KindRuleSet, byName["rules"].Kind)
	assert.Equal(t, []string{"old-rules"}, byName["rules"].Obsoletes)
	assert.Equal(t, []string{"zeta"}, byName["rules"].Conflicts)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid toml", "name = "},
		{"no toolchain", `name = "x"`},
		{"no channel", "[rust]\nprofile = \"minimal\""},
		{"bad kind", "[rust]\nchannel = \"stable\"\n[tools.target.x]\na = { kind = \"spaceship\" }"},
		{"required and optional", "[rust]\nchannel = \"stable\"\n[tools.target.x]\na = { version = \"1\", required = true, optional = true }"},
		{"bad tool value", "[rust]\nchannel = \"stable\"\n[tools.target.x]\na = 3"},
		{"malformed sha256", "[rust]\nchannel = \"stable\"\n[tools.target.x]\na = { url = \"https://example.com/a\", sha256 = \"abc\" }"},
		{"partial registry", "[rust]\nchannel = \"stable\"\n[cargo-registry]\nname = \"m\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Parse([]byte(tt.input), "")
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrManifestParse))
			assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
		})
	}
}

func TestParseToolchainAlias(t *testing.T) {
	m, err := manifest.Parse([]byte("[toolchain]\nversion = \"stable\"\nprofile = \"default\""), "")
	require.NoError(t, err)
	assert.Equal(t, "stable", m.Toolchain.Channel)
	assert.Equal(t, "default", m.Toolchain.Profile)
	assert.Equal(t, "Rust", m.Toolchain.Name())
}

func TestParseKind(t *testing.T) {
	for _, k := range manifest.Kinds {
		got, ok := manifest.ParseKind(string(k))
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	got, ok := manifest.ParseKind(" Cargo-Tool ")
	assert.True(t, ok)
	assert.Equal(t, manifest.KindCargoTool, got)

	_, ok = manifest.ParseKind("nope")
	assert.False(t, ok)
}

func TestTriple(t *testing.T) {
	tests := []struct{ goos, goarch, want string }{
		{"linux", "amd64", "x86_64-unknown-linux-gnu"},
		{"linux", "arm64", "aarch64-unknown-linux-gnu"},
		{"darwin", "arm64", "aarch64-apple-darwin"},
		{"windows", "amd64", "x86_64-pc-windows-msvc"},
		{"windows", "386", "i686-pc-windows-msvc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, manifest.Triple(tt.goos, tt.goarch))
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(sample), 0o644))

	m, err := manifest.Load(context.Background(), dir, manifest.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, dir, m.BaseDir)

	_, err = manifest.Load(context.Background(), filepath.Join(dir, "missing.toml"), manifest.LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrManifestAbsent))

	empty := t.TempDir()
	_, err = manifest.LoadFile(empty)
	assert.True(t, errors.IsErrorCode(err, errors.ErrManifestAbsent))
}

func TestLoadBundled(t *testing.T) {
	m, err := manifest.Load(context.Background(), "", manifest.LoadOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, m.Toolchain.Channel)
	assert.NotEmpty(t, m.ToolsFor("x86_64-unknown-linux-gnu"))
	assert.NotEmpty(t, manifest.BundledBytes())
}

type stubFetcher struct {
	body string
	err  error
	got  string
}

func (s *stubFetcher) Fetch(_ context.Context, location, dest string) error {
	s.got = location
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(dest, []byte(s.body), 0o644)
}

func TestLoadRemote(t *testing.T) {
	f := &stubFetcher{body: sample}
	m, err := manifest.Load(context.Background(), "https://example.com/m.toml", manifest.LoadOptions{Fetcher: f, TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/m.toml", f.got)
	assert.Equal(t, "Sample", m.Name)
	assert.Empty(t, m.BaseDir)

	f = &stubFetcher{err: errors.New(errors.ErrNetwork, "offline")}
	_, err = manifest.Load(context.Background(), "s3://bucket/m.toml", manifest.LoadOptions{Fetcher: f, TempDir: t.TempDir()})
	assert.True(t, errors.IsErrorCode(err, errors.ErrNetwork))
}

const catalog = `
[[packages]]
name = "A"
version = "1.9.0"
edition = "community"
manifest-url = "https://example.com/a-1.9"

[[packages]]
name = "A"
version = "1.10.0"
edition = "community"
manifest-url = "https://example.com/a-1.10"

[[packages]]
name = "A"
version = "2.0.0"
edition = "pro"
manifest-url = "https://example.com/a-2.0"

[[packages]]
name = "B"
version = "0.1.0"
manifest-url = "https://example.com/b"
`

func TestCatalog(t *testing.T) {
	c, err := manifest.ParseCatalog([]byte(catalog))
	require.NoError(t, err)
	require.Len(t, c.Packages, 4)

	latest, ok := c.Latest("A", "community")
	require.True(t, ok)
	assert.Equal(t, "1.10.0", latest.Version)

	latest, ok = c.Latest("A", "")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", latest.Version)

	_, ok = c.Latest("C", "")
	assert.False(t, ok)

	sorted := c.Sorted()
	assert.Equal(t, "2.0.0", sorted[0].Version)
	assert.Equal(t, "1.10.0", sorted[1].Version)
	assert.Equal(t, "B", sorted[3].Name)
}

func TestCatalogErrors(t *testing.T) {
	_, err := manifest.ParseCatalog([]byte("[[packages]]\nname = \"A\""))
	assert.True(t, errors.IsErrorCode(err, errors.ErrManifestParse))

	c, err := manifest.ParseCatalog([]byte("[[package]]\nname = \"A\"\nversion = \"1\"\nmanifest-url = \"u\""))
	require.NoError(t, err)
	assert.Len(t, c.Packages, 1)
}

func TestFetchCatalog(t *testing.T) {
	f := &stubFetcher{body: catalog}
	c, err := manifest.FetchCatalog(context.Background(), "https://dist.example.com/", f)
	require.NoError(t, err)
	assert.Equal(t, "https://dist.example.com/dist/distribution-manifest.toml", f.got)
	assert.Len(t, c.Packages, 4)
}
