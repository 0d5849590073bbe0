// pkg/components/components_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: in-memory manifest and record
// PURPOSE: Test the component projection and selection rules

package components_test

import (
	"testing"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Name:    "Sample",
		Version: "1.0.0",
		Toolchain: manifest.Toolchain{
			Channel:            "1.81.0",
			Group:              "Rust",
			Components:         []string{"clippy"},
			OptionalComponents: []string{"rust-docs"},
		},
		Targets: map[string][]manifest.Tool{
			manifest.HostTriple(): {
				{Name: "nextest", Source: manifest.Source{Kind: manifest.SourceVersion, Version: "0.9.0"}},
				{Name: "audit", Optional: true, Source: manifest.Source{Kind: manifest.SourceVersion, Version: "0.20.0"}},
				{Name: "mingw", Required: true, Kind: manifest.KindDirWithBin},
			},
		},
		Descriptions: map[string]string{"audit": "Audit lock files"},
		Groups:       []manifest.Group{{Name: "Cargo Tools", Tools: []string{"nextest", "audit"}}},
	}
}

func TestFromManifest(t *testing.T) {
	rec := fingerprint.New("/kit")
	rec.Toolchain = &fingerprint.ToolchainRecord{Channel: "1.81.0", Components: []string{"clippy"}}
	rec.SetTool(fingerprint.ToolRecord{Name: "audit", Kind: manifest.KindCargoTool})

	list := components.FromManifest(testManifest(), rec)
	require.Len(t, list, 6)
	assert.Equal(t, []string{"rust", "clippy", "rust-docs", "nextest", "audit", "mingw"}, components.Names(list))

	assert.Equal(t, components.TypeToolchainProfile, list[0].Type)
	assert.True(t, list[0].Required)
	assert.True(t, list[0].Installed)
	assert.Equal(t, "Rust", list[0].DisplayName)

	assert.True(t, list[1].Installed)
	assert.False(t, list[2].Installed)
	assert.True(t, list[2].Optional)

	audit := list[4]
	assert.Equal(t, components.TypeTool, audit.Type)
	assert.Equal(t, "Cargo Tools", audit.Group)
	assert.Equal(t, "Audit lock files", audit.Description)
	assert.Equal(t, "0.20.0", audit.Version)
	assert.True(t, audit.Installed)
	assert.False(t, audit.IsToolchain())
}

func TestFromManifestWithoutRecord(t *testing.T) {
	list := components.FromManifest(testManifest(), nil)
	assert.Empty(t, components.Installed(list))
}

func TestSelect(t *testing.T) {
	list := components.FromManifest(testManifest(), nil)

	tests := []struct {
		name  string
		names []string
		want  []string
		code  errors.ErrorCode
	}{
		{
			name: "defaults skip optional",
			want: []string{"rust", "clippy", "nextest", "mingw"},
		},
		{
			name:  "required always included",
			names: []string{"audit"},
			want:  []string{"rust", "clippy", "audit", "mingw"},
		},
		{
			name:  "toolchain alias",
			names: []string{"toolchain", "rust-docs"},
			want:  []string{"rust", "clippy", "rust-docs", "mingw"},
		},
		{
			name:  "unknown name",
			names: []string{"nope"},
			code:  errors.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := components.Select(list, tt.names)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, errors.IsErrorCode(err, tt.code))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, components.Names(got))
		})
	}
}
