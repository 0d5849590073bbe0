package manifest

import (
	"context"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fetch"
	version "github.com/hashicorp/go-version"
	toml "github.com/pelletier/go-toml/v2"
)

// ReleaseFile lists the published manager versions next to its builds.
const ReleaseFile = "release.toml"

// Channel selects which manager releases self-update follows.
type Channel string

const (
	ChannelStable Channel = "stable"
	ChannelBeta   Channel = "beta"
)

// ParseChannel reads a channel name. Empty means stable.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChannelStable:
		return ChannelStable, nil
	case ChannelBeta:
		return ChannelBeta, nil
	}
	return "", errors.Newf(errors.ErrInvalidInput, "unknown update channel %q", s).
		WithDetail("channels", []string{string(ChannelStable), string(ChannelBeta)})
}

// Releases is the parsed release file. The stable version sits at the top
// level so files that predate channels still read:
//
//	version = "0.8.0"
//
//	[beta]
//	version = "0.9.0-beta.1"
type Releases struct {
	Stable *version.Version
	// Beta is nil when no beta is published.
	Beta *version.Version
}

type rawRelease struct {
	Version string `toml:"version"`
}

type rawReleases struct {
	Version string      `toml:"version"`
	Beta    *rawRelease `toml:"beta"`
}

// ParseReleases decodes a release file. Every listed version must be a
// semantic version.
func ParseReleases(data []byte) (*Releases, error) {
	var raw rawReleases
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrManifestParse, "invalid release file")
	}
	stable, err := releaseVersion(raw.Version)
	if err != nil {
		return nil, err
	}
	r := &Releases{Stable: stable}
	if raw.Beta != nil {
		if r.Beta, err = releaseVersion(raw.Beta.Version); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func releaseVersion(s string) (*version.Version, error) {
	if s == "" {
		return nil, errors.New(errors.ErrManifestParse, "release file has no version")
	}
	v, err := version.NewSemver(s)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "invalid semantic version %q", s)
	}
	return v, nil
}

// Version is the newest release on ch. The beta channel falls back to
// stable when no beta is listed.
func (r *Releases) Version(ch Channel) *version.Version {
	if ch == ChannelBeta && r.Beta != nil {
		return r.Beta
	}
	return r.Stable
}

// FetchReleases downloads and parses a release file. A location that does
// not name a .toml file is taken as the directory holding ReleaseFile.
func FetchReleases(ctx context.Context, location string, f fetch.Fetcher) (*Releases, error) {
	if !strings.HasSuffix(strings.ToLower(location), ".toml") {
		location = strings.TrimRight(location, "/") + "/" + ReleaseFile
	}
	data, err := fetchBytes(ctx, location, f)
	if err != nil {
		return nil, err
	}
	return ParseReleases(data)
}
