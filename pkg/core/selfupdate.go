package core

import (
	"context"
	"path/filepath"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/hashicorp/go-version"
)

// SelfUpdateRequest says where a new manager comes from.
type SelfUpdateRequest struct {
	// Location is the new manager binary.
	Location string
	// Releases locates a release file. When set, the update only runs if
	// Channel lists a version newer than the running manager.
	Releases string
	Channel  manifest.Channel
}

// SelfUpdate downloads a new manager from req.Location to a temporary file
// next to the installed binary, swaps it in and re-creates the links.
// The swap works while the binary is running.
func (e *Engine) SelfUpdate(ctx context.Context, req SelfUpdateRequest) (*Result, error) {
	if req.Location == "" {
		return nil, errors.New(errors.ErrInvalidInput, "no manager update location configured")
	}
	s, err := e.begin(ctx, opSelfUpdate, "")
	if err != nil {
		return nil, err
	}
	rec := s.store.Record()
	s.prepare(&Target{
		Kind:     KindModifyExisting,
		Config:   Config{InstallDir: installDir("", rec)},
		Manifest: recordManifest(rec),
	})

	if rec != nil {
		if err := s.mark(); err != nil {
			return s.result, s.end(err)
		}
	}

	if req.Releases != "" {
		var latest *version.Version
		err := s.step("releases", func(ctx context.Context) error {
			r, err := manifest.FetchReleases(ctx, req.Releases, s.fetcher)
			if err != nil {
				return err
			}
			latest = r.Version(req.Channel)
			return nil
		})
		if err != nil {
			return s.result, s.end(err)
		}
		if e.upToDate(latest) {
			s.result.UpToDate = true
			return s.result, s.end(nil)
		}
	}

	current := e.opts.Executable
	if rec != nil && rec.Manager != "" {
		current = rec.Manager
	}
	tmp := filepath.Join(filepath.Dir(current), "."+filepath.Base(current)+".new")

	e.tracker.MainStart("Updating kitman", 3)
	err = s.step("download", func(ctx context.Context) error {
		return s.fetcher.Fetch(ctx, req.Location, tmp)
	})
	if err != nil {
		_ = e.fs.Remove(tmp)
		return s.result, s.end(err)
	}
	e.tracker.MainUpdate(1)

	if err := s.step("replace", func(context.Context) error { return e.host.ReplaceExecutable(current, tmp) }); err != nil {
		_ = e.fs.Remove(tmp)
		return s.result, s.end(err)
	}
	e.tracker.MainUpdate(1)

	if rec != nil && rec.Manager != "" {
		err := s.step("links", func(context.Context) error {
			for _, link := range paths.NewLayout(rec.InstallDir).ManagerLinks() {
				if err := e.host.LinkExecutable(current, link); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return s.result, s.end(err)
		}
	}
	e.tracker.MainUpdate(1)
	e.tracker.MainEnd("kitman updated")
	s.result.Succeeded = append(s.result.Succeeded, paths.AppName)
	return s.result, s.end(nil)
}

// upToDate reports whether the running manager is at least latest. A
// version that does not parse, such as a dev build, is never up to date.
func (e *Engine) upToDate(latest *version.Version) bool {
	current, err := version.NewVersion(e.opts.Version)
	if err != nil {
		e.logger.Debug().Str("version", e.opts.Version).Msg("running version unknown, updating anyway")
		return false
	}
	if current.LessThan(latest) {
		e.logger.Info().Str("current", current.String()).Str("latest", latest.String()).Msg("newer manager release found")
		return false
	}
	e.logger.Info().Str("current", current.String()).Msg("manager is up to date")
	return true
}
