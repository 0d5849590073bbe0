package core

import (
	"context"
	"fmt"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/resolver"
	"github.com/hashicorp/go-version"
)

// Update moves the installation to the component set selected from m.
// With no components named, everything installed that m still offers is
// kept and required components are added.
//
// Removals run first through the uninstall machinery, then additions
// through the install machinery.
func (e *Engine) Update(ctx context.Context, m *manifest.Manifest, req Request) (*Result, error) {
	s, err := e.begin(ctx, opUpdate, req.Config.InstallDir)
	if err != nil {
		return nil, err
	}
	rec := s.store.Record()
	if rec == nil {
		return nil, s.end(errors.New(errors.ErrStateMismatch, "nothing is installed, run install first"))
	}

	cfg := req.Config
	cfg.InstallDir = rec.InstallDir
	kind := KindModifyExisting
	if rec.Name != m.Name || rec.Version != m.Version {
		kind = KindUpgrade
	}

	names := req.Components
	if len(names) == 0 {
		names = carried(m, rec)
	}
	t, err := newTarget(m, rec, names, cfg, kind)
	if err != nil {
		return nil, s.end(err)
	}
	removals, additions := diff(t, rec)
	plan, err := resolver.Resolve(resolver.Input{
		Requested: additions,
		Tools:     m.HostTools(),
		Installed: rec.ToolNames(),
		Removing:  removals,
	})
	if err != nil {
		return nil, s.end(err)
	}
	s.prepare(t)

	if kind == KindUpgrade {
		msg := fmt.Sprintf("%s %s from %s to %s", direction(rec.Version, m.Version), m.Name, rec.Version, m.Version)
		s.logger.Info().Str("from", rec.Version).Str("to", m.Version).Msg(msg)
		e.tracker.Message(msg)
	}
	s.logger.Info().
		Str("kind", string(kind)).
		Strs("remove", removals).
		Strs("install", plan.Names()).
		Msg("update planned")

	e.tracker.MainStart(fmt.Sprintf("Updating %s", m.Name), int64(installSteps+len(removals)+len(plan.Install)))
	if err := s.mark(); err != nil {
		return s.result, s.end(err)
	}

	// Removals, best effort, newest first.
	for _, name := range resolver.UninstallOrder(rec, removals) {
		if err := s.ctx.Err(); err != nil {
			return s.result, s.end(errors.Wrap(err, errors.ErrCancelled, "operation cancelled"))
		}
		s.uninstallTool(name)
		e.tracker.MainUpdate(1)
	}

	// The new manifest becomes the local copy; manager links are refreshed.
	if err := s.step("setup", func(context.Context) error { return s.setup() }); err != nil {
		return s.result, s.end(err)
	}
	e.tracker.MainUpdate(1)

	if err := s.install(plan, true); err != nil {
		return s.result, s.end(err)
	}
	e.tracker.MainEnd(installSummary(s.result))
	return s.result, s.end(nil)
}

// carried is the default selection for an update: what is installed and
// still offered.
func carried(m *manifest.Manifest, rec *fingerprint.Record) []string {
	var names []string
	for _, c := range components.FromManifest(m, rec) {
		if c.Installed {
			names = append(names, c.Name)
		}
	}
	if rec.HasToolchain() && len(names) == 0 {
		names = append(names, components.ToolchainName)
	}
	return names
}

// diff compares the target with the record. Removed are installed tools
// that are unselected or change version; added are selected tools that
// are missing or change version.
func diff(t *Target, rec *fingerprint.Record) (remove, add []string) {
	selected := map[string]string{}
	for _, name := range t.Tools() {
		tool, _ := t.Manifest.Tool(name)
		selected[name] = tool.Version()
	}
	for _, installed := range rec.Tools {
		want, ok := selected[installed.Name]
		if !ok || want != installed.Version {
			remove = append(remove, installed.Name)
		}
	}
	for _, name := range t.Tools() {
		installed, ok := rec.Tool(name)
		if !ok || installed.Version != selected[name] {
			add = append(add, name)
		}
	}
	return remove, add
}

// direction names the version move for messages.
func direction(from, to string) string {
	a, errA := version.NewVersion(from)
	b, errB := version.NewVersion(to)
	if errA != nil || errB != nil {
		return "Changing"
	}
	switch a.Compare(b) {
	case -1:
		return "Upgrading"
	case 1:
		return "Downgrading"
	}
	return "Reinstalling"
}
