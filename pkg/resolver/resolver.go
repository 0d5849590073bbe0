// Package resolver orders tool installs and removals.
//
// A tool is installed after every tool it requires. Ties are broken by the
// order tools are declared in the manifest, so the same input always gives
// the same plan. Conflicts and cycles are reported before anything runs.
package resolver

import (
	"sort"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
)

// Input is everything Resolve needs.
type Input struct {
	// Requested names the tools the user selected.
	Requested []string
	// Tools is the manifest tool table for the target, in declaration order.
	Tools []manifest.Tool
	// Installed lists recorded tools in install order.
	Installed []string
	// Removing lists installed tools the same operation removes.
	Removing []string
}

// Obsoletion says an installed tool is replaced by a selected one.
type Obsoletion struct {
	Tool string
	By   string
}

// Plan is the resolved order of work.
type Plan struct {
	// Install is in dependency order.
	Install []manifest.Tool
	// Uninstall lists obsoleted tools, removed before any install.
	Uninstall []string
	Obsoleted []Obsoletion
	// Pulled lists tools added because a requested tool requires them.
	Pulled []string

	requires map[string][]string
}

// ObsoletedBy returns the installed tools name replaces.
func (p *Plan) ObsoletedBy(name string) []string {
	var out []string
	for _, o := range p.Obsoleted {
		if o.By == name {
			out = append(out, o.Tool)
		}
	}
	return out
}

// Names returns the install order as names.
func (p *Plan) Names() []string {
	out := make([]string, 0, len(p.Install))
	for _, t := range p.Install {
		out = append(out, t.Name)
	}
	return out
}

// Dependents returns every planned tool that directly or indirectly
// requires name, in install order.
func (p *Plan) Dependents(name string) []string {
	hit := map[string]bool{name: true}
	var out []string
	// Install order guarantees requirements are seen before dependents.
	for _, t := range p.Install {
		for _, r := range p.requires[t.Name] {
			if hit[r] && !hit[t.Name] {
				hit[t.Name] = true
				out = append(out, t.Name)
				break
			}
		}
	}
	return out
}

// Split divides the install order at a barrier such as the toolchain
// step. A tool goes after the barrier when waits reports true for it or
// for any planned tool it requires, directly or not. Both halves keep
// install order.
func (p *Plan) Split(waits func(manifest.Tool) bool) (before, after []manifest.Tool) {
	late := map[string]bool{}
	for _, t := range p.Install {
		l := waits(t)
		for _, r := range p.requires[t.Name] {
			if late[r] {
				l = true
				break
			}
		}
		if l {
			late[t.Name] = true
			after = append(after, t)
		} else {
			before = append(before, t)
		}
	}
	return before, after
}

// Resolve builds a Plan. Unknown tools, conflicts and cycles fail with a
// configuration error.
func Resolve(in Input) (*Plan, error) {
	decl := make(map[string]int, len(in.Tools))
	for i, t := range in.Tools {
		decl[t.Name] = i
	}

	removing := toSet(in.Removing)
	installed := map[string]bool{}
	for _, n := range in.Installed {
		if !removing[n] {
			installed[n] = true
		}
	}

	selected := map[string]bool{}
	var queue []string
	for _, n := range in.Requested {
		if _, ok := decl[n]; !ok {
			return nil, errors.Newf(errors.ErrDependency, "tool %q is not part of this toolkit", n).
				WithDetail("tool", n)
		}
		if !selected[n] {
			selected[n] = true
			queue = append(queue, n)
		}
	}

	// Pull in requirements that are neither selected nor installed.
	plan := &Plan{requires: map[string][]string{}}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		tool := in.Tools[decl[name]]
		for _, req := range tool.ToolRequires() {
			if _, ok := decl[req]; !ok {
				if installed[req] {
					continue
				}
				return nil, errors.Newf(errors.ErrDependency, "tool %q requires unknown tool %q", name, req).
					WithDetail("tool", name).WithDetail("requires", req)
			}
			if selected[req] || installed[req] {
				continue
			}
			selected[req] = true
			plan.Pulled = append(plan.Pulled, req)
			queue = append(queue, req)
		}
	}

	obsoleted := map[string]string{}
	for _, t := range in.Tools {
		if !selected[t.Name] {
			continue
		}
		for _, o := range t.Obsoletes {
			if installed[o] && !selected[o] {
				if _, dup := obsoleted[o]; !dup {
					obsoleted[o] = t.Name
				}
			}
		}
	}

	if err := checkConflicts(in.Tools, selected, installed, obsoleted); err != nil {
		return nil, err
	}

	// Edges only run between selected tools; installed requirements are
	// already satisfied.
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for n := range selected {
		indegree[n] = 0
	}
	for n := range selected {
		for _, req := range in.Tools[decl[n]].ToolRequires() {
			if !selected[req] {
				continue
			}
			plan.requires[n] = append(plan.requires[n], req)
			dependents[req] = append(dependents[req], n)
			indegree[n]++
		}
	}

	var ready []string
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return decl[ready[i]] < decl[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		plan.Install = append(plan.Install, in.Tools[decl[next]])
		for _, d := range dependents[next] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(plan.Install) != len(selected) {
		cycle := findCycle(in.Tools, decl, plan.requires, indegree)
		return nil, errors.Newf(errors.ErrCycle, "tools require each other in a cycle: %s", strings.Join(cycle, " -> ")).
			WithDetail("cycle", cycle)
	}

	var removal []string
	for name := range obsoleted {
		removal = append(removal, name)
	}
	plan.Uninstall = reverseInstallOrder(in.Installed, removal)
	for _, name := range plan.Uninstall {
		plan.Obsoleted = append(plan.Obsoleted, Obsoletion{Tool: name, By: obsoleted[name]})
	}
	return plan, nil
}

func checkConflicts(tools []manifest.Tool, selected, installed map[string]bool, obsoleted map[string]string) error {
	type pair struct{ a, b string }
	seen := map[pair]bool{}
	var pairs []pair
	add := func(a, b string) {
		if b < a {
			a, b = b, a
		}
		p := pair{a, b}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	present := func(name string) bool {
		if selected[name] {
			return true
		}
		_, replaced := obsoleted[name]
		return installed[name] && !replaced
	}

	for _, t := range tools {
		for _, c := range t.Conflicts {
			switch {
			case selected[t.Name] && present(c):
				add(t.Name, c)
			case selected[c] && installed[t.Name]:
				if _, replaced := obsoleted[t.Name]; !replaced {
					add(t.Name, c)
				}
			}
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	msgs := make([]string, 0, len(pairs))
	for _, p := range pairs {
		msgs = append(msgs, p.a+" conflicts with "+p.b)
	}
	return errors.Newf(errors.ErrConflict, "conflicting tools selected: %s", strings.Join(msgs, "; ")).
		WithDetail("tools", []string{pairs[0].a, pairs[0].b})
}

// findCycle walks requirements among the unsorted tools until a name
// repeats, starting from the earliest declared one.
func findCycle(tools []manifest.Tool, decl map[string]int, requires map[string][]string, indegree map[string]int) []string {
	var left []string
	for n, d := range indegree {
		if d > 0 {
			left = append(left, n)
		}
	}
	sort.Slice(left, func(i, j int) bool { return decl[left[i]] < decl[left[j]] })
	stuck := toSet(left)

	pos := map[string]int{}
	var path []string
	cur := left[0]
	for {
		if i, ok := pos[cur]; ok {
			cycle := append([]string(nil), path[i:]...)
			return append(cycle, cur)
		}
		pos[cur] = len(path)
		path = append(path, cur)

		reqs := append([]string(nil), requires[cur]...)
		sort.Slice(reqs, func(i, j int) bool { return decl[reqs[i]] < decl[reqs[j]] })
		next := ""
		for _, r := range reqs {
			if stuck[r] {
				next = r
				break
			}
		}
		if next == "" {
			// Unreachable for a genuine cycle; keep the message useful anyway.
			return path
		}
		cur = next
	}
}

// UninstallOrder returns names in the reverse of their recorded install
// order. Names that are not recorded are dropped.
func UninstallOrder(rec *fingerprint.Record, names []string) []string {
	return reverseInstallOrder(rec.ToolNames(), names)
}

func reverseInstallOrder(installed, names []string) []string {
	want := toSet(names)
	var out []string
	for i := len(installed) - 1; i >= 0; i-- {
		if want[installed[i]] {
			out = append(out, installed[i])
			delete(want, installed[i])
		}
	}
	return out
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}
