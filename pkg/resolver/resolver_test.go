// pkg/resolver/resolver_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test install ordering, pulled requirements, obsoletes, conflicts and cycles

package resolver_test

import (
	"testing"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tool(name string, requires ...string) manifest.Tool {
	return manifest.Tool{Name: name, Requires: requires}
}

func names(tools []manifest.Tool) []string {
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Name)
	}
	return out
}

func TestResolveOrder(t *testing.T) {
	tools := []manifest.Tool{
		tool("editor-ext", "editor"),
		tool("linter", "rust"),
		tool("editor"),
		tool("formatter"),
	}

	tests := []struct {
		name      string
		requested []string
		installed []string
		want      []string
	}{
		{"declaration order without edges", []string{"formatter", "linter"}, nil, []string{"linter", "formatter"}},
		{"requirement first", []string{"editor-ext", "editor"}, nil, []string{"editor", "editor-ext"}},
		{"toolchain pseudo name adds no edge", []string{"linter"}, nil, []string{"linter"}},
		{"installed requirement satisfied", []string{"editor-ext"}, []string{"editor"}, []string{"editor-ext"}},
		{"duplicates collapse", []string{"formatter", "formatter"}, nil, []string{"formatter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := resolver.Resolve(resolver.Input{Requested: tt.requested, Tools: tools, Installed: tt.installed})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(plan.Install))
			assert.Equal(t, tt.want, plan.Names())
		})
	}
}

func TestResolvePullsDeclaredRequirements(t *testing.T) {
	tools := []manifest.Tool{tool("c", "b"), tool("b", "a"), tool("a")}

	plan, err := resolver.Resolve(resolver.Input{Requested: []string{"c"}, Tools: tools})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, plan.Names())
	assert.ElementsMatch(t, []string{"a", "b"}, plan.Pulled)
}

func TestResolveRemovedRequirementIsReinstalledFirst(t *testing.T) {
	tools := []manifest.Tool{tool("ext", "editor"), tool("editor")}

	plan, err := resolver.Resolve(resolver.Input{
		Requested: []string{"ext"},
		Tools:     tools,
		Installed: []string{"editor"},
		Removing:  []string{"editor"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "ext"}, plan.Names())
}

func TestResolveUnknownTools(t *testing.T) {
	tools := []manifest.Tool{tool("a", "ghost")}

	_, err := resolver.Resolve(resolver.Input{Requested: []string{"nope"}, Tools: tools})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDependency))

	_, err = resolver.Resolve(resolver.Input{Requested: []string{"a"}, Tools: tools})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDependency))
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))

	// A tool from an older toolkit that is still installed satisfies it.
	plan, err := resolver.Resolve(resolver.Input{Requested: []string{"a"}, Tools: tools, Installed: []string{"ghost"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, plan.Names())
}

func TestResolveCycle(t *testing.T) {
	tools := []manifest.Tool{tool("top", "x"), tool("x", "y"), tool("y", "z"), tool("z", "x")}

	_, err := resolver.Resolve(resolver.Input{Requested: []string{"top"}, Tools: tools})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCycle))
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
	assert.Equal(t, []string{"x", "y", "z", "x"}, errors.GetErrorDetails(err)["cycle"])
	assert.Contains(t, err.Error(), "x -> y -> z -> x")
}

func TestResolveConflicts(t *testing.T) {
	a := manifest.Tool{Name: "a", Conflicts: []string{"b"}}
	b := manifest.Tool{Name: "b"}
	c := manifest.Tool{Name: "c", Obsoletes: []string{"b"}, Conflicts: []string{"b"}}
	tools := []manifest.Tool{a, b, c}

	tests := []struct {
		name      string
		requested []string
		installed []string
		removing  []string
		conflict  bool
	}{
		{"both requested", []string{"a", "b"}, nil, nil, true},
		{"requested against installed", []string{"a"}, []string{"b"}, nil, true},
		{"installed side declares conflict", []string{"b"}, []string{"a"}, nil, true},
		{"installed but being removed", []string{"a"}, []string{"b"}, []string{"b"}, false},
		{"obsoleted tool does not conflict", []string{"c"}, []string{"b"}, nil, false},
		{"unrelated", []string{"a"}, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(resolver.Input{
				Requested: tt.requested, Tools: tools, Installed: tt.installed, Removing: tt.removing,
			})
			if !tt.conflict {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrConflict))
			assert.Contains(t, err.Error(), "a conflicts with b")
		})
	}
}

func TestResolveObsoletes(t *testing.T) {
	tools := []manifest.Tool{
		{Name: "new-fmt", Obsoletes: []string{"old-fmt", "older-fmt", "missing"}},
		{Name: "new-lint", Obsoletes: []string{"old-fmt"}},
	}

	plan, err := resolver.Resolve(resolver.Input{
		Requested: []string{"new-fmt", "new-lint"},
		Tools:     tools,
		Installed: []string{"older-fmt", "old-fmt", "keep"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"old-fmt", "older-fmt"}, plan.Uninstall)
	assert.ElementsMatch(t, []string{"old-fmt", "older-fmt"}, plan.ObsoletedBy("new-fmt"))
	assert.Empty(t, plan.ObsoletedBy("new-lint"))
}

func TestPlanDependents(t *testing.T) {
	tools := []manifest.Tool{tool("a"), tool("b", "a"), tool("c", "b"), tool("d")}
	plan, err := resolver.Resolve(resolver.Input{Requested: []string{"a", "b", "c", "d"}, Tools: tools})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, plan.Dependents("a"))
	assert.Equal(t, []string{"c"}, plan.Dependents("b"))
	assert.Empty(t, plan.Dependents("d"))
}

func TestPlanSplit(t *testing.T) {
	nextest := tool("nextest")
	nextest.Kind = manifest.KindCargoTool
	tools := []manifest.Tool{
		tool("fmt-helper", "nextest"),
		nextest,
		tool("editor"),
		tool("linter", "rust"),
		tool("linter-ext", "linter"),
		tool("editor-ext", "editor"),
	}
	plan, err := resolver.Resolve(resolver.Input{
		Requested: []string{"fmt-helper", "editor", "linter-ext", "editor-ext"},
		Tools:     tools,
	})
	require.NoError(t, err)

	before, after := plan.Split(manifest.Tool.RequiresToolchain)
	assert.Equal(t, []string{"editor", "editor-ext"}, names(before))
	assert.Equal(t, []string{"nextest", "fmt-helper", "linter", "linter-ext"}, names(after))

	// Nothing waits when the barrier is not needed.
	before, after = plan.Split(func(manifest.Tool) bool { return false })
	assert.Equal(t, plan.Names(), names(before))
	assert.Empty(t, after)
}

func TestUninstallOrderIsReverseOfInstall(t *testing.T) {
	rec := fingerprint.New("/opt/kit")
	for _, n := range []string{"editor", "ext", "linter", "fmt"} {
		rec.SetTool(fingerprint.ToolRecord{Name: n})
	}

	assert.Equal(t, []string{"fmt", "linter", "ext", "editor"}, resolver.UninstallOrder(rec, rec.ToolNames()))
	assert.Equal(t, []string{"linter", "editor"}, resolver.UninstallOrder(rec, []string{"editor", "linter", "unknown"}))
	assert.Empty(t, resolver.UninstallOrder(nil, []string{"editor"}))
}
