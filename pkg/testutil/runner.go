package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/stretchr/testify/mock"
)

// MockRunner is a testify mock of execution.Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, cmd execution.Command) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *MockRunner) Output(ctx context.Context, cmd execution.Command) (string, error) {
	args := m.Called(ctx, cmd)
	return args.String(0), args.Error(1)
}

// CommandLine matches a command by its short line, see Line.
func CommandLine(line string) interface{} {
	return mock.MatchedBy(func(c execution.Command) bool { return Line(c) == line })
}

// Line renders a command with the program's base name and no .exe suffix,
// so assertions do not depend on the install root or platform.
func Line(c execution.Command) string {
	name := strings.TrimSuffix(filepath.Base(c.Name), ".exe")
	return strings.TrimSpace(name + " " + strings.Join(c.Args, " "))
}

// FakeRunner records commands and answers them from prefix-keyed tables.
// It suits scenario tests where exact call lists would be brittle.
type FakeRunner struct {
	mu    sync.Mutex
	calls []execution.Command

	// Fail maps a Line prefix to the error returned for it.
	Fail map[string]error
	// Outputs maps a Line prefix to Output's stdout.
	Outputs map[string]string
	// Effects run for matching commands before they return, to emulate
	// side effects such as rustup-init creating the rustup binary.
	Effects map[string]func(execution.Command) error
}

// NewFakeRunner returns an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Fail:    map[string]error{},
		Outputs: map[string]string{},
		Effects: map[string]func(execution.Command) error{},
	}
}

func (f *FakeRunner) Run(_ context.Context, cmd execution.Command) error {
	_, err := f.answer(cmd)
	return err
}

func (f *FakeRunner) Output(_ context.Context, cmd execution.Command) (string, error) {
	return f.answer(cmd)
}

func (f *FakeRunner) answer(cmd execution.Command) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	line := Line(cmd)
	for prefix, effect := range f.Effects {
		if strings.HasPrefix(line, prefix) {
			if err := effect(cmd); err != nil {
				return "", err
			}
		}
	}
	for prefix, err := range f.Fail {
		if strings.HasPrefix(line, prefix) {
			return "", err
		}
	}
	for prefix, out := range f.Outputs {
		if strings.HasPrefix(line, prefix) {
			return out, nil
		}
	}
	return "", nil
}

// Lines returns every recorded command as a Line.
func (f *FakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, Line(c))
	}
	return out
}

// Calls returns the recorded commands.
func (f *FakeRunner) Calls() []execution.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execution.Command(nil), f.calls...)
}

// Ran reports whether a command starting with prefix was run.
func (f *FakeRunner) Ran(prefix string) bool {
	for _, l := range f.Lines() {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}
