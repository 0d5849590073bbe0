// Package execution runs the external programs kitman drives: rustup,
// cargo, editors and vendor installers. Every invocation goes through a
// Runner so callers can be tested without spawning processes.
package execution

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/rs/zerolog"
)

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
	// Env is the complete child environment. Nil inherits kitman's own.
	Env []string
	Dir string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd and fails with ErrExternalTool on a non-zero exit.
	Run(ctx context.Context, cmd Command) error
	// Output is Run that also returns trimmed stdout.
	Output(ctx context.Context, cmd Command) (string, error)
}

// tailSize bounds how much stderr is kept for error details.
const tailSize = 4 << 10

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger zerolog.Logger
	// Stdout receives the child's output when set. Progress front ends
	// attach a line writer here.
	Stdout io.Writer
}

// NewExecRunner creates a runner logging under the "execution" component.
func NewExecRunner(logger *zerolog.Logger) *ExecRunner {
	return &ExecRunner{logger: logging.OrDefault(logger, "execution")}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	_, err := r.run(ctx, cmd, false)
	return err
}

func (r *ExecRunner) Output(ctx context.Context, cmd Command) (string, error) {
	return r.run(ctx, cmd, true)
}

func (r *ExecRunner) run(ctx context.Context, cmd Command, capture bool) (string, error) {
	logging.LogCommand(r.logger, cmd.Name, cmd.Args)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir

	var stdout bytes.Buffer
	stderr := &tail{max: tailSize}
	switch {
	case capture:
		c.Stdout = &stdout
	case r.Stdout != nil:
		c.Stdout = r.Stdout
	default:
		c.Stdout = &logWriter{logger: r.logger}
	}
	c.Stderr = io.MultiWriter(stderr, &logWriter{logger: r.logger})

	err := c.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}
	if ctx.Err() != nil {
		return "", errors.Wrapf(ctx.Err(), errors.ErrCancelled, "%s interrupted", cmd.Name)
	}

	kerr := errors.Wrapf(err, errors.ErrExternalTool, "%s failed", cmd.String()).
		WithDetail("command", cmd.Name)
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		kerr = kerr.WithDetail("exit_code", exitErr.ExitCode())
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		kerr = kerr.WithDetail("stderr", s)
	}
	r.logger.Error().Err(err).Str("command", cmd.String()).Msg("command failed")
	return "", kerr
}

// tail keeps the last max bytes written to it.
type tail struct {
	buf []byte
	max int
}

func (t *tail) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tail) String() string { return string(t.buf) }

// logWriter forwards child output to the debug log line by line.
type logWriter struct {
	logger  zerolog.Logger
	pending []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimRight(string(w.pending[:i]), "\r"); line != "" {
			w.logger.Debug().Msg(line)
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}
