package core

import (
	"context"
	"os"
	"time"

	"github.com/arthur-debert/kitman/pkg/envconf"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/execution"
	"github.com/arthur-debert/kitman/pkg/fetch"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/hostos"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/metrics"
	"github.com/arthur-debert/kitman/pkg/paths"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/arthur-debert/kitman/pkg/registry"
	"github.com/arthur-debert/kitman/pkg/toolchain"
	"github.com/arthur-debert/kitman/pkg/tools"
	"github.com/arthur-debert/kitman/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "kitman/core"

// Options wires an Engine. Zero values get the native implementations.
type Options struct {
	FS      types.FS
	Paths   *paths.Paths
	Runner  execution.Runner
	Fetcher fetch.Fetcher
	Host    hostos.Host
	// Configurator edits the user environment; nil uses the host one.
	Configurator    envconf.Configurator
	Routines        registry.Registry[tools.Routine]
	ApplicationsDir string
	Progress        progress.Reporter
	Metrics         *metrics.Metrics
	// MetricsFile receives a textfile snapshot after every operation.
	MetricsFile string
	Tracer      trace.Tracer
	Logger      *zerolog.Logger
	// Executable is the running manager binary; empty uses os.Executable.
	Executable string
	// BaseEnv seeds child process environments; nil uses os.Environ.
	BaseEnv []string
	// Version is the manager's own version; self-update compares release
	// files against it.
	Version string
	// Download tunes the fetcher built when Fetcher is nil.
	DownloadTimeout time.Duration
	DownloadRetries int
}

// Engine runs operations against one machine.
type Engine struct {
	opts    Options
	fs      types.FS
	paths   *paths.Paths
	runner  execution.Runner
	host    hostos.Host
	envconf envconf.Configurator
	metrics *metrics.Metrics
	tracer  trace.Tracer
	tracker progress.Tracker
	logger  zerolog.Logger
}

// New builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.FS == nil {
		opts.FS = filesystem.NewOS()
	}
	if opts.Paths == nil {
		p, err := paths.New()
		if err != nil {
			return nil, err
		}
		opts.Paths = p
	}
	if opts.Runner == nil {
		opts.Runner = execution.NewExecRunner(opts.Logger)
	}
	if opts.Host == nil {
		opts.Host = hostos.New()
	}
	if opts.Configurator == nil {
		opts.Configurator = envconf.NewHost(opts.FS, opts.Logger)
	}
	if opts.Routines == nil {
		opts.Routines = tools.DefaultRoutines()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal, "locate running executable")
		}
		opts.Executable = exe
	}
	return &Engine{
		opts:    opts,
		fs:      opts.FS,
		paths:   opts.Paths,
		runner:  opts.Runner,
		host:    opts.Host,
		envconf: opts.Configurator,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		tracker: progress.NewTracker(opts.Progress),
		logger:  logging.OrDefault(opts.Logger, "core"),
	}, nil
}

// Record returns the current fingerprint, nil when nothing is installed.
// It does not take the lock.
func (e *Engine) Record() (*fingerprint.Record, error) {
	return e.store("").Load()
}

func (e *Engine) store(installDir string) *fingerprint.Store {
	opts := []fingerprint.Option{fingerprint.WithLogger(&e.logger)}
	if installDir != "" {
		opts = append(opts, fingerprint.WithLegacyPath(paths.NewLayout(installDir).LegacyFingerprint()))
	}
	return fingerprint.NewStore(e.fs, e.paths.FingerprintPath(), opts...)
}

// session is the state of one running operation.
type session struct {
	e       *Engine
	ctx     context.Context
	op      string
	id      string
	started time.Time
	lock    *fingerprint.Lock
	store   *fingerprint.Store
	span    trace.Span
	logger  zerolog.Logger
	result  *Result

	// Set once the target is known.
	target  *Target
	layout  paths.Layout
	fetcher fetch.Fetcher
	adapter *toolchain.Adapter
	exec    *tools.Executor
}

// begin takes the lock and loads the record. installDir only matters for
// finding a legacy record.
func (e *Engine) begin(ctx context.Context, op, installDir string) (*session, error) {
	id := uuid.NewString()
	logger := e.logger.With().Str("operation", op).Str("id", id).Logger()

	lock, err := fingerprint.Acquire(e.paths.LockPath())
	if err != nil {
		return nil, err
	}
	ctx, span := e.tracer.Start(ctx, "kitman."+op, trace.WithAttributes(
		attribute.String("kitman.operation", op),
		attribute.String("kitman.operation_id", id),
	))

	s := &session{
		e:       e,
		ctx:     ctx,
		op:      op,
		id:      id,
		started: time.Now(),
		lock:    lock,
		store:   e.store(installDir),
		span:    span,
		logger:  logger,
		result:  &Result{OperationID: id},
	}
	if _, err := s.store.Load(); err != nil {
		s.end(err)
		return nil, err
	}
	logger.Info().Msg("operation started")
	return s, nil
}

// mark sets the in-progress id once a record exists. A leftover id from a
// crashed run is logged and taken over.
func (s *session) mark() error {
	stale, err := s.store.Begin(s.id)
	if err != nil {
		return err
	}
	if stale != "" && stale != s.id {
		s.result.Resumed = stale
		s.e.tracker.Message("Resuming an operation that did not finish")
	}
	return nil
}

// end clears the in-progress marker, releases the lock and publishes
// metrics. It returns err for convenient tail calls.
func (s *session) end(err error) error {
	if err == nil {
		err = s.store.Finish()
	} else {
		// The marker stays so the next run knows this one broke off.
		s.logger.Error().Err(err).Msg("operation aborted")
	}
	if rerr := s.lock.Release(); rerr != nil {
		s.logger.Warn().Err(rerr).Msg("failed to release lock")
	}

	s.e.metrics.Operation(s.op, err)
	s.e.metrics.Observe(s.op, s.started)
	if werr := s.e.metrics.WriteTextfile(s.e.opts.MetricsFile); werr != nil {
		s.logger.Warn().Err(werr).Msg("failed to write metrics textfile")
	}

	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
	s.logger.Info().Dur("elapsed", time.Since(s.started)).Msg("operation finished")
	s.e.tracker.Complete()
	return err
}

// step runs one named step inside its own span.
func (s *session) step(name string, fn func(ctx context.Context) error) error {
	ctx, span := s.e.tracer.Start(s.ctx, "kitman.step."+name)
	defer span.End()
	start := time.Now()
	done := logging.LogOperationStart(s.logger, name)
	err := fn(ctx)
	done()
	s.e.metrics.Observe(name, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// prepare binds the session to a target: layout, fetcher, toolchain
// adapter and tool executor.
func (s *session) prepare(t *Target) {
	e := s.e
	s.target = t
	s.result.Kind = t.Kind
	s.layout = paths.NewLayout(t.Config.InstallDir)
	s.span.SetAttributes(
		attribute.String("kitman.kind", string(t.Kind)),
		attribute.String("kitman.install_dir", s.layout.Root),
	)

	s.fetcher = e.opts.Fetcher
	if s.fetcher == nil {
		var proxy *fetch.Proxy
		if p := t.Manifest.Proxy; p != nil {
			proxy = &fetch.Proxy{HTTP: p.HTTP, HTTPS: p.HTTPS, NoProxy: p.NoProxy}
		}
		s.fetcher = fetch.New(fetch.Options{
			Proxy:    proxy,
			Insecure: t.Config.Insecure,
			Timeout:  e.opts.DownloadTimeout,
			Retries:  e.opts.DownloadRetries,
			Progress: e.tracker.Reporter(),
			Logger:   &s.logger,
		})
	}

	s.adapter = toolchain.New(toolchain.Options{
		Settings: s.settings(),
		Runner:   e.runner,
		Fetcher:  s.fetcher,
		FS:       e.fs,
		Tracker:  e.tracker,
		Logger:   &s.logger,
		BaseEnv:  e.opts.BaseEnv,
	})
	s.exec = tools.New(tools.Options{
		FS:              e.fs,
		Runner:          e.runner,
		Fetcher:         s.fetcher,
		Host:            e.host,
		Routines:        e.opts.Routines,
		ApplicationsDir: e.opts.ApplicationsDir,
		Logger:          &s.logger,
	})
}

// settings resolves the toolchain servers: request, then manifest, then
// the recorded defaults.
func (s *session) settings() toolchain.Settings {
	t := s.target
	st := toolchain.Settings{
		Layout:     s.layout,
		DistServer: t.Config.DistServer,
		UpdateRoot: t.Config.UpdateRoot,
	}
	if m := t.Manifest; m != nil {
		if st.DistServer == "" {
			st.DistServer = m.DistServer
		}
		if st.DistServer == "" && m.Offline {
			st.DistServer = m.Toolchain.OfflineDistServer
		}
		if st.UpdateRoot == "" {
			st.UpdateRoot = m.UpdateRoot
		}
		st.Proxy = m.Proxy
	}
	return st
}

// installDir picks the root: the request, then the record, then the
// default.
func installDir(req string, rec *fingerprint.Record) string {
	switch {
	case req != "":
		return req
	case rec != nil && rec.InstallDir != "":
		return rec.InstallDir
	}
	return paths.DefaultInstallDir()
}

// placeholder manifest used by operations that only read the record.
func recordManifest(rec *fingerprint.Record) *manifest.Manifest {
	m := &manifest.Manifest{Targets: map[string][]manifest.Tool{}}
	if rec != nil {
		m.Name, m.Version, m.Edition = rec.Name, rec.Version, rec.Edition
	}
	return m
}
