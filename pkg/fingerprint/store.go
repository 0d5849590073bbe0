package fingerprint

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/types"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

// Recorder is how install and uninstall steps report what they changed.
// Every call is persisted before it returns.
type Recorder interface {
	RecordTool(t ToolRecord) error
	ForgetTool(name string) error
	RecordToolchain(tc *ToolchainRecord) error
	Save() error
}

// Store owns the fingerprint file.
type Store struct {
	fs     types.FS
	path   string
	legacy string
	logger zerolog.Logger

	mu  sync.Mutex
	rec *Record
}

// Option configures a Store.
type Option func(*Store)

// WithLegacyPath makes Load fall back to a record left by older releases.
// The legacy file is only ever read.
func WithLegacyPath(path string) Option {
	return func(s *Store) { s.legacy = path }
}

// WithLogger sets the store logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Store) { s.logger = logging.OrDefault(l, "fingerprint") }
}

// NewStore returns a store for the record at path.
func NewStore(fsys types.FS, path string, opts ...Option) *Store {
	s := &Store{fs: fsys, path: path, logger: logging.GetLogger("fingerprint")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the record location.
func (s *Store) Path() string { return s.path }

// Load reads the record from disk. It returns nil without error when no
// installation is recorded.
func (s *Store) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(s.path)
	if err != nil {
		return nil, err
	}
	if rec == nil && s.legacy != "" {
		if rec, err = s.read(s.legacy); err != nil {
			return nil, err
		}
		if rec != nil {
			s.logger.Info().Str("path", s.legacy).Msg("loaded legacy fingerprint")
		}
	}
	s.rec = rec
	return rec.Clone(), nil
}

func (s *Store) read(path string) (*Record, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "read %s", path)
	}
	return Decode(data)
}

// Decode parses record bytes.
func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrStateCorrupt, "fingerprint is not valid TOML")
	}
	if rec.Schema == 0 {
		rec.Schema = SchemaVersion
	}
	if rec.Schema > SchemaVersion {
		return nil, errors.Newf(errors.ErrStateMismatch,
			"fingerprint schema %d is newer than supported schema %d", rec.Schema, SchemaVersion)
	}
	return &rec, nil
}

// Encode renders a record.
func Encode(rec *Record) ([]byte, error) {
	data, err := toml.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "encode fingerprint")
	}
	return data, nil
}

// Record returns a snapshot of the current record, or nil.
func (s *Store) Record() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

// Init replaces the record and writes it.
func (s *Store) Init(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec.Clone()
	return s.saveLocked()
}

// Update applies fn to the record and writes it.
func (s *Store) Update(fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return errors.New(errors.ErrStateMismatch, "no installation is recorded")
	}
	fn(s.rec)
	return s.saveLocked()
}

// RecordTool implements Recorder.
func (s *Store) RecordTool(t ToolRecord) error {
	return s.Update(func(r *Record) { r.SetTool(t) })
}

// ForgetTool implements Recorder.
func (s *Store) ForgetTool(name string) error {
	return s.Update(func(r *Record) { r.RemoveTool(name) })
}

// RecordToolchain implements Recorder. A nil toolchain clears it.
func (s *Store) RecordToolchain(tc *ToolchainRecord) error {
	return s.Update(func(r *Record) {
		if tc == nil {
			r.Toolchain = nil
			return
		}
		c := *tc
		c.Components = append([]string(nil), tc.Components...)
		r.Toolchain = &c
	})
}

// Save implements Recorder.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil
	}
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.rec.Schema == 0 {
		s.rec.Schema = SchemaVersion
	}
	data, err := Encode(s.rec)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(s.path))
	}
	if err := s.fs.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "write %s", s.path)
	}
	s.logger.Trace().Str("path", s.path).Int("tools", len(s.rec.Tools)).Msg("fingerprint saved")
	return nil
}

// Delete removes the record from disk and memory.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileWrite, "remove %s", s.path)
	}
	return nil
}

// Begin marks operation id as running. When a previous run left its id
// behind, that id is returned: the caller holds the lock, so the earlier
// run must have crashed and this one resumes it.
func (s *Store) Begin(id string) (stale string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return "", nil
	}
	stale = s.rec.InProgress
	if stale != "" {
		s.logger.Warn().Str("stale", stale).Str("operation", id).
			Msg("previous operation did not finish, resuming")
	}
	s.rec.InProgress = id
	return stale, s.saveLocked()
}

// Finish clears the running operation marker.
func (s *Store) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.InProgress == "" {
		return nil
	}
	s.rec.InProgress = ""
	return s.saveLocked()
}
