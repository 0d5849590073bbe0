package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// KitmanStateDirEnv overrides the state directory used for the log file.
const KitmanStateDirEnv = "KITMAN_STATE_DIR"

var (
	mu       sync.Mutex
	base     []io.Writer
	attached = map[int]io.Writer{}
	nextID   int
	callers  bool
)

// SetupLogger configures the global logger based on verbosity level.
// Output goes to the console and to a log file under the XDG state dir.
func SetupLogger(verbosity int) {
	switch verbosity {
	case 0:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}

	writers := []io.Writer{consoleWriter}
	logFile := LogFilePath()
	logFileHandle, err := setupLogFile(logFile)
	if err == nil {
		writers = append(writers, logFileHandle)
	}

	mu.Lock()
	base = writers
	callers = verbosity >= 2
	rebuildLocked()
	mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("path", logFile).Msg("Failed to create log file, logging to console only")
	}
	log.Debug().Int("verbosity", verbosity).Str("logFile", logFile).Msg("Logger initialized")
}

// AttachWriter adds an extra sink to the global logger (for instance a
// front end that wants to display log lines). The returned func detaches it.
func AttachWriter(w io.Writer) func() {
	mu.Lock()
	id := nextID
	nextID++
	attached[id] = w
	rebuildLocked()
	mu.Unlock()

	return func() {
		mu.Lock()
		delete(attached, id)
		rebuildLocked()
		mu.Unlock()
	}
}

func rebuildLocked() {
	writers := append([]io.Writer{}, base...)
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	for i := 0; i < nextID; i++ {
		if w, ok := attached[i]; ok {
			writers = append(writers, w)
		}
	}
	logger := zerolog.New(io.MultiWriter(writers...)).With().Timestamp()
	if callers {
		logger = logger.Caller()
	}
	log.Logger = logger.Logger()
}

// GetLogger returns a contextualized logger with the given name
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// OrDefault returns *l when set, else the component logger for name.
// Options structs take a *zerolog.Logger so that "unset" is observable.
func OrDefault(l *zerolog.Logger, name string) zerolog.Logger {
	if l != nil {
		return *l
	}
	return GetLogger(name)
}

// LogFilePath returns the path to the log file.
// KITMAN_STATE_DIR wins, then XDG_STATE_HOME, then ~/.local/state/kitman.
func LogFilePath() string {
	if dir := os.Getenv(KitmanStateDirEnv); dir != "" {
		return filepath.Join(dir, "kitman.log")
	}
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "kitman.log"
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "kitman", "kitman.log")
}

func setupLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// LogCommand logs an external command execution with its arguments
func LogCommand(logger zerolog.Logger, cmd string, args []string) {
	logger.Debug().
		Str("command", cmd).
		Strs("args", args).
		Msg("Executing command")
}

// LogOperationStart logs the start of an operation and returns a function to log its completion
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().
		Str("operation", operation).
		Msg("Operation started")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}
