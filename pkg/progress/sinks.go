package progress

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog"
)

// LogReporter mirrors events into a zerolog logger at debug level, with
// update messages at info.
func LogReporter(logger zerolog.Logger) Reporter {
	return ReporterFunc(func(e Event) {
		switch e.Kind {
		case Message:
			logger.Info().Msg(e.Message)
		case MainStart, MainEnd, SubStart, SubEnd:
			logger.Debug().Str("event", string(e.Kind)).Int64("length", e.Length).Msg(e.Message)
		case Complete:
			logger.Debug().Str("event", string(e.Kind)).Msg("operation complete")
		}
	})
}

// LogLineWriter turns zerolog JSON lines into update-message events so a
// front end sees what the log file sees. Lines below minLevel are skipped.
type LogLineWriter struct {
	T        Tracker
	MinLevel zerolog.Level
}

type logLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (w LogLineWriter) Write(p []byte) (int, error) {
	for _, raw := range bytes.Split(p, []byte{'\n'}) {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var line logLine
		if err := json.Unmarshal(raw, &line); err != nil || line.Message == "" {
			continue
		}
		level, err := zerolog.ParseLevel(line.Level)
		if err != nil || level < w.MinLevel {
			continue
		}
		w.T.Message(line.Message)
	}
	return len(p), nil
}
