// Package logging builds the executor's slog logger from the [logging]
// config section and provides a size-rotating file writer for it.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
)

// ParseLevel converts a logging.level string to a slog.Level.
// Unknown or empty strings map to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg. Its level is read from level on every
// record, so a reload can change verbosity by calling level.Set. The
// returned io.Closer releases the log file, if one was opened.
func New(cfg config.LoggingConfig, level *slog.LevelVar) (*slog.Logger, io.Closer, error) {
	level.Set(ParseLevel(cfg.Level))

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		rw, err := NewRotatingWriter(cfg.Output, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		if err != nil {
			return nil, nil, err
		}
		out, closer = rw, rw
	}

	return slog.New(NewHandler(out, cfg.Format, level)), closer, nil
}

// NewHandler returns a JSON handler, or a text handler when format is "text".
func NewHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
