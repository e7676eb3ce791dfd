package utils

import (
	"bytes"
	"context"
	"log/slog"
	"time"
)

// ErrAttr returns a standardized slog attribute for errors.
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

// SlogReplacer renders times and durations as human friendly strings.
func SlogReplacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		return slog.String(a.Key, a.Value.Time().Format(time.DateTime))
	case slog.KindDuration:
		return slog.String(a.Key, a.Value.Duration().String())
	default:
		return a
	}
}

// LogOnError runs fn and logs msg with the error if it fails. Useful in defers.
func LogOnError(l *slog.Logger, fn func() error, msg string) {
	if err := fn(); err != nil {
		l.Error(msg, ErrAttr(err))
	}
}

// LogWriter is an io.Writer that forwards each written line to a slog.Logger.
// It lets libraries that only accept a *log.Logger log through slog.
type LogWriter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogWriter creates a LogWriter logging at level.
func NewSlogWriter(logger *slog.Logger, level slog.Level) *LogWriter {
	return &LogWriter{logger: logger, level: level}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	msg := bytes.TrimRight(p, "\n")
	if len(msg) == 0 {
		return len(p), nil
	}

	w.logger.Log(context.Background(), w.level, string(msg))

	return len(p), nil
}
