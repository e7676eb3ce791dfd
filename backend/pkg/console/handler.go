// Package console provides the colour coded slog.Handler used on interactive
// terminals. Levels are coloured debug plain, info green, warn yellow and
// error red; error attributes are red as well.
package console

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// LevelBanner is INFO severity rendered in yellow on the console, for the
// startup banner.
const LevelBanner = slog.LevelInfo + 1

// ANSI 256-colour palette indices.
const (
	colorRed    = 9
	colorYellow = 11
)

// NewHandler creates a console handler. Colour is enabled only when w is a terminal.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return newHandler(w, opts, IsTerminal(w))
}

func newHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return tint.NewHandler(w, &tint.Options{
		AddSource:   opts.AddSource,
		Level:       opts.Level,
		ReplaceAttr: replaceAttr(opts.ReplaceAttr),
		TimeFormat:  time.TimeOnly,
		NoColor:     !color,
	})
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PlainReplacer wraps next so text and JSON handlers print LevelBanner as INFO.
func PlainReplacer(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.LevelKey {
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelBanner {
				return slog.String(a.Key, slog.LevelInfo.String())
			}
		}

		if next != nil {
			return next(groups, a)
		}

		return a
	}
}

// replaceAttr colours the banner level and errors. next only sees record
// attributes; tint formats time and level itself.
func replaceAttr(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 {
			switch a.Key {
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelBanner {
					return tint.Attr(colorYellow, slog.String(a.Key, "INF"))
				}

				return a
			case slog.TimeKey, slog.MessageKey, slog.SourceKey:
				return a
			}
		}

		if a.Value.Kind() == slog.KindAny {
			if _, ok := a.Value.Any().(error); ok {
				return tint.Attr(colorRed, a)
			}
		}

		if next != nil {
			return next(groups, a)
		}

		return a
	}
}
