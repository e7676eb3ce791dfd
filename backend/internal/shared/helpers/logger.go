package helpers

import (
	"log/slog"

	"cheesecave/backend/internal/config"
	"cheesecave/backend/pkg/console"
	"cheesecave/backend/pkg/utils"
)

// GetLogger builds the root logger for a binary. When no format is configured,
// terminals get the colour console handler and everything else gets JSON.
func GetLogger(c *config.Config) *slog.Logger {
	logOptions := slog.HandlerOptions{
		Level:       c.LogLevel,
		ReplaceAttr: utils.SlogReplacer,
	}

	format := c.LogFormat
	if format == "" {
		format = config.LogFormatJSON
		if console.IsTerminal(c.LogOutput) {
			format = config.LogFormatConsole
		}
	}

	var logHandler slog.Handler

	switch format {
	case config.LogFormatConsole:
		logHandler = console.NewHandler(c.LogOutput, &logOptions)
	case config.LogFormatText:
		logOptions.ReplaceAttr = console.PlainReplacer(utils.SlogReplacer)
		logHandler = slog.NewTextHandler(c.LogOutput, &logOptions)
	default:
		logOptions.ReplaceAttr = console.PlainReplacer(utils.SlogReplacer)
		logHandler = slog.NewJSONHandler(c.LogOutput, &logOptions)
	}

	return slog.New(logHandler).With(slog.String("version", utils.GetVersionShort()))
}
