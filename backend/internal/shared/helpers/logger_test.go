package helpers

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"cheesecave/backend/internal/config"
	"cheesecave/backend/pkg/console"
)

func TestGetLoggerFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{format: config.LogFormatJSON, want: `"level":"INFO","msg":"Cheese Cave device app."`},
		{format: config.LogFormatText, want: `level=INFO msg="Cheese Cave device app."`},
		{format: config.LogFormatConsole, want: "INF Cheese Cave device app."},
		{format: "", want: `"level":"INFO","msg":"Cheese Cave device app."`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			l := GetLogger(&config.Config{LogLevel: slog.LevelInfo, LogFormat: tt.format, LogOutput: &buf})
			l.Log(t.Context(), console.LevelBanner, "Cheese Cave device app.")

			if got := buf.String(); !strings.Contains(got, tt.want) {
				t.Errorf("output = %q, want it to contain %q", got, tt.want)
			}

			if !strings.Contains(buf.String(), "version") {
				t.Errorf("output = %q, want a version attribute", buf.String())
			}
		})
	}
}
