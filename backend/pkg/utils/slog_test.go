package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestErrAttr(t *testing.T) {
	t.Parallel()

	err := errors.New("sensor offline")
	attr := ErrAttr(err)

	if attr.Key != "error" {
		t.Errorf("ErrAttr() Key = %v, want %v", attr.Key, "error")
	}

	if attr.Value.Any() != err {
		t.Errorf("ErrAttr() Value = %v, want %v", attr.Value.Any(), err)
	}
}

func TestSlogReplacer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{
			name: "time",
			attr: slog.Time("at", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)),
			want: "2024-01-15 10:30:45",
		},
		{
			name: "duration",
			attr: slog.Duration("retry_in", 5*time.Second+250*time.Millisecond),
			want: "5.25s",
		},
		{
			name: "string unchanged",
			attr: slog.String("fanstate", "on"),
			want: "on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SlogReplacer(nil, tt.attr)
			if got.Value.Kind() != slog.KindString {
				t.Fatalf("SlogReplacer() kind = %v, want string", got.Value.Kind())
			}

			if got.Value.String() != tt.want {
				t.Errorf("SlogReplacer() = %v, want %v", got.Value.String(), tt.want)
			}
		})
	}
}

func TestLogWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantLogs bool
	}{
		{name: "line", input: "connection lost\n", wantLogs: true},
		{name: "no newline", input: "connection lost", wantLogs: true},
		{name: "empty", input: "", wantLogs: false},
		{name: "only newline", input: "\n", wantLogs: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := NewSlogWriter(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelWarn)

			n, err := w.Write([]byte(tt.input))
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			if n != len(tt.input) {
				t.Errorf("Write() n = %d, want %d", n, len(tt.input))
			}

			if got := buf.Len() > 0; got != tt.wantLogs {
				t.Errorf("Write() logged = %v, want %v (output %q)", got, tt.wantLogs, buf.String())
			}

			if tt.wantLogs && !strings.Contains(buf.String(), "level=WARN") {
				t.Errorf("Write() output %q should be at WARN", buf.String())
			}
		})
	}
}

func TestLogOnError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	LogOnError(l, func() error { return nil }, "close failed")

	if buf.Len() != 0 {
		t.Fatalf("LogOnError() logged on success: %s", buf.String())
	}

	LogOnError(l, func() error { return errors.New("busy") }, "close failed")

	out := buf.String()
	if !strings.Contains(out, "close failed") || !strings.Contains(out, "busy") {
		t.Errorf("LogOnError() output = %q, want message and error", out)
	}
}
