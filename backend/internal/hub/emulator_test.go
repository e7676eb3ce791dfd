package hub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	mqttbroker "github.com/mochi-mqtt/server/v2"

	"cheesecave/backend/internal/hub/types"
)

func newTestEmulator(t *testing.T) *Emulator {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	e, err := NewEmulator(l, mqttbroker.New(&mqttbroker.Options{Logger: l}))
	if err != nil {
		t.Fatal(err)
	}

	e.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	return e
}

func TestMergePatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		dst   map[string]any
		patch map[string]any
		want  map[string]any
	}{
		{
			name:  "adds and replaces",
			dst:   map[string]any{"fanstate": "off", "temperature": 55.0},
			patch: map[string]any{"fanstate": "on", "humidity": 85.0},
			want:  map[string]any{"fanstate": "on", "temperature": 55.0, "humidity": 85.0},
		},
		{
			name:  "null deletes",
			dst:   map[string]any{"fanstate": "off", "humidity": 85.0},
			patch: map[string]any{"humidity": nil},
			want:  map[string]any{"fanstate": "off"},
		},
		{
			name:  "objects merge recursively",
			dst:   map[string]any{"cave": map[string]any{"a": 1.0, "b": 2.0}},
			patch: map[string]any{"cave": map[string]any{"b": nil, "c": 3.0}},
			want:  map[string]any{"cave": map[string]any{"a": 1.0, "c": 3.0}},
		},
		{
			name:  "object replaces scalar",
			dst:   map[string]any{"cave": "x"},
			patch: map[string]any{"cave": map[string]any{"a": 1.0}},
			want:  map[string]any{"cave": map[string]any{"a": 1.0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mergePatch(tt.dst, tt.patch)

			if !reflect.DeepEqual(tt.dst, tt.want) {
				t.Errorf("got %v, want %v", tt.dst, tt.want)
			}
		})
	}
}

func TestTwinVersions(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t)

	if _, err := e.Twin("cave"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}

	if v := e.applyReported("cave", map[string]any{"fanstate": "off"}); v != 1 {
		t.Errorf("first version = %d, want 1", v)
	}

	if v := e.applyReported("cave", map[string]any{"fanstate": "on", "humidity": 85.0}); v != 2 {
		t.Errorf("second version = %d, want 2", v)
	}

	tw, err := e.Twin("cave")
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]any{"fanstate": "on", "humidity": 85.0, "$version": int64(2)}
	if tw.Version != 2 || !reflect.DeepEqual(tw.Properties.Reported, want) {
		t.Errorf("twin = %+v, want version 2 with %v", tw, want)
	}

	// The returned document is a copy
	tw.Properties.Reported["fanstate"] = "failed"

	again, err := e.Twin("cave")
	if err != nil {
		t.Fatal(err)
	}

	if got := again.Properties.Reported["fanstate"]; got != "on" {
		t.Errorf("fanstate = %v after mutating a copy, want on", got)
	}
}

func TestDevicesListsTwinsWithoutSessions(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t)
	e.applyReported("cellar", map[string]any{"fanstate": "off"})
	e.applyReported("cave", map[string]any{"fanstate": "off"})

	got := e.Devices()
	if len(got) != 2 {
		t.Fatalf("got %d devices, want 2", len(got))
	}

	if got[0].DeviceID != "cave" || got[1].DeviceID != "cellar" {
		t.Errorf("order = %s, %s; want cave, cellar", got[0].DeviceID, got[1].DeviceID)
	}

	for _, d := range got {
		if d.Connected {
			t.Errorf("%s reported as connected", d.DeviceID)
		}

		if d.LastActivityTime == nil || !d.LastActivityTime.Equal(e.now()) {
			t.Errorf("%s last activity = %v, want %v", d.DeviceID, d.LastActivityTime, e.now())
		}
	}

	if n := e.ConnectedDevices(); n != 0 {
		t.Errorf("connected = %d, want 0", n)
	}
}

func TestInvokeMethodOnAbsentDevice(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t)

	_, err := e.InvokeMethod(context.Background(), "cave", "SetFanState", []byte(`"on"`), time.Second)
	if !errors.Is(err, ErrDeviceNotConnected) {
		t.Errorf("err = %v, want ErrDeviceNotConnected", err)
	}
}

func TestCompleteMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "json object", payload: `{"result":"Fan failed"}`, want: `{"result":"Fan failed"}`},
		{name: "plain text", payload: `done`, want: `"done"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEmulator(t)
			ch := make(chan types.InvokeMethodResponse, 1)
			e.pending["rid-1"] = ch

			e.completeMethod(500, "rid-1", []byte(tt.payload))

			got := <-ch
			if got.Status != 500 || string(got.Payload) != tt.want {
				t.Errorf("got %d %s, want 500 %s", got.Status, got.Payload, tt.want)
			}

			if _, ok := e.pending["rid-1"]; ok {
				t.Error("pending call not removed")
			}
		})
	}
}
