// Package hub emulates the device-facing side of an IoT hub on top of an
// embedded MQTT broker: device twins with reported properties and direct
// method invocation.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"cheesecave/backend/internal/hub/types"
	"cheesecave/backend/pkg/iothub"
	"cheesecave/backend/pkg/utils"
)

var (
	ErrDeviceNotConnected = errors.New("device not connected")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrMethodTimeout      = errors.New("timed out waiting for device response")
)

type twin struct {
	reported     map[string]any
	version      int64
	lastActivity time.Time
}

// Emulator tracks twins and in-flight method calls for the broker it is attached to.
type Emulator struct {
	l      *slog.Logger
	server *mqttbroker.Server
	now    func() time.Time

	mu      sync.Mutex
	twins   map[string]*twin
	pending map[string]chan types.InvokeMethodResponse
}

// NewEmulator attaches an emulator hook to server.
func NewEmulator(l *slog.Logger, server *mqttbroker.Server) (*Emulator, error) {
	e := &Emulator{
		l:       l.With(slog.String("component", "hub-emulator")),
		server:  server,
		now:     time.Now,
		twins:   make(map[string]*twin),
		pending: make(map[string]chan types.InvokeMethodResponse),
	}

	if err := server.AddHook(&emulatorHook{e: e}, nil); err != nil {
		return nil, fmt.Errorf("add emulator hook: %w", err)
	}

	return e, nil
}

func (e *Emulator) connectedClient(deviceID string) (*mqttbroker.Client, bool) {
	cl, ok := e.server.Clients.Get(deviceID)
	if !ok || cl.Closed() || cl.Net.Inline {
		return nil, false
	}

	return cl, true
}

// Devices lists every device that is connected or has a twin.
func (e *Emulator) Devices() []types.Device {
	e.mu.Lock()
	byID := make(map[string]types.Device, len(e.twins))
	for id, tw := range e.twins {
		last := tw.lastActivity
		byID[id] = types.Device{DeviceID: id, LastActivityTime: &last}
	}
	e.mu.Unlock()

	for id, cl := range e.server.Clients.GetAll() {
		if cl.Closed() || cl.Net.Inline {
			continue
		}

		d := byID[id]
		d.DeviceID = id
		d.Connected = true
		byID[id] = d
	}

	out := make([]types.Device, 0, len(byID))
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		out = append(out, byID[id])
	}

	return out
}

// ConnectedDevices counts open device sessions.
func (e *Emulator) ConnectedDevices() int {
	n := 0

	for _, cl := range e.server.Clients.GetAll() {
		if !cl.Closed() && !cl.Net.Inline {
			n++
		}
	}

	return n
}

// Twin returns a copy of the device's twin.
func (e *Emulator) Twin(deviceID string) (types.Twin, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tw, ok := e.twins[deviceID]
	if !ok {
		return types.Twin{}, ErrDeviceNotFound
	}

	reported := deepCopy(tw.reported)
	reported["$version"] = tw.version

	return types.Twin{
		DeviceID:   deviceID,
		Version:    tw.version,
		Properties: types.TwinProperties{Reported: reported},
	}, nil
}

// applyReported merges patch into the device's reported properties and
// returns the new version.
func (e *Emulator) applyReported(deviceID string, patch map[string]any) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	tw, ok := e.twins[deviceID]
	if !ok {
		tw = &twin{reported: map[string]any{}}
		e.twins[deviceID] = tw
	}

	mergePatch(tw.reported, patch)
	tw.version++
	tw.lastActivity = e.now()

	return tw.version
}

// InvokeMethod delivers a direct method to a connected device and waits for its answer.
func (e *Emulator) InvokeMethod(ctx context.Context, deviceID, method string, payload []byte, timeout time.Duration) (types.InvokeMethodResponse, error) {
	cl, ok := e.connectedClient(deviceID)
	if !ok {
		return types.InvokeMethodResponse{}, ErrDeviceNotConnected
	}

	rid := utils.NewUUID()
	ch := make(chan types.InvokeMethodResponse, 1)

	e.mu.Lock()
	e.pending[rid] = ch
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, rid)
		e.mu.Unlock()
	}()

	if len(payload) == 0 {
		payload = []byte("null")
	}

	if err := writePublish(cl, iothub.MethodRequestTopic(method, rid), payload); err != nil {
		return types.InvokeMethodResponse{}, fmt.Errorf("deliver method %s to %s: %w", method, deviceID, err)
	}

	e.l.Info("Method invoked", slog.String("deviceID", deviceID), slog.String("method", method), slog.String("rid", rid))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return types.InvokeMethodResponse{}, ErrMethodTimeout
	case <-ctx.Done():
		return types.InvokeMethodResponse{}, ctx.Err()
	}
}

func (e *Emulator) completeMethod(status int, rid string, payload []byte) {
	body := json.RawMessage(payload)
	if !json.Valid(payload) {
		encoded, _ := utils.ToJSON(string(payload))
		body = encoded
	}

	e.mu.Lock()
	ch, ok := e.pending[rid]
	delete(e.pending, rid)
	e.mu.Unlock()

	if !ok {
		e.l.Warn("Method response with no waiting caller", slog.String("rid", rid), slog.Int("status", status))
		return
	}

	ch <- types.InvokeMethodResponse{Status: status, Payload: body}
}

// writePublish sends a QoS 0 publish straight to one client, whatever it is subscribed to.
func writePublish(cl *mqttbroker.Client, topic string, payload []byte) error {
	return cl.WritePacket(packets.Packet{
		FixedHeader:     packets.FixedHeader{Type: packets.Publish},
		TopicName:       topic,
		Payload:         payload,
		ProtocolVersion: cl.Properties.ProtocolVersion,
	})
}

// mergePatch applies a JSON merge patch: null deletes, objects merge recursively.
func mergePatch(dst, patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}

		if pm, ok := v.(map[string]any); ok {
			dm, ok := dst[k].(map[string]any)
			if !ok {
				dm = map[string]any{}
				dst[k] = dm
			}

			mergePatch(dm, pm)

			continue
		}

		dst[k] = v
	}
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for k, v := range m {
		if vm, ok := v.(map[string]any); ok {
			out[k] = deepCopy(vm)
			continue
		}

		out[k] = v
	}

	return out
}
