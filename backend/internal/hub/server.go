package hub

import (
	"fmt"
	"log/slog"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// NewServer creates an MQTT broker listening on addr that accepts every client,
// with an emulator attached.
func NewServer(l *slog.Logger, addr string) (*mqttbroker.Server, *Emulator, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		Logger: l.With(slog.String("component", "mqtt-broker")),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, nil, fmt.Errorf("add auth hook: %w", err)
	}

	emu, err := NewEmulator(l, server)
	if err != nil {
		return nil, nil, err
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, nil, fmt.Errorf("add listener %s: %w", addr, err)
	}

	return server, emu, nil
}
