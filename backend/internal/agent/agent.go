package agent

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"cheesecave/backend/internal/config"
	"cheesecave/backend/internal/fan"
	"cheesecave/backend/pkg/iothub"
	"cheesecave/backend/pkg/mqtt"
	"cheesecave/backend/pkg/utils"
)

// Device is the hardware the agent drives.
type Device interface {
	Sensor
	FanPin
}

// Agent ties the MQTT transport, the method handler and the telemetry loop together.
type Agent struct {
	l       *slog.Logger
	mb      *mqtt.MQTTBuilder
	handler *Handler
	loop    *TelemetryLoop
	fan     *fan.Register
}

// ClientOptions derives the MQTT connection settings from cfg. A connection
// string means TLS with a SAS token minted on every connect.
func ClientOptions(cfg *config.Config) mqtt.MQTTClientOptions {
	opts := mqtt.MQTTClientOptions{
		BrokerURL: cfg.MQTTBroker,
		ClientID:  cfg.DeviceID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
	}

	if cs := cfg.ConnectionString; cs != nil {
		opts.Credentials = func() (string, string, error) {
			return cs.Credentials(time.Now(), iothub.DefaultTokenTTL)
		}
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return opts
}

// New builds an agent for dev. Nothing is connected until Run.
func New(l *slog.Logger, cfg *config.Config, dev Device) (*Agent, error) {
	mb, err := mqtt.NewMQTTBuilder(l, ClientOptions(cfg))
	if err != nil {
		return nil, err
	}

	state := new(fan.Register)

	h := NewHandler(l, mb.Client(), dev, state, cfg.TwinTimeout)
	h.Register(mb)

	loop := NewTelemetryLoop(l, dev, h, state, LoopOptions{
		Interval:             cfg.TelemetryInterval,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
	})

	return &Agent{
		l:       l.With(slog.String("component", "agent")),
		mb:      mb,
		handler: h,
		loop:    loop,
		fan:     state,
	}, nil
}

// FanState returns the current fan state.
func (a *Agent) FanState() fan.State {
	return a.fan.Load()
}

// Connected reports whether the transport is up.
func (a *Agent) Connected() bool {
	return a.mb.Connected()
}

// Run connects and reports telemetry until ctx is done, then disconnects.
// The loop starts right away; reports fail and back off until the first
// connection completes.
func (a *Agent) Run(ctx context.Context) {
	go func() {
		if err := a.mb.Connect(); err != nil {
			a.l.Error("Failed to connect to MQTT broker", utils.ErrAttr(err))
		}
	}()

	a.loop.Run(ctx)

	a.mb.Disconnect()

	a.l.Info("Agent stopped", slog.String("fanstate", a.fan.Load().String()))
}
