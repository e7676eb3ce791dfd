// Package hardware owns the cave's sensor and fan pin for the lifetime of the
// agent. Everything acquired by Open is released by a single Close.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cheesecave/backend/internal/agent/types"
	"cheesecave/backend/internal/config"
	"cheesecave/backend/pkg/hw/bme280"
	"cheesecave/backend/pkg/hw/gpio"
	"cheesecave/backend/pkg/hw/i2c"
	"cheesecave/backend/pkg/utils"
)

const consumer = "cheesecave-fan"

type sensor interface {
	read() (types.SensorReading, error)
}

type pin interface {
	Set(high bool) error
	Close() error
}

// Hardware is the acquired sensor and fan pin.
type Hardware struct {
	l      *slog.Logger
	sensor sensor
	pin    pin

	// released after pin, in reverse acquisition order
	closers []func() error

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Open acquires the backend selected by cfg.Hardware. If any step fails,
// whatever was already acquired is released before returning.
func Open(l *slog.Logger, cfg *config.Config) (*Hardware, error) {
	l = l.With(slog.String("component", "hardware"), slog.String("backend", cfg.Hardware))

	switch cfg.Hardware {
	case config.HardwareSimulated:
		l.Info("Using simulated hardware")

		p := newSimPin()

		return &Hardware{l: l, sensor: newSimSensor(p), pin: p}, nil
	case config.HardwareDevice:
		return openDevice(l, cfg)
	default:
		return nil, fmt.Errorf("unknown hardware backend %q", cfg.Hardware)
	}
}

func openDevice(l *slog.Logger, cfg *config.Config) (*Hardware, error) {
	p, err := gpio.OpenOutput(cfg.GPIOChip, cfg.FanGPIOPin, consumer)
	if err != nil {
		return nil, fmt.Errorf("open fan pin: %w", err)
	}

	bus, err := i2c.Open(cfg.I2CBus)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open i2c bus %s: %w", cfg.I2CBus, err), p.Close())
	}

	dev, err := bme280.New(bus.Dev(cfg.BME280Address))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init bme280 at %#x: %w", cfg.BME280Address, err), bus.Close(), p.Close())
	}

	l.Info("Hardware acquired",
		slog.String("pin", gpio.LineName(cfg.FanGPIOPin)),
		slog.String("i2cBus", cfg.I2CBus),
		slog.String("sensorAddress", fmt.Sprintf("%#x", cfg.BME280Address)),
	)

	return &Hardware{
		l:       l,
		sensor:  bmeSensor{dev: dev},
		pin:     p,
		closers: []func() error{bus.Close},
	}, nil
}

// Read takes one sensor sample.
func (h *Hardware) Read(ctx context.Context) (types.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return types.SensorReading{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.sensor.read()
}

// SetFan drives the fan pin high (on) or low (off).
func (h *Hardware) SetFan(on bool) error {
	return h.pin.Set(on)
}

// Close drives the pin low and releases everything Open acquired.
// It is safe to call more than once.
func (h *Hardware) Close() error {
	h.closeOnce.Do(func() {
		errs := []error{h.pin.Close()}

		for i := len(h.closers) - 1; i >= 0; i-- {
			errs = append(errs, h.closers[i]())
		}

		h.closeErr = errors.Join(errs...)
		if h.closeErr != nil {
			h.l.Error("Failed to release hardware", utils.ErrAttr(h.closeErr))
			return
		}

		h.l.Info("Hardware released")
	})

	return h.closeErr
}

type bmeSensor struct {
	dev *bme280.Device
}

func (s bmeSensor) read() (types.SensorReading, error) {
	r, err := s.dev.Read()
	if err != nil {
		return types.SensorReading{}, err
	}

	return types.SensorReading{Temperature: r.Fahrenheit(), Humidity: r.Humidity}, nil
}
