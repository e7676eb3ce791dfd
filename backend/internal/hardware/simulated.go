package hardware

import (
	"errors"
	"math/rand/v2"
	"sync"

	"cheesecave/backend/internal/agent/types"
)

var errPinClosed = errors.New("simulated pin closed")

// simPin is an in-memory fan pin.
type simPin struct {
	mu     sync.Mutex
	high   bool
	closed bool
}

func newSimPin() *simPin {
	return &simPin{}
}

func (p *simPin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPinClosed
	}

	p.high = high

	return nil
}

func (p *simPin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.high
}

func (p *simPin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.high = false
	p.closed = true

	return nil
}

// simSensor is a cave that warms and dampens slowly, and cools and dries while the fan runs.
type simSensor struct {
	fan         *simPin
	rng         *rand.Rand
	temperature float64
	humidity    float64
}

const (
	simStartTemperature = 55.0
	simStartHumidity    = 85.0
)

func newSimSensor(fan *simPin) *simSensor {
	return &simSensor{
		fan:         fan,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		temperature: simStartTemperature,
		humidity:    simStartHumidity,
	}
}

func (s *simSensor) read() (types.SensorReading, error) {
	dt, dh := 0.05, 0.1
	if s.fan.High() {
		dt, dh = -0.2, -0.5
	}

	s.temperature += dt + (s.rng.Float64()-0.5)*0.1
	s.humidity = min(max(s.humidity+dh+(s.rng.Float64()-0.5)*0.4, 0), 100)

	return types.SensorReading{Temperature: s.temperature, Humidity: s.humidity}, nil
}
