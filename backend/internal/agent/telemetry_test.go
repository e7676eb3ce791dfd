package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cheesecave/backend/internal/agent/types"
	"cheesecave/backend/internal/fan"
)

type fakeSensor struct {
	mu       sync.Mutex
	reading  types.SensorReading
	failures int
	calls    int
}

func (s *fakeSensor) Read(context.Context) (types.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.failures > 0 {
		s.failures--
		return types.SensorReading{}, errors.New("i2c timeout")
	}

	return s.reading, nil
}

type fakeTwin struct {
	mu      sync.Mutex
	reports []types.ReportedState
	notify  chan struct{}
}

func (f *fakeTwin) UpdateReported(_ context.Context, s types.ReportedState) error {
	f.mu.Lock()
	f.reports = append(f.reports, s)
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}

	return nil
}

func TestBuildReportedStateRounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reading types.SensorReading
		state   fan.State
		want    types.ReportedState
	}{
		{
			reading: types.SensorReading{Temperature: 55.456789, Humidity: 84.999},
			state:   fan.Off,
			want:    types.ReportedState{FanState: "off", Humidity: 85, Temperature: 55.46},
		},
		{
			reading: types.SensorReading{Temperature: -3.14159, Humidity: 0.004},
			state:   fan.On,
			want:    types.ReportedState{FanState: "on", Humidity: 0, Temperature: -3.14},
		},
		{
			reading: types.SensorReading{Temperature: 60, Humidity: 90.1},
			state:   fan.Failed,
			want:    types.ReportedState{FanState: "failed", Humidity: 90.1, Temperature: 60},
		},
	}

	for _, tt := range tests {
		if got := BuildReportedState(tt.reading, tt.state); got != tt.want {
			t.Errorf("BuildReportedState(%+v, %v) = %+v, want %+v", tt.reading, tt.state, got, tt.want)
		}
	}
}

func TestTelemetryLoopReportsCurrentFanState(t *testing.T) {
	t.Parallel()

	state := &fan.Register{}
	state.Set(fan.On)

	sensor := &fakeSensor{reading: types.SensorReading{Temperature: 55.556, Humidity: 80.001}}
	twin := &fakeTwin{notify: make(chan struct{}, 1)}

	loop := NewTelemetryLoop(discardLogger(), sensor, twin, state, LoopOptions{
		Interval:             5 * time.Millisecond,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		loop.Run(ctx)
		close(done)
	}()

	for range 3 {
		select {
		case <-twin.notify:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a report")
		}
	}

	cancel()
	<-done

	twin.mu.Lock()
	defer twin.mu.Unlock()

	want := types.ReportedState{FanState: "on", Humidity: 80, Temperature: 55.56}
	for i, got := range twin.reports {
		if got != want {
			t.Errorf("report %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestTelemetryLoopRetriesAfterSensorFault(t *testing.T) {
	t.Parallel()

	sensor := &fakeSensor{failures: 3, reading: types.SensorReading{Temperature: 50, Humidity: 70}}
	twin := &fakeTwin{notify: make(chan struct{}, 1)}

	loop := NewTelemetryLoop(discardLogger(), sensor, twin, &fan.Register{}, LoopOptions{
		Interval:             time.Hour,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     4 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	select {
	case <-twin.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not recover from sensor faults")
	}

	sensor.mu.Lock()
	defer sensor.mu.Unlock()

	if sensor.calls != 4 {
		t.Errorf("sensor calls = %d, want 4", sensor.calls)
	}
}

func TestBackOffNeverGivesUp(t *testing.T) {
	t.Parallel()

	loop := NewTelemetryLoop(discardLogger(), nil, nil, &fan.Register{}, LoopOptions{
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     4 * time.Second,
	})

	b := loop.newBackOff()
	for range 50 {
		d := b.NextBackOff()
		if d <= 0 || d > 6*time.Second {
			t.Fatalf("NextBackOff() = %v, want within (0, 6s]", d)
		}
	}
}
