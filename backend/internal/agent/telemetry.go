package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"cheesecave/backend/internal/agent/types"
	"cheesecave/backend/internal/fan"
	"cheesecave/backend/pkg/utils"
)

// Sensor takes one reading of cave conditions.
type Sensor interface {
	Read(ctx context.Context) (types.SensorReading, error)
}

// TwinReporter submits reported state to the device twin.
type TwinReporter interface {
	UpdateReported(ctx context.Context, state types.ReportedState) error
}

// LoopOptions configures the telemetry loop.
type LoopOptions struct {
	// Interval between reports.
	Interval time.Duration
	// RetryInitialInterval is the first wait after a failed iteration.
	RetryInitialInterval time.Duration
	// RetryMaxInterval caps the wait between retries.
	RetryMaxInterval time.Duration
}

// TelemetryLoop periodically reports sensor readings and fan state.
type TelemetryLoop struct {
	l      *slog.Logger
	sensor Sensor
	twin   TwinReporter
	fan    *fan.Register
	opts   LoopOptions
}

// NewTelemetryLoop creates a telemetry loop.
func NewTelemetryLoop(l *slog.Logger, sensor Sensor, twin TwinReporter, state *fan.Register, opts LoopOptions) *TelemetryLoop {
	return &TelemetryLoop{
		l:      l.With(slog.String("component", "telemetry")),
		sensor: sensor,
		twin:   twin,
		fan:    state,
		opts:   opts,
	}
}

func (t *TelemetryLoop) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.RetryInitialInterval
	b.MaxInterval = t.opts.RetryMaxInterval
	b.Multiplier = 2
	// Never give up; the loop only stops with its context.
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Run reports once per interval until ctx is done. A failed iteration is
// logged and retried after an exponential backoff.
func (t *TelemetryLoop) Run(ctx context.Context) {
	b := t.newBackOff()

	timer := time.NewTimer(0)
	defer timer.Stop()

	t.l.Info("Telemetry loop started", slog.Duration("interval", t.opts.Interval))

	for {
		select {
		case <-ctx.Done():
			t.l.Info("Telemetry loop stopped")
			return
		case <-timer.C:
		}

		wait := t.opts.Interval

		if err := t.Iterate(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}

			wait = b.NextBackOff()
			t.l.Error("Telemetry report failed, retrying", slog.Duration("retryIn", wait), utils.ErrAttr(err))
		} else {
			b.Reset()
		}

		timer.Reset(wait)
	}
}

// Iterate performs one read-build-submit cycle.
func (t *TelemetryLoop) Iterate(ctx context.Context) error {
	reading, err := t.sensor.Read(ctx)
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}

	state := BuildReportedState(reading, t.fan.Load())

	if err := t.twin.UpdateReported(ctx, state); err != nil {
		return fmt.Errorf("update twin: %w", err)
	}

	t.l.Info("Twin state reported",
		slog.String("fanstate", state.FanState),
		slog.Float64("humidity", state.Humidity),
		slog.Float64("temperature", state.Temperature))

	return nil
}

// BuildReportedState combines a reading with the current fan state.
func BuildReportedState(r types.SensorReading, s fan.State) types.ReportedState {
	return types.ReportedState{
		FanState:    s.String(),
		Humidity:    round2(r.Humidity),
		Temperature: round2(r.Temperature),
	}
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
