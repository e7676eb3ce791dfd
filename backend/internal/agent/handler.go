package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cheesecave/backend/internal/agent/types"
	"cheesecave/backend/internal/fan"
	"cheesecave/backend/pkg/iothub"
	"cheesecave/backend/pkg/mqtt"
)

// Publisher sends raw payloads for registered publication operations.
type Publisher interface {
	PublishRaw(ctx context.Context, operationID, topic string, payload []byte) error
}

// FanPin drives the fan's output pin.
type FanPin interface {
	SetFan(on bool) error
}

// MethodFunc handles one direct method invocation.
type MethodFunc func(methodName string, payload []byte) types.CommandResult

// Handler answers direct methods and reports twin state over MQTT.
type Handler struct {
	l           *slog.Logger
	pub         Publisher
	pin         FanPin
	fan         *fan.Register
	twinTimeout time.Duration

	// cmdMu serialises method handling so pin level and state agree.
	cmdMu   sync.Mutex
	methods map[string]MethodFunc

	pendingMu sync.Mutex
	pending   map[string]chan iothub.TwinResponse
}

// NewHandler creates a new agent handler. state is shared with the telemetry loop.
func NewHandler(l *slog.Logger, pub Publisher, pin FanPin, state *fan.Register, twinTimeout time.Duration) *Handler {
	h := &Handler{
		l:           l.With(slog.String("component", "agent-handler")),
		pub:         pub,
		pin:         pin,
		fan:         state,
		twinTimeout: twinTimeout,
		pending:     make(map[string]chan iothub.TwinResponse),
	}

	h.methods = map[string]MethodFunc{
		MethodSetFanState: h.SetFanState,
	}

	return h
}

// Register registers every MQTT operation the agent uses.
func (h *Handler) Register(mb *mqtt.MQTTBuilder) {
	h.RegisterMethodRequestSubscribe(mb)
	h.RegisterMethodResponsePublish(mb)
	h.RegisterTwinReportedPublish(mb)
	h.RegisterTwinResponseSubscribe(mb)
}
