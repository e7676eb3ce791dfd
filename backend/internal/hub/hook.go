package hub

import (
	"bytes"
	"log/slog"
	"net/http"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"cheesecave/backend/pkg/iothub"
	"cheesecave/backend/pkg/utils"
)

// emulatorHook answers twin patches and collects method responses.
type emulatorHook struct {
	mqttbroker.HookBase

	e *Emulator
}

func (h *emulatorHook) ID() string {
	return "iothub-emulator"
}

func (h *emulatorHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqttbroker.OnSessionEstablished,
		mqttbroker.OnDisconnect,
		mqttbroker.OnPublish,
	}, []byte{b})
}

func (h *emulatorHook) OnSessionEstablished(cl *mqttbroker.Client, _ packets.Packet) {
	if cl.Net.Inline {
		return
	}

	h.e.l.Info("Device connected", slog.String("deviceID", cl.ID), slog.String("remote", cl.Net.Remote))
}

func (h *emulatorHook) OnDisconnect(cl *mqttbroker.Client, err error, _ bool) {
	h.e.l.Info("Device disconnected", slog.String("deviceID", cl.ID), utils.ErrAttr(err))
}

func (h *emulatorHook) OnPublish(cl *mqttbroker.Client, pk packets.Packet) (packets.Packet, error) {
	if rid, err := iothub.ParseTwinReportedTopic(pk.TopicName); err == nil {
		h.handleReported(cl, rid, pk.Payload)
		return pk, nil
	}

	if status, rid, err := iothub.ParseMethodResponseTopic(pk.TopicName); err == nil {
		h.e.completeMethod(status, rid, pk.Payload)
		return pk, nil
	}

	return pk, nil
}

func (h *emulatorHook) handleReported(cl *mqttbroker.Client, rid string, payload []byte) {
	patch, err := utils.FromJSON[map[string]any](payload)
	if err != nil || patch == nil {
		h.e.l.Warn("Rejecting reported patch", slog.String("deviceID", cl.ID), slog.String("rid", rid), utils.ErrAttr(err))
		h.respond(cl, iothub.TwinResponseTopic(http.StatusBadRequest, rid, 0))

		return
	}

	version := h.e.applyReported(cl.ID, patch)
	h.e.l.Info("Reported properties updated", slog.String("deviceID", cl.ID), slog.Int64("version", version), slog.Any("patch", patch))
	h.respond(cl, iothub.TwinResponseTopic(http.StatusNoContent, rid, version))
}

func (h *emulatorHook) respond(cl *mqttbroker.Client, topic string) {
	if err := writePublish(cl, topic, nil); err != nil {
		h.e.l.Error("Failed to answer device", slog.String("deviceID", cl.ID), slog.String("topic", topic), utils.ErrAttr(err))
	}
}
