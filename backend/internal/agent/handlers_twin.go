package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"cheesecave/backend/internal/agent/types"
	"cheesecave/backend/pkg/iothub"
	"cheesecave/backend/pkg/mqtt"
	"cheesecave/backend/pkg/utils"
)

const (
	opTwinReported = "publishTwinReported"
	opTwinResponse = "subscribeTwinResponse"
)

// ErrTwinRejected is returned when the hub answers a reported-state patch with a non-2xx status.
var ErrTwinRejected = errors.New("twin update rejected")

// RegisterTwinReportedPublish registers the reported-properties patch publication.
func (h *Handler) RegisterTwinReportedPublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish("$iothub/twin/PATCH/properties/reported/{query}", mqtt.PublicationSpec{
		OperationID: opTwinReported,
		Summary:     "Patch reported properties",
		Description: "Merges fan state and cave conditions into the device twin's reported properties.",
		Group:       "Twin",
		TopicParameters: []mqtt.TopicParameter{
			{Name: "query", Description: "?$rid=<request id> used to correlate the hub's answer"},
		},
		QoS: mqtt.QoSAtMostOnce,
	})
}

// RegisterTwinResponseSubscribe registers the twin operation result subscription.
func (h *Handler) RegisterTwinResponseSubscribe(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterSubscribe("$iothub/twin/res/{rest...}", mqtt.SubscriptionSpec{
		OperationID: opTwinResponse,
		Summary:     "Receive twin results",
		Description: "Status of earlier twin operations, correlated by request id.",
		Group:       "Twin",
		TopicParameters: []mqtt.TopicParameter{
			{Name: "rest", Description: "Status code followed by ?$rid=<request id>&$version=<twin version>"},
		},
		Handler: h.handleTwinResponse,
		QoS:     mqtt.QoSAtMostOnce,
	})
}

func (h *Handler) handleTwinResponse(_ pahomqtt.Client, msg pahomqtt.Message) {
	resp, err := iothub.ParseTwinResponseTopic(msg.Topic())
	if err != nil {
		h.l.Warn("Ignoring malformed twin response", slog.String("topic", msg.Topic()), utils.ErrAttr(err))
		return
	}

	h.deliverTwinResponse(resp)
}

func (h *Handler) deliverTwinResponse(resp iothub.TwinResponse) {
	h.pendingMu.Lock()
	ch, ok := h.pending[resp.RequestID]
	delete(h.pending, resp.RequestID)
	h.pendingMu.Unlock()

	if !ok {
		h.l.Debug("Twin response with no waiting request", slog.String("rid", resp.RequestID), slog.Int("status", resp.Status))
		return
	}

	ch <- resp
}

// UpdateReported sends state as a reported-properties patch and waits for the
// hub to accept it. It is not retried here.
func (h *Handler) UpdateReported(ctx context.Context, state types.ReportedState) error {
	body, err := utils.ToJSON(state)
	if err != nil {
		return fmt.Errorf("encode reported state: %w", err)
	}

	rid := utils.NewUUID()
	ch := make(chan iothub.TwinResponse, 1)

	h.pendingMu.Lock()
	h.pending[rid] = ch
	h.pendingMu.Unlock()

	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, rid)
		h.pendingMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, h.twinTimeout)
	defer cancel()

	if err := h.pub.PublishRaw(ctx, opTwinReported, iothub.TwinReportedTopic(rid), body); err != nil {
		return fmt.Errorf("publish reported state: %w", err)
	}

	select {
	case resp := <-ch:
		if !iothub.IsSuccess(resp.Status) {
			return fmt.Errorf("%w: status %d", ErrTwinRejected, resp.Status)
		}

		h.l.Debug("Twin update accepted", slog.String("rid", rid), slog.Int64("version", resp.Version))

		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for twin response %s: %w", rid, ctx.Err())
	}
}
