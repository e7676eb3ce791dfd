package agent

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"cheesecave/backend/internal/agent/types"
	"cheesecave/backend/internal/fan"
	"cheesecave/backend/pkg/iothub"
	"cheesecave/backend/pkg/mqtt"
	"cheesecave/backend/pkg/utils"
)

// MethodSetFanState is the direct method that switches the fan.
const MethodSetFanState = "SetFanState"

const (
	opMethodRequest  = "subscribeMethodRequest"
	opMethodResponse = "publishMethodResponse"
)

const (
	resultFanFailed        = "Fan failed"
	resultInvalidParameter = "Invalid parameter"
	resultNotImplemented   = "Method not implemented"
	resultExecutedPrefix   = "Executed direct method: "
)

func result(status int, msg string) types.CommandResult {
	return types.CommandResult{Status: status, Body: types.MethodResult{Result: msg}}
}

// RegisterMethodRequestSubscribe registers the direct method request subscription.
func (h *Handler) RegisterMethodRequestSubscribe(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterSubscribe("$iothub/methods/POST/{rest...}", mqtt.SubscriptionSpec{
		OperationID: opMethodRequest,
		Summary:     "Receive direct method requests",
		Description: "Delivers cloud-initiated method invocations addressed to this device.",
		Group:       "Methods",
		TopicParameters: []mqtt.TopicParameter{
			{Name: "rest", Description: "Method name followed by ?$rid=<request id>"},
		},
		Handler: h.handleMethodRequest,
		QoS:     mqtt.QoSAtMostOnce,
	})
}

// RegisterMethodResponsePublish registers the direct method response publication.
func (h *Handler) RegisterMethodResponsePublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish("$iothub/methods/res/{status}/{query}", mqtt.PublicationSpec{
		OperationID: opMethodResponse,
		Summary:     "Answer a direct method",
		Description: "Returns the status code and JSON body of a method invocation.",
		Group:       "Methods",
		TopicParameters: []mqtt.TopicParameter{
			{Name: "status", Description: "HTTP-style status code"},
			{Name: "query", Description: "?$rid=<request id> echoed from the request"},
		},
		QoS: mqtt.QoSAtMostOnce,
	})
}

func (h *Handler) handleMethodRequest(_ pahomqtt.Client, msg pahomqtt.Message) {
	req, err := iothub.ParseMethodRequestTopic(msg.Topic())
	if err != nil {
		h.l.Error("Ignoring malformed method request", slog.String("topic", msg.Topic()), utils.ErrAttr(err))
		return
	}

	res := h.Invoke(req.Name, msg.Payload())

	body, err := utils.ToJSON(res.Body)
	if err != nil {
		h.l.Error("Failed to encode method response", slog.String("method", req.Name), utils.ErrAttr(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.twinTimeout)
	defer cancel()

	if err := h.pub.PublishRaw(ctx, opMethodResponse, iothub.MethodResponseTopic(res.Status, req.RequestID), body); err != nil {
		h.l.Error("Failed to send method response",
			slog.String("method", req.Name),
			slog.String("rid", req.RequestID),
			utils.ErrAttr(err))
	}
}

// Invoke dispatches a direct method by name. Unknown methods get 501.
func (h *Handler) Invoke(methodName string, payload []byte) types.CommandResult {
	fn, ok := h.methods[methodName]
	if !ok {
		h.l.Warn("Direct method not implemented", slog.String("method", methodName))
		return result(http.StatusNotImplemented, resultNotImplemented)
	}

	return fn(methodName, payload)
}

// SetFanState switches the fan to the state named in payload.
// A failed fan rejects every request without looking at the payload.
func (h *Handler) SetFanState(methodName string, payload []byte) types.CommandResult {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()

	if h.fan.Load() == fan.Failed {
		res := result(http.StatusBadRequest, resultFanFailed)
		h.l.Error("Direct method failed", slog.String("method", methodName), slog.String("result", res.Body.Result))

		return res
	}

	raw := strings.Trim(strings.TrimSpace(string(payload)), `"`)

	target, ok := fan.ParseTarget(raw)
	if !ok {
		res := result(http.StatusBadRequest, resultInvalidParameter)
		h.l.Error("Direct method failed",
			slog.String("method", methodName),
			slog.String("payload", string(payload)),
			slog.String("result", res.Body.Result))

		return res
	}

	if err := h.pin.SetFan(target == fan.On); err != nil {
		h.fan.Fail()
		h.l.Error("Fan pin write failed, fan marked failed", slog.String("target", target.String()), utils.ErrAttr(err))

		return result(http.StatusInternalServerError, resultFanFailed)
	}

	if !h.fan.Set(target) {
		h.l.Error("Fan failed while switching, state not stored", slog.String("target", target.String()))
		return result(http.StatusInternalServerError, resultFanFailed)
	}

	h.l.Info("Fan set to: "+target.String(), slog.String("method", methodName))

	return result(http.StatusOK, resultExecutedPrefix+methodName)
}
