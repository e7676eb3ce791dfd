package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cheesecave/backend/internal/hub"
	"cheesecave/backend/internal/hub/types"
	apicommon "cheesecave/backend/internal/shared/api"
)

const (
	defaultMethodTimeout = 30
	maxMethodTimeout     = 300
)

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, types.DevicesResponse{Devices: h.hub.Devices()})

	return nil
}

func (h *Handler) GetTwin(w http.ResponseWriter, r *http.Request) error {
	deviceID := chi.URLParam(r, "deviceID")

	tw, err := h.hub.Twin(deviceID)
	if errors.Is(err, hub.ErrDeviceNotFound) {
		return apicommon.NewError(http.StatusNotFound, "Device has no twin: "+deviceID)
	}

	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, tw)

	return nil
}

// InvokeMethod calls a direct method on a device and relays its status and payload.
func (h *Handler) InvokeMethod(w http.ResponseWriter, r *http.Request) error {
	deviceID := chi.URLParam(r, "deviceID")
	method := chi.URLParam(r, "methodName")

	req, err := apicommon.DecodeJSON[types.InvokeMethodRequest](r)
	if err != nil {
		return err
	}

	timeout := req.ResponseTimeoutInSeconds
	switch {
	case timeout == 0:
		timeout = defaultMethodTimeout
	case timeout < 0 || timeout > maxMethodTimeout:
		return apicommon.NewError(http.StatusBadRequest, "responseTimeoutInSeconds must be between 1 and 300")
	}

	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		return apicommon.NewError(http.StatusBadRequest, "payload must be valid JSON")
	}

	resp, err := h.hub.InvokeMethod(r.Context(), deviceID, method, req.Payload, time.Duration(timeout)*time.Second)

	switch {
	case errors.Is(err, hub.ErrDeviceNotConnected):
		return apicommon.NewError(http.StatusNotFound, "Device is not connected: "+deviceID)
	case errors.Is(err, hub.ErrMethodTimeout):
		return apicommon.NewError(http.StatusGatewayTimeout, "Timed out waiting for device "+deviceID)
	case err != nil:
		return err
	}

	apicommon.GetLoggerFromContext(r.Context()).Info("Method completed",
		slog.String("deviceID", deviceID),
		slog.String("method", method),
		slog.Int("status", resp.Status))

	apicommon.RespondJSON(w, r, http.StatusOK, resp)

	return nil
}
