package api

import (
	"net/http"

	"cheesecave/backend/internal/hub/types"
	apicommon "cheesecave/backend/internal/shared/api"
	sharedtypes "cheesecave/backend/internal/shared/types"
)

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, sharedtypes.PingResponse{
		Message: "Pong", Status: sharedtypes.PingStatusOK,
	})

	return nil
}

// Health is always 200 while the broker runs; it reports how many devices are attached.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, types.HealthResponse{
		MQTT:             true,
		ConnectedDevices: h.hub.ConnectedDevices(),
	})

	return nil
}
