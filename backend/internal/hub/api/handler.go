package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"cheesecave/backend/internal/hub/types"
	apicommon "cheesecave/backend/internal/shared/api"
)

// Hub is what the HTTP API needs from the emulator.
type Hub interface {
	Devices() []types.Device
	ConnectedDevices() int
	Twin(deviceID string) (types.Twin, error)
	InvokeMethod(ctx context.Context, deviceID, method string, payload []byte, timeout time.Duration) (types.InvokeMethodResponse, error)
}

// Handler serves the hub's service-side API.
type Handler struct {
	l   *slog.Logger
	hub Hub
}

// NewHandler creates a new API handler.
func NewHandler(l *slog.Logger, hub Hub) *Handler {
	return &Handler{
		l:   l.With(slog.String("component", "api-handler")),
		hub: hub,
	}
}

// Router builds the chi router with the shared middleware stack.
func (h *Handler) Router(mw *apicommon.MiddlewareHandler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.RequestIDMiddleware)
		r.Use(mw.LoggerMiddleware)
		r.Use(mw.RecoveryMiddleware)

		r.Get("/ping", apicommon.ErrorHandler(h.Ping))
		r.Get("/health", apicommon.ErrorHandler(h.Health))

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", apicommon.ErrorHandler(h.ListDevices))
			r.Get("/{deviceID}/twin", apicommon.ErrorHandler(h.GetTwin))
			r.Post("/{deviceID}/methods/{methodName}", apicommon.ErrorHandler(h.InvokeMethod))
		})
	})

	return r
}
