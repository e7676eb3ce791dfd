package types

import (
	"encoding/json"
	"time"
)

// Device summarises a device known to the hub.
type Device struct {
	// Device (and MQTT client) ID
	DeviceID string `json:"deviceId"`
	// Whether an MQTT session is currently open
	Connected bool `json:"connected"`
	// Last time the device patched its twin
	LastActivityTime *time.Time `json:"lastActivityTime,omitempty"`
}

// DevicesResponse lists devices.
type DevicesResponse struct {
	Devices []Device `json:"devices"`
}

// Twin is a device twin document.
type Twin struct {
	DeviceID   string         `json:"deviceId"`
	Version    int64          `json:"version"`
	Properties TwinProperties `json:"properties"`
}

// TwinProperties holds the twin's property sections.
type TwinProperties struct {
	// Reported properties, including "$version"
	Reported map[string]any `json:"reported"`
}

// InvokeMethodRequest is the body of a direct method invocation.
type InvokeMethodRequest struct {
	// Method payload, any JSON value
	Payload json.RawMessage `json:"payload,omitempty"`
	// How long to wait for the device to answer (default 30, max 300)
	ResponseTimeoutInSeconds int `json:"responseTimeoutInSeconds,omitempty"`
}

// InvokeMethodResponse is the device's answer to a direct method.
type InvokeMethodResponse struct {
	Status  int             `json:"status"`
	Payload json.RawMessage `json:"payload"`
}

// HealthResponse reports the emulator's health.
type HealthResponse struct {
	MQTT             bool `json:"mqtt"`
	ConnectedDevices int  `json:"connectedDevices"`
}
