package utils

import "github.com/google/uuid"

// NewUUID returns a time ordered UUIDv7 string. Used for MQTT request ids.
func NewUUID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	panic("failed to generate UUID")
}
