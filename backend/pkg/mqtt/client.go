package mqtt

import (
	"context"
	"errors"
	"fmt"

	"cheesecave/backend/pkg/utils"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when publishing while the client is offline.
var ErrNotConnected = errors.New("mqtt client not connected")

// MQTTClient publishes messages for operations registered on its builder.
type MQTTClient struct {
	client  mqtt.Client
	builder *MQTTBuilder
}

// Publish serializes payload as JSON and sends it to actualTopic using the
// publication spec identified by operationID.
// It does not validate the topic against the registered pattern.
func (c *MQTTClient) Publish(ctx context.Context, operationID string, actualTopic string, payload any) error {
	bytes, err := utils.ToJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	return c.PublishRaw(ctx, operationID, actualTopic, bytes)
}

// PublishRaw sends payload as-is. It returns when the broker acknowledged the
// message (for QoS > 0) or ctx is done.
func (c *MQTTClient) PublishRaw(ctx context.Context, operationID string, actualTopic string, payload []byte) error {
	c.builder.mu.RLock()
	pub, ok := c.builder.publications[operationID]
	c.builder.mu.RUnlock()

	if !ok {
		return fmt.Errorf("publication not found for operationID %s", operationID)
	}

	// paho would queue it until the next connect
	if !c.builder.Connected() {
		return ErrNotConnected
	}

	token := c.client.Publish(actualTopic, byte(pub.QoS), pub.Retained, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to topic %s: %w", actualTopic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", actualTopic, err)
	}

	return nil
}

// IsConnected reports whether the underlying connection is up.
func (c *MQTTClient) IsConnected() bool {
	return c.builder.Connected()
}
