package mqtt

import (
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// QoS represents MQTT quality of service levels.
type QoS byte

const (
	// QoSAtMostOnce means the message is delivered at most once, or it may not be delivered at all.
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce means the message is always delivered at least once.
	QoSAtLeastOnce QoS = 1
	// QoSExactlyOnce means the message is always delivered exactly once.
	QoSExactlyOnce QoS = 2
)

// TopicParameter declares a parameter in an MQTT topic pattern.
// Every {name} in the pattern must be declared.
type TopicParameter struct {
	Name        string // Name is the parameter name (e.g., "method")
	Description string // Description is inline documentation only
}

// PublicationSpec describes an MQTT publication operation.
// Summary, Description and Group document the operation at its registration
// site; nothing reads them at runtime.
type PublicationSpec struct {
	OperationID     string           // OperationID is a unique identifier for this publication operation (e.g., "publishTwinReported").
	TopicMQTT       string           // TopicMQTT is the MQTT wildcard format, filled in on registration.
	Summary         string           // Summary is a short description of the publication.
	Description     string           // Description provides detailed information about the publication.
	Group           string           // Group is a logical grouping for the publication (e.g., "Twin", "Methods").
	TopicParameters []TopicParameter // TopicParameters describes the parameters in the topic pattern.
	QoS             QoS              // QoS is the quality of service level for this publication.
	Retained        bool             // Retained indicates whether the message should be retained by the broker.
}

// SubscriptionSpec describes an MQTT subscription operation.
// Summary, Description and Group are documentation, as for PublicationSpec.
type SubscriptionSpec struct {
	OperationID     string                  // OperationID is a unique identifier for this subscription operation.
	TopicMQTT       string                  // TopicMQTT is the MQTT wildcard format, filled in on registration.
	Summary         string                  // Summary is a short description of the subscription.
	Description     string                  // Description provides detailed information about the subscription.
	Group           string                  // Group is a logical grouping for the subscription.
	TopicParameters []TopicParameter        // TopicParameters describes the parameters in the topic pattern.
	Handler         pahomqtt.MessageHandler // Handler is the function that will be called when a message is received.
	QoS             QoS                     // QoS is the quality of service level for this subscription.
}
