package mqtt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var paramNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// isValidParameterName reports whether name can be used inside {name} or {name...}.
func isValidParameterName(name string) bool {
	return paramNameRe.MatchString(name)
}

// extractParam returns the parameter name of a {param} or {param...} segment.
func extractParam(segment string) (string, bool, bool) {
	if !strings.HasPrefix(segment, "{") || !strings.HasSuffix(segment, "}") {
		return "", false, false
	}

	name := segment[1 : len(segment)-1]
	if tail, ok := strings.CutSuffix(name, "..."); ok {
		return tail, true, true
	}

	return name, false, true
}

// validateTopicPattern validates an MQTT topic pattern with {param} placeholders.
// Valid patterns:
// - Parameters must be in {paramName} format (e.g., devices/{deviceID}/temperature)
// - The last segment may be a multi-level parameter {paramName...}, which becomes '#'
// - Parameter names must start with a letter and contain only alphanumeric characters and underscores
// - Raw wildcards '#' and '+' are NOT accepted, use parameters instead.
func validateTopicPattern(topic string) error {
	if topic == "" {
		return errors.New("topic cannot be empty")
	}

	if strings.HasPrefix(topic, "/") {
		return errors.New("leading slash is not allowed")
	}

	if strings.HasSuffix(topic, "/") {
		return errors.New("trailing slash is not allowed")
	}

	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if segment == "" {
			return errors.New("empty segments are not allowed")
		}

		if strings.Contains(segment, "#") {
			return errors.New("multi-level wildcard '#' is not supported - use a trailing {param...} instead")
		}

		if strings.Contains(segment, "+") {
			return errors.New("wildcard '+' is not supported - use parameter syntax {param} instead")
		}

		name, tail, isParam := extractParam(segment)
		if !isParam {
			if strings.ContainsAny(segment, "{}") {
				return errors.New("invalid parameter syntax - use {paramName} format")
			}

			continue
		}

		if !isValidParameterName(name) {
			return fmt.Errorf("invalid parameter name '%s' - must start with a letter and contain only alphanumeric characters and underscores", name)
		}

		if tail && i != len(segments)-1 {
			return fmt.Errorf("multi-level parameter '%s' must be the last segment", name)
		}
	}

	return nil
}

// convertTopicToMQTT converts a parameterized topic to an MQTT filter:
// $iothub/methods/POST/{rest...} becomes $iothub/methods/POST/#.
func convertTopicToMQTT(topic string) string {
	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if _, tail, ok := extractParam(segment); ok {
			if tail {
				segments[i] = "#"
			} else {
				segments[i] = "+"
			}
		}
	}

	return strings.Join(segments, "/")
}

// validateQoS validates a QoS level.
func validateQoS(qos QoS) error {
	if qos != QoSAtMostOnce && qos != QoSAtLeastOnce && qos != QoSExactlyOnce {
		return errors.New("qos must be 0, 1, or 2")
	}

	return nil
}

// validateParameters checks that every topic parameter is declared and vice versa.
func validateParameters(topic string, topicParams []TopicParameter) error {
	params := map[string]struct{}{}

	for segment := range strings.SplitSeq(topic, "/") {
		if name, _, ok := extractParam(segment); ok {
			params[name] = struct{}{}
		}
	}

	documented := map[string]struct{}{}

	for _, p := range topicParams {
		if p.Name == "" {
			return fmt.Errorf("parameter name required for topic %s", topic)
		}

		if _, exists := params[p.Name]; !exists {
			return fmt.Errorf("documented parameter %s not found in topic", p.Name)
		}

		documented[p.Name] = struct{}{}
	}

	for name := range params {
		if _, exists := documented[name]; !exists {
			return fmt.Errorf("topic parameter %s not documented", name)
		}
	}

	return nil
}

// validateCommon checks the fields the client acts on. Summary, Description
// and Group are inline documentation and may be empty.
func validateCommon(operationID string, qos QoS) error {
	if operationID == "" {
		return errors.New("operationID is required")
	}

	return validateQoS(qos)
}

// validatePublicationSpec validates a publication specification.
func validatePublicationSpec(spec PublicationSpec) error {
	return validateCommon(spec.OperationID, spec.QoS)
}

// validateSubscriptionSpec validates a subscription specification.
func validateSubscriptionSpec(spec SubscriptionSpec) error {
	if err := validateCommon(spec.OperationID, spec.QoS); err != nil {
		return err
	}

	if spec.Handler == nil {
		return errors.New("handler is required")
	}

	return nil
}
