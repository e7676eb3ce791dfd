package iothub

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Topic filters a device subscribes to.
const (
	MethodRequestFilter = "$iothub/methods/POST/#"
	TwinResponseFilter  = "$iothub/twin/res/#"
)

const (
	methodRequestPrefix  = "$iothub/methods/POST/"
	methodResponsePrefix = "$iothub/methods/res/"
	twinResponsePrefix   = "$iothub/twin/res/"
	twinReportedPrefix   = "$iothub/twin/PATCH/properties/reported/"
)

var errNoRequestID = errors.New("topic has no $rid")

// MethodRequest identifies an incoming direct method invocation.
type MethodRequest struct {
	Name      string
	RequestID string
}

// TwinResponse is the hub's answer to a twin operation.
type TwinResponse struct {
	Status    int
	RequestID string
	Version   int64
}

// MethodRequestTopic formats the topic on which the hub delivers a method request.
func MethodRequestTopic(method, rid string) string {
	return methodRequestPrefix + method + "/?$rid=" + url.QueryEscape(rid)
}

// ParseMethodRequestTopic extracts the method name and request id.
func ParseMethodRequestTopic(topic string) (MethodRequest, error) {
	rest, ok := strings.CutPrefix(topic, methodRequestPrefix)
	if !ok {
		return MethodRequest{}, fmt.Errorf("not a method request topic: %s", topic)
	}

	name, query, ok := strings.Cut(rest, "/?")
	if !ok || name == "" || strings.Contains(name, "/") {
		return MethodRequest{}, fmt.Errorf("malformed method request topic: %s", topic)
	}

	rid, err := requestID(query)
	if err != nil {
		return MethodRequest{}, fmt.Errorf("malformed method request topic %s: %w", topic, err)
	}

	return MethodRequest{Name: name, RequestID: rid}, nil
}

// MethodResponseTopic formats the topic a device answers a method request on.
func MethodResponseTopic(status int, rid string) string {
	return methodResponsePrefix + strconv.Itoa(status) + "/?$rid=" + url.QueryEscape(rid)
}

// ParseMethodResponseTopic extracts the status and request id of a method response.
func ParseMethodResponseTopic(topic string) (int, string, error) {
	return parseStatusTopic(methodResponsePrefix, topic)
}

// TwinReportedTopic formats the reported properties PATCH topic.
func TwinReportedTopic(rid string) string {
	return twinReportedPrefix + "?$rid=" + url.QueryEscape(rid)
}

// ParseTwinReportedTopic extracts the request id of a reported properties PATCH.
func ParseTwinReportedTopic(topic string) (string, error) {
	query, ok := strings.CutPrefix(topic, twinReportedPrefix+"?")
	if !ok {
		return "", fmt.Errorf("not a twin reported topic: %s", topic)
	}

	return requestID(query)
}

// TwinResponseTopic formats the topic the hub answers a twin operation on.
func TwinResponseTopic(status int, rid string, version int64) string {
	t := twinResponsePrefix + strconv.Itoa(status) + "/?$rid=" + url.QueryEscape(rid)
	if version > 0 {
		t += "&$version=" + strconv.FormatInt(version, 10)
	}

	return t
}

// ParseTwinResponseTopic parses a twin operation result topic.
func ParseTwinResponseTopic(topic string) (TwinResponse, error) {
	status, query, err := splitStatusTopic(twinResponsePrefix, topic)
	if err != nil {
		return TwinResponse{}, err
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return TwinResponse{}, fmt.Errorf("malformed query in %s: %w", topic, err)
	}

	resp := TwinResponse{Status: status, RequestID: values.Get("$rid")}
	if resp.RequestID == "" {
		return TwinResponse{}, errNoRequestID
	}

	if v := values.Get("$version"); v != "" {
		if resp.Version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return TwinResponse{}, fmt.Errorf("malformed $version in %s: %w", topic, err)
		}
	}

	return resp, nil
}

// IsSuccess reports whether a hub status code means the operation succeeded.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

func parseStatusTopic(prefix, topic string) (int, string, error) {
	status, query, err := splitStatusTopic(prefix, topic)
	if err != nil {
		return 0, "", err
	}

	rid, err := requestID(query)
	if err != nil {
		return 0, "", err
	}

	return status, rid, nil
}

func splitStatusTopic(prefix, topic string) (int, string, error) {
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return 0, "", fmt.Errorf("topic %s does not start with %s", topic, prefix)
	}

	code, query, ok := strings.Cut(rest, "/?")
	if !ok {
		return 0, "", fmt.Errorf("malformed status topic: %s", topic)
	}

	status, err := strconv.Atoi(code)
	if err != nil {
		return 0, "", fmt.Errorf("malformed status %q in %s", code, topic)
	}

	return status, query, nil
}

func requestID(query string) (string, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", err
	}

	rid := values.Get("$rid")
	if rid == "" {
		return "", errNoRequestID
	}

	return rid, nil
}
