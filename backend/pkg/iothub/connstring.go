package iothub

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// APIVersion is the service API version sent in the MQTT username.
const APIVersion = "2021-04-12"

// ConnectionString holds the parts of a device connection string:
//
//	HostName=<hub>.azure-devices.net;DeviceId=<id>;SharedAccessKey=<base64 key>
type ConnectionString struct {
	HostName        string
	DeviceID        string
	SharedAccessKey string
	GatewayHostName string
}

// ParseConnectionString parses and validates a device connection string.
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString

	s = strings.TrimSpace(s)
	if s == "" {
		return cs, errors.New("connection string is empty")
	}

	for part := range strings.SplitSeq(s, ";") {
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return cs, fmt.Errorf("malformed connection string segment %q", part)
		}

		switch key {
		case "HostName":
			cs.HostName = value
		case "DeviceId":
			cs.DeviceID = value
		case "SharedAccessKey":
			cs.SharedAccessKey = value
		case "GatewayHostName":
			cs.GatewayHostName = value
		}
	}

	switch {
	case cs.HostName == "":
		return cs, errors.New("connection string is missing HostName")
	case cs.DeviceID == "":
		return cs, errors.New("connection string is missing DeviceId")
	case cs.SharedAccessKey == "":
		return cs, errors.New("connection string is missing SharedAccessKey")
	}

	if _, err := base64.StdEncoding.DecodeString(cs.SharedAccessKey); err != nil {
		return cs, fmt.Errorf("SharedAccessKey is not valid base64: %w", err)
	}

	return cs, nil
}

// BrokerURL is the TLS MQTT endpoint for the hub (or the gateway when set).
func (cs ConnectionString) BrokerURL() string {
	host := cs.HostName
	if cs.GatewayHostName != "" {
		host = cs.GatewayHostName
	}

	return "ssl://" + host + ":8883"
}

// Username is the MQTT username the hub expects from a device.
func (cs ConnectionString) Username() string {
	return cs.HostName + "/" + cs.DeviceID + "/?api-version=" + APIVersion
}

// ResourceURI is the SAS token scope for the device.
func (cs ConnectionString) ResourceURI() string {
	return cs.HostName + "/devices/" + cs.DeviceID
}
