package types

// ErrorResponse is the body of every failed HTTP request.
//
//nolint:errname // ErrorResponse is an API response type, not a traditional error
type ErrorResponse struct {
	// HTTP status code (internal only, not sent to client)
	StatusCode int `json:"-"`
	// Request ID for tracking
	RequestID string `json:"requestID"`
	Message   string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// PingResponse is the response to a ping request.
type PingResponse struct {
	Message string     `json:"message"`
	Status  PingStatus `json:"status"`
}

type PingStatus string

const PingStatusOK PingStatus = "OK"
