package types

// SensorReading is one sample of cave conditions.
type SensorReading struct {
	// Temperature in degrees Fahrenheit
	Temperature float64
	// Relative humidity in percent
	Humidity float64
}

// ReportedState is the reported-property patch sent to the device twin.
type ReportedState struct {
	// Fan state: "off", "on" or "failed"
	FanState string `json:"fanstate"`
	// Relative humidity, rounded to 2 decimals
	Humidity float64 `json:"humidity"`
	// Temperature in degrees Fahrenheit, rounded to 2 decimals
	Temperature float64 `json:"temperature"`
}

// MethodResult is the body of every direct method response.
type MethodResult struct {
	Result string `json:"result"`
}

// CommandResult is the outcome of one direct method invocation.
type CommandResult struct {
	Status int
	Body   MethodResult
}
