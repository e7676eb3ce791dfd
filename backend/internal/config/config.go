package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cheesecave/backend/pkg/iothub"

	"gopkg.in/yaml.v3"
)

type EnvKey string

const (
	EnvConfigFile EnvKey = "CONFIG_FILE"

	EnvPort      EnvKey = "PORT"
	EnvDataDir   EnvKey = "DATA_DIR"
	EnvLogLevel  EnvKey = "LOG_LEVEL"
	EnvLogFormat EnvKey = "LOG_FORMAT"
	EnvLogToFile EnvKey = "LOG_TO_FILE"

	EnvMQTTBrokerPort EnvKey = "MQTT_SERVER_PORT"

	EnvConnectionString EnvKey = "DEVICE_CONNECTION_STRING"
	EnvMQTTBroker       EnvKey = "MQTT_BROKER"
	EnvDeviceID         EnvKey = "DEVICE_ID"
	EnvMQTTUsername     EnvKey = "MQTT_USERNAME"
	EnvMQTTPassword     EnvKey = "MQTT_PASSWORD"

	EnvTelemetryInterval    EnvKey = "TELEMETRY_INTERVAL"
	EnvTwinTimeout          EnvKey = "TWIN_TIMEOUT"
	EnvRetryInitialInterval EnvKey = "RETRY_INITIAL_INTERVAL"
	EnvRetryMaxInterval     EnvKey = "RETRY_MAX_INTERVAL"
	EnvExitOnEnter          EnvKey = "EXIT_ON_ENTER"

	EnvHardware      EnvKey = "HARDWARE"
	EnvFanGPIOPin    EnvKey = "FAN_GPIO_PIN"
	EnvGPIOChip      EnvKey = "GPIO_CHIP"
	EnvI2CBus        EnvKey = "I2C_BUS"
	EnvBME280Address EnvKey = "BME280_ADDRESS"
)

// Hardware backends.
const (
	HardwareDevice    = "device"
	HardwareSimulated = "simulated"
)

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
	LogFormatText    = "text"
)

type Config struct {
	Port      int
	DataDir   string
	LogLevel  slog.Leveler
	LogFormat string
	LogOutput io.Writer

	// MQTT Server configuration (hub emulator)
	MQTTBrokerPort int

	// Device connection. ConnectionString is nil when targeting a plain broker.
	ConnectionString *iothub.ConnectionString
	MQTTBroker       string
	DeviceID         string
	MQTTUsername     string
	MQTTPassword     string

	// Agent behaviour
	TelemetryInterval    time.Duration
	TwinTimeout          time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	ExitOnEnter          bool

	// Hardware
	Hardware      string
	FanGPIOPin    int
	GPIOChip      string
	I2CBus        string
	BME280Address uint16
}

// New builds the configuration from the environment, layered over the
// optional YAML file named by CONFIG_FILE.
func New() (*Config, error) {
	src := source{}

	if path, ok := os.LookupEnv(string(EnvConfigFile)); ok && path != "" {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}

		src.file = file
	}

	return src.build()
}

func (s source) build() (*Config, error) {
	// Get data directory
	dataDir := s.getString(EnvDataDir, "data")

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var logOutput io.Writer = os.Stdout

	if s.getBool(EnvLogToFile, false) {
		f, err := os.OpenFile(filepath.Join(dataDir, "app.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logOutput = f
	}

	c := &Config{
		Port:                 s.getInt(EnvPort, 8080),
		DataDir:              dataDir,
		LogLevel:             s.getLogLevel(EnvLogLevel, slog.LevelInfo),
		LogFormat:            strings.ToLower(s.getString(EnvLogFormat, "")),
		LogOutput:            logOutput,
		MQTTBrokerPort:       s.getInt(EnvMQTTBrokerPort, 1883),
		MQTTBroker:           s.getString(EnvMQTTBroker, "tcp://127.0.0.1:1883"),
		DeviceID:             s.getString(EnvDeviceID, "cheesecave-01"),
		MQTTUsername:         s.getString(EnvMQTTUsername, ""),
		MQTTPassword:         s.getString(EnvMQTTPassword, ""),
		TelemetryInterval:    s.getDuration(EnvTelemetryInterval, 5*time.Second),
		TwinTimeout:          s.getDuration(EnvTwinTimeout, 10*time.Second),
		RetryInitialInterval: s.getDuration(EnvRetryInitialInterval, time.Second),
		RetryMaxInterval:     s.getDuration(EnvRetryMaxInterval, time.Minute),
		ExitOnEnter:          s.getBool(EnvExitOnEnter, true),
		Hardware:             strings.ToLower(s.getString(EnvHardware, HardwareDevice)),
		FanGPIOPin:           s.getInt(EnvFanGPIOPin, 21),
		GPIOChip:             s.getString(EnvGPIOChip, ""),
		I2CBus:               s.getString(EnvI2CBus, "/dev/i2c-1"),
		BME280Address:        s.getUint16(EnvBME280Address, 0x77),
	}

	if raw := s.getString(EnvConnectionString, ""); raw != "" {
		cs, err := iothub.ParseConnectionString(raw)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("invalid %s: %w", EnvConnectionString, err)
		}

		c.ConnectionString = &cs
		c.MQTTBroker = cs.BrokerURL()
		c.DeviceID = cs.DeviceID
	}

	if err := c.validate(); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.Hardware {
	case HardwareDevice, HardwareSimulated:
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvHardware, HardwareDevice, HardwareSimulated, c.Hardware))
	}

	switch c.LogFormat {
	case "", LogFormatConsole, LogFormatJSON, LogFormatText:
	default:
		errs = append(errs, fmt.Errorf("%s must be console, json or text, got %q", EnvLogFormat, c.LogFormat))
	}

	if c.DeviceID == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDeviceID))
	}

	for key, d := range map[EnvKey]time.Duration{
		EnvTelemetryInterval:    c.TelemetryInterval,
		EnvTwinTimeout:          c.TwinTimeout,
		EnvRetryInitialInterval: c.RetryInitialInterval,
		EnvRetryMaxInterval:     c.RetryMaxInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	if c.RetryMaxInterval < c.RetryInitialInterval {
		errs = append(errs, fmt.Errorf("%s must not be below %s", EnvRetryMaxInterval, EnvRetryInitialInterval))
	}

	if c.FanGPIOPin < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", EnvFanGPIOPin))
	}

	return errors.Join(errs...)
}

func (c *Config) Close() error {
	if f, ok := c.LogOutput.(*os.File); ok {
		if f != os.Stdout && f != os.Stderr {
			return f.Close()
		}
	}

	return nil
}

// source resolves keys from the environment first, then from the config file.
type source struct {
	file map[string]string
}

func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}

		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}

	return out, nil
}

func (s source) lookup(key EnvKey) (string, bool) {
	if val, exists := os.LookupEnv(string(key)); exists {
		return val, true
	}

	val, exists := s.file[string(key)]

	return val, exists
}

func (s source) getString(key EnvKey, defaultVal string) string {
	val, exists := s.lookup(key)
	if !exists {
		return defaultVal
	}

	return val
}

func (s source) getBool(key EnvKey, defaultVal bool) bool {
	val, exists := s.lookup(key)
	if !exists {
		return defaultVal
	}

	switch strings.ToLower(val) {
	case "true", "1":
		return true
	default:
		return false
	}
}

func (s source) getInt(key EnvKey, defaultVal int) int {
	val, exists := s.lookup(key)
	if !exists {
		return defaultVal
	}

	if intVal, err := strconv.Atoi(val); err == nil {
		return intVal
	}

	return defaultVal
}

// getUint16 accepts decimal, 0x-prefixed hex and 0o/0-prefixed octal.
func (s source) getUint16(key EnvKey, defaultVal uint16) uint16 {
	val, exists := s.lookup(key)
	if !exists {
		return defaultVal
	}

	if n, err := strconv.ParseUint(val, 0, 16); err == nil {
		return uint16(n)
	}

	return defaultVal
}

func (s source) getDuration(key EnvKey, defaultVal time.Duration) time.Duration {
	val, exists := s.lookup(key)
	if !exists {
		return defaultVal
	}

	if d, err := time.ParseDuration(val); err == nil {
		return d
	}

	// Bare numbers are milliseconds.
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	return defaultVal
}

func (s source) getLogLevel(key EnvKey, defaultVal slog.Leveler) slog.Leveler {
	val, exists := s.lookup(key)
	if !exists {
		return defaultVal
	}

	switch strings.ToUpper(val) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}

	return defaultVal
}
