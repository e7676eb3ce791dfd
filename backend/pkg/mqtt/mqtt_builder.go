package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"cheesecave/backend/pkg/utils"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// CredentialsProvider returns the username and password for the next (re)connect.
type CredentialsProvider func() (username string, password string, err error)

// MQTTBuilder provides a fluent API for registering MQTT publications and subscriptions.
type MQTTBuilder struct {
	client        mqtt.Client
	wrappedClient *MQTTClient
	l             *slog.Logger
	mu            sync.RWMutex
	operationIDs  map[string]struct{}
	publications  map[string]*PublicationSpec
	subscriptions map[string]*SubscriptionSpec
	connected     atomic.Bool

	runConnectOnce atomic.Bool
}

// MQTTClientOptions contains configuration for creating an MQTT client.
type MQTTClientOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// Credentials, when set, is asked for a username and password on every connect.
	// It takes precedence over Username and Password.
	Credentials CredentialsProvider
	TLSConfig   *tls.Config
	// ConnectRetryInterval is the wait between initial connect attempts (default 5s).
	ConnectRetryInterval time.Duration
}

var pahoLogOnce sync.Once

// routePahoLogs sends paho's internal error and critical logs through slog.
func routePahoLogs(l *slog.Logger) {
	pahoLogOnce.Do(func() {
		mqtt.ERROR = log.New(utils.NewSlogWriter(l, slog.LevelError), "[paho] ", 0)
		mqtt.CRITICAL = log.New(utils.NewSlogWriter(l, slog.LevelError), "[paho] ", 0)
	})
}

// NewMQTTBuilder creates a new MQTT builder with the given broker configuration.
func NewMQTTBuilder(l *slog.Logger, opts MQTTClientOptions) (*MQTTBuilder, error) {
	l = l.With(slog.String("component", "mqtt-builder"))

	if opts.BrokerURL == "" {
		return nil, errors.New("broker URL is required")
	}

	if opts.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	routePahoLogs(l)

	mb := &MQTTBuilder{
		l:             l,
		operationIDs:  make(map[string]struct{}),
		publications:  make(map[string]*PublicationSpec),
		subscriptions: make(map[string]*SubscriptionSpec),
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	// IoT-hub style brokers only speak 3.1.1
	clientOpts.SetProtocolVersion(4)
	clientOpts.SetCleanSession(true)

	if opts.Credentials != nil {
		clientOpts.SetCredentialsProvider(func() (string, string) {
			user, pass, err := opts.Credentials()
			if err != nil {
				l.Error("Failed to build MQTT credentials", utils.ErrAttr(err))
			}

			return user, pass
		})
	} else {
		if opts.Username != "" {
			clientOpts.SetUsername(opts.Username)
		}

		if opts.Password != "" {
			clientOpts.SetPassword(opts.Password)
		}
	}

	if opts.TLSConfig != nil {
		clientOpts.SetTLSConfig(opts.TLSConfig)
	}

	retryInterval := opts.ConnectRetryInterval
	if retryInterval <= 0 {
		retryInterval = 5 * time.Second
	}

	// Retry every 5 seconds, max interval 15 seconds
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectTimeout(5 * time.Second)
	clientOpts.SetConnectRetryInterval(retryInterval)
	clientOpts.SetMaxReconnectInterval(15 * time.Second)
	clientOpts.SetKeepAlive(30 * time.Second)
	// Handlers may publish and wait on other handlers.
	clientOpts.SetOrderMatters(false)

	clientOpts.SetOnConnectHandler(mb.onConnect)
	clientOpts.SetConnectionLostHandler(mb.onConnectionLost)
	clientOpts.SetReconnectingHandler(mb.onReconnecting)

	mb.client = mqtt.NewClient(clientOpts)
	mb.wrappedClient = &MQTTClient{
		client:  mb.client,
		builder: mb,
	}

	l.Info("MQTT builder created", slog.String("broker", opts.BrokerURL), slog.String("clientID", opts.ClientID))

	return mb, nil
}

// Client returns the wrapped MQTT client.
func (mb *MQTTBuilder) Client() *MQTTClient {
	return mb.wrappedClient
}

// RegisterPublish registers a publication operation.
func (mb *MQTTBuilder) RegisterPublish(topic string, spec PublicationSpec) error {
	if mb.runConnectOnce.Load() {
		return errors.New("cannot register publication after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validatePublicationSpec(spec); err != nil {
		return fmt.Errorf("invalid publication spec: %w", err)
	}

	if err := validateParameters(topic, spec.TopicParameters); err != nil {
		return fmt.Errorf("invalid topic parameters in operationID %s: %w", spec.OperationID, err)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.TopicMQTT = convertTopicToMQTT(topic)
	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.publications[spec.OperationID] = &spec

	mb.l.Info("Registered MQTT publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic), slog.String("group", spec.Group))

	return nil
}

// MustRegisterPublish registers a publication operation and terminates the program if an error occurs.
func (mb *MQTTBuilder) MustRegisterPublish(topic string, spec PublicationSpec) {
	if err := mb.RegisterPublish(topic, spec); err != nil {
		mb.l.Error("Failed to register publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// RegisterSubscribe registers a subscription operation.
func (mb *MQTTBuilder) RegisterSubscribe(topic string, spec SubscriptionSpec) error {
	if mb.runConnectOnce.Load() {
		return errors.New("cannot register subscription after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validateSubscriptionSpec(spec); err != nil {
		return fmt.Errorf("invalid subscription spec: %w", err)
	}

	if err := validateParameters(topic, spec.TopicParameters); err != nil {
		return fmt.Errorf("invalid topic parameters in operationID %s: %w", spec.OperationID, err)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.TopicMQTT = convertTopicToMQTT(topic)
	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.subscriptions[spec.OperationID] = &spec

	mb.l.Info("Registered MQTT subscription", slog.String("operationID", spec.OperationID), slog.String("topic", spec.TopicMQTT), slog.String("group", spec.Group))

	return nil
}

// MustRegisterSubscribe registers a subscription operation and terminates the program if an error occurs.
func (mb *MQTTBuilder) MustRegisterSubscribe(topic string, spec SubscriptionSpec) {
	if err := mb.RegisterSubscribe(topic, spec); err != nil {
		mb.l.Error("Failed to register subscription", slog.String("operationID", spec.OperationID), slog.String("topic", topic), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// Connect connects to the MQTT broker, waiting until the first connection completes.
// Subscriptions are (re)established on every successful connect.
func (mb *MQTTBuilder) Connect() error {
	mb.runConnectOnce.Store(true)

	mb.l.Info("Connecting to MQTT broker... Will wait indefinitely for connection to complete")

	token := mb.client.Connect()

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if mb.client.IsConnectionOpen() {
					return
				}
				mb.l.Warn("MQTT has not done an initial connection yet, still waiting...")
			}
		}
	}()

	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	mb.l.Info("Connected to MQTT broker")

	return nil
}

// Connected reports whether the client currently holds a live connection.
func (mb *MQTTBuilder) Connected() bool {
	return mb.connected.Load()
}

// Disconnect disconnects from the MQTT broker. A connect still in progress is
// aborted, which makes Connect return an error.
func (mb *MQTTBuilder) Disconnect() {
	if !mb.runConnectOnce.Load() {
		return
	}

	mb.l.Info("Disconnecting from MQTT broker...")
	mb.client.Disconnect(250) // 250ms grace period
	mb.connected.Store(false)
	mb.l.Info("Disconnected from MQTT broker")
}

func (mb *MQTTBuilder) onConnect(client mqtt.Client) {
	mb.mu.RLock()
	subs := make([]*SubscriptionSpec, 0, len(mb.subscriptions))
	for _, spec := range mb.subscriptions {
		subs = append(subs, spec)
	}
	mb.mu.RUnlock()

	mb.l.Info("Connected to MQTT broker, subscribing to topics", slog.Int("subscriptionCount", len(subs)))
	mb.connected.Store(true)

	for _, spec := range subs {
		token := client.Subscribe(spec.TopicMQTT, byte(spec.QoS), spec.Handler)
		token.Wait()

		if err := token.Error(); err != nil {
			mb.l.Error("Failed to subscribe", slog.String("topic", spec.TopicMQTT), slog.String("operationID", spec.OperationID), utils.ErrAttr(err))
			continue
		}

		mb.l.Info("Subscribed", slog.String("topic", spec.TopicMQTT), slog.String("operationID", spec.OperationID))
	}
}

func (mb *MQTTBuilder) onConnectionLost(_ mqtt.Client, err error) {
	mb.l.Warn("Connection to MQTT broker lost", utils.ErrAttr(err))
	mb.connected.Store(false)
}

func (mb *MQTTBuilder) onReconnecting(_ mqtt.Client, opts *mqtt.ClientOptions) {
	mb.l.Info("Reconnecting to MQTT broker", slog.String("broker", opts.Servers[0].String()))
}
