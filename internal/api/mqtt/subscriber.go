package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
	"github.com/oshokin/smokewatch/internal/ingest"
	"github.com/oshokin/smokewatch/internal/logger"
)

// disconnectQuiesce is how long Stop lets in-flight work finish, in milliseconds.
const disconnectQuiesce = 250

// errNotConnected is reported by Health while the broker connection is down.
var errNotConnected = errors.New("not connected to MQTT broker")

// Service abstracts the ingestion operations the subscriber depends on.
type Service interface {
	Ingest(ctx context.Context, payload map[string]any, source telemetry.Source) telemetry.DeviceRecord
	RejectPayload(ctx context.Context, source telemetry.Source, err error)
}

// Subscriber consumes telemetry messages from a broker.
type Subscriber struct {
	// ctx carries the logger used by paho callbacks.
	ctx context.Context //nolint:containedctx // Callbacks have no context of their own.
	// cfg is the subscription configuration.
	cfg Config
	// service receives decoded payloads.
	service Service

	// mu guards client.
	mu sync.RWMutex
	// client is nil until Start.
	client pahomqtt.Client
}

// NewSubscriber creates a subscriber. Nothing connects until Start.
func NewSubscriber(ctx context.Context, cfg Config, service Service) *Subscriber {
	return &Subscriber{
		ctx:     logger.WithName(ctx, "mqtt"),
		cfg:     cfg,
		service: service,
	}
}

// Start connects to the broker. Connection failures are logged and retried in
// the background, so Start only waits up to the connect timeout.
func (s *Subscriber) Start() {
	routeLibraryLogs(s.ctx)

	opts := pahomqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost).
		SetReconnectingHandler(s.onReconnecting)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	client := pahomqtt.NewClient(opts)

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	token := client.Connect()

	switch {
	case !token.WaitTimeout(s.cfg.ConnectTimeout):
		logger.WarnKV(s.ctx, "MQTT connection timed out, retrying in background", "broker_url", s.cfg.BrokerURL)
	case token.Error() != nil:
		logger.WarnKV(s.ctx, "MQTT connection failed, retrying in background",
			"broker_url", s.cfg.BrokerURL,
			"error", token.Error(),
		)
	}
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return
	}

	client.Disconnect(disconnectQuiesce)
	logger.Info(s.ctx, "MQTT disconnected")
}

// Health reports whether the broker connection is currently open.
func (s *Subscriber) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.client == nil || !s.client.IsConnectionOpen() {
		return errNotConnected
	}

	return nil
}

// onConnect subscribes on every (re)connect since the session is not persistent.
func (s *Subscriber) onConnect(client pahomqtt.Client) {
	logger.InfoKV(s.ctx, "MQTT connected", "broker_url", s.cfg.BrokerURL)

	token := client.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage)

	switch {
	case !token.WaitTimeout(s.cfg.ConnectTimeout):
		logger.WarnKV(s.ctx, "MQTT subscribe timed out", "topic", s.cfg.Topic)
	case token.Error() != nil:
		logger.ErrorKV(s.ctx, "MQTT subscribe failed", "topic", s.cfg.Topic, "error", token.Error())
	default:
		logger.InfoKV(s.ctx, "MQTT subscribed", "topic", s.cfg.Topic, "qos", s.cfg.QoS)
	}
}

func (s *Subscriber) onConnectionLost(_ pahomqtt.Client, err error) {
	logger.WarnKV(s.ctx, "MQTT connection lost", "error", err)
}

func (s *Subscriber) onReconnecting(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
	logger.DebugKV(s.ctx, "MQTT reconnecting", "broker_url", s.cfg.BrokerURL)
}

// handleMessage decodes one message and ingests it. Undecodable messages are discarded.
func (s *Subscriber) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	ctx := s.ctx

	payload, err := ingest.Decode(msg.Payload(), "")
	if err != nil {
		s.service.RejectPayload(ctx, telemetry.SourceMQTT, err)
		return
	}

	if s.cfg.DeviceIDFromTopic && !ingest.HasDeviceID(payload) {
		if id, ok := topicSegment(msg.Topic(), s.cfg.DeviceIDSegment); ok {
			payload["device_id"] = id
		}
	}

	s.service.Ingest(ctx, payload, telemetry.SourceMQTT)
}

// topicSegment returns the non-empty topic level at index.
func topicSegment(topic string, index int) (string, bool) {
	if index < 0 {
		return "", false
	}

	levels := strings.Split(topic, "/")
	if index >= len(levels) {
		return "", false
	}

	segment := strings.TrimSpace(levels[index])
	if segment == "" {
		return "", false
	}

	return segment, true
}
