package mqtt

import "time"

// Config holds MQTT subscriber configuration.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string //nolint:gosec // G101: config field name, not a credential.
	Topic     string
	QoS       byte
	// DeviceIDFromTopic fills a missing payload device id from the topic.
	DeviceIDFromTopic bool
	// DeviceIDSegment is the zero-based topic level holding the device id.
	DeviceIDSegment int
	ConnectTimeout  time.Duration
}
