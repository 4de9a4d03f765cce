package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/smokewatch/internal/logger"
)

// Config holds the settings of the smokewatch binaries.
type Config struct {
	// HTTPAddress is the listen address of the HTTP API.
	HTTPAddress string `yaml:"http_addr" mapstructure:"http_addr"`
	// GRPCAddress is the listen address of the gRPC query service.
	GRPCAddress string `yaml:"grpc_addr" mapstructure:"grpc_addr"`
	// AlarmThreshold is the smoke level above which a device is in alarm.
	AlarmThreshold float64 `yaml:"alarm_threshold" mapstructure:"alarm_threshold"`
	// MaxHistory is the number of alarm transitions retained.
	MaxHistory int `yaml:"max_history" mapstructure:"max_history"`
	// Timeout bounds network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// LogLevel is a zap level name.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`
	// MQTT configures the optional broker subscription.
	MQTT MQTTConfig `yaml:"mqtt" mapstructure:"mqtt"`
}

// MQTTConfig configures the broker subscription. An empty BrokerURL disables it.
type MQTTConfig struct {
	BrokerURL         string `yaml:"broker_url"           mapstructure:"broker_url"`
	ClientID          string `yaml:"client_id"            mapstructure:"client_id"`
	Username          string `yaml:"username"             mapstructure:"username"`
	Password          string `yaml:"password"             mapstructure:"password"` //nolint:gosec // G101: config field.
	Topic             string `yaml:"topic"                mapstructure:"topic"`
	QoS               byte   `yaml:"qos"                  mapstructure:"qos"`
	DeviceIDFromTopic bool   `yaml:"device_id_from_topic" mapstructure:"device_id_from_topic"`
	DeviceIDSegment   int    `yaml:"device_id_segment"    mapstructure:"device_id_segment"`
}

// Enabled reports whether a broker is configured.
func (m *MQTTConfig) Enabled() bool {
	return m.BrokerURL != ""
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "smokewatch-settings.yaml"

	// DefaultHTTPAddress is the default HTTP listen address.
	DefaultHTTPAddress = ":3000"

	// DefaultGRPCAddress is the default gRPC listen address.
	DefaultGRPCAddress = ":50051"

	// DefaultAlarmThreshold is the default smoke alarm threshold.
	DefaultAlarmThreshold = 1800.0

	// DefaultMaxHistory is the default alarm log capacity.
	DefaultMaxHistory = 100

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultMQTTClientID is the default MQTT client id.
	DefaultMQTTClientID = "smokewatch"

	// DefaultMQTTTopic is the default telemetry subscription.
	DefaultMQTTTopic = "smoke/+/telemetry"

	// DefaultMQTTQoS is the default subscription QoS.
	DefaultMQTTQoS = 1

	// DefaultDeviceIDSegment is the topic level holding the device id.
	DefaultDeviceIDSegment = 1

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// envPrefix prefixes environment overrides, e.g. SMOKEWATCH_MQTT_BROKER_URL.
	envPrefix = "SMOKEWATCH"

	maxQoS = 2
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAddressRequired is returned when a listen address is missing.
	errAddressRequired = errors.New("listen address must be provided")
	// errInvalidThreshold is returned for NaN or infinite thresholds.
	errInvalidThreshold = errors.New("alarm threshold must be a finite number")
	// errInvalidQoS is returned for QoS values above 2.
	errInvalidQoS = errors.New("mqtt qos must be 0, 1 or 2")
	// errInvalidSegment is returned for a negative topic segment index.
	errInvalidSegment = errors.New("mqtt device id segment must not be negative")
	// errBrokerScheme is returned for broker URLs paho cannot dial.
	errBrokerScheme = errors.New("unsupported mqtt broker scheme")
	// errUnknownLogLevel is returned for level names zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
	// errUnknownLogFormat is returned for formats other than console and json.
	errUnknownLogFormat = errors.New("unknown log format")
)

//nolint:gochecknoglobals // Read-only lookup table.
var brokerSchemes = map[string]struct{}{
	"tcp": {}, "mqtt": {}, "ssl": {}, "tls": {}, "mqtts": {}, "ws": {}, "wss": {},
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		HTTPAddress:    DefaultHTTPAddress,
		GRPCAddress:    DefaultGRPCAddress,
		AlarmThreshold: DefaultAlarmThreshold,
		MaxHistory:     DefaultMaxHistory,
		Timeout:        DefaultTimeout,
		LogLevel:       DefaultLogLevel,
		LogFormat:      logger.FormatConsole,
		MQTT: MQTTConfig{
			ClientID:        DefaultMQTTClientID,
			Topic:           DefaultMQTTTopic,
			QoS:             DefaultMQTTQoS,
			DeviceIDSegment: DefaultDeviceIDSegment,
		},
	}
}

// Load reads settings from path with SMOKEWATCH_* environment overrides.
// A missing file is only tolerated at the default path.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	v := newViper()

	_, err := os.Stat(filepath.Clean(path))

	switch {
	case err == nil:
		v.SetConfigFile(filepath.Clean(path))

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// newViper returns a viper instance carrying every key with its default,
// so each key can be overridden from the environment.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	d := Default()
	v.SetDefault("http_addr", d.HTTPAddress)
	v.SetDefault("grpc_addr", d.GRPCAddress)
	v.SetDefault("alarm_threshold", d.AlarmThreshold)
	v.SetDefault("max_history", d.MaxHistory)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("mqtt.broker_url", d.MQTT.BrokerURL)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic", d.MQTT.Topic)
	v.SetDefault("mqtt.qos", d.MQTT.QoS)
	v.SetDefault("mqtt.device_id_from_topic", d.MQTT.DeviceIDFromTopic)
	v.SetDefault("mqtt.device_id_segment", d.MQTT.DeviceIDSegment)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills optional fields with defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if err := validateAddress("http", settings.HTTPAddress); err != nil {
		return err
	}

	if err := validateAddress("grpc", settings.GRPCAddress); err != nil {
		return err
	}

	if math.IsNaN(settings.AlarmThreshold) || math.IsInf(settings.AlarmThreshold, 0) {
		return errInvalidThreshold
	}

	if settings.MaxHistory <= 0 {
		settings.MaxHistory = DefaultMaxHistory
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	switch settings.LogFormat {
	case "":
		settings.LogFormat = logger.FormatConsole
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: %q", errUnknownLogFormat, settings.LogFormat)
	}

	return validateMQTT(&settings.MQTT)
}

func validateAddress(name, address string) error {
	if address == "" {
		return fmt.Errorf("%s: %w", name, errAddressRequired)
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		return fmt.Errorf("invalid %s address %q: %w", name, address, err)
	}

	return nil
}

func validateMQTT(m *MQTTConfig) error {
	if m.QoS > maxQoS {
		return errInvalidQoS
	}

	if m.DeviceIDSegment < 0 {
		return errInvalidSegment
	}

	if m.Topic == "" {
		m.Topic = DefaultMQTTTopic
	}

	if m.ClientID == "" {
		m.ClientID = DefaultMQTTClientID
	}

	if !m.Enabled() {
		return nil
	}

	u, err := url.Parse(m.BrokerURL)
	if err != nil {
		return fmt.Errorf("invalid mqtt broker url: %w", err)
	}

	if _, ok := brokerSchemes[strings.ToLower(u.Scheme)]; !ok {
		return fmt.Errorf("%w: %q", errBrokerScheme, u.Scheme)
	}

	return nil
}

// DialAddress turns a listen address into one a local client can dial:
// an empty or wildcard host becomes the loopback address.
func DialAddress(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
