package configuration

import (
	"time"

	"github.com/mcronce/hass-event-collector/internal/collector/filter"
)

const (
	FeedTypeMqtt   = "mqtt"
	FeedTypeNats   = "nats"
	FeedTypePulsar = "pulsar"
)

type CollectorConfiguration struct {
	// Logrus level name
	LogLevel string `validate:"omitempty,oneof=trace debug info warn warning error"`
	// Number of concurrent workers draining the event queue
	Workers int `validate:"min=1,max=255"`
	// What happens to entities EntityFilter does not match
	DefaultFilter filter.DefaultFilter
	// Exceptions to DefaultFilter, as a JSON array of {"kind", "name"} rules
	EntityFilter filter.EntityFilter
	// Port serving /metrics; 0 disables it
	MetricsPort uint16
	Metadata    MetadataConfig
	Hass        HassConfig
	Feed        FeedConfig
	// If URL is empty, points are logged rather than written
	InfluxDB InfluxDBConfig
}

type MetadataConfig struct {
	RefreshInterval        time.Duration `validate:"required"`
	MaxConsecutiveFailures int           `validate:"min=0"`
}

// HassConfig locates the Home Assistant websocket API the metadata registries are read from.
type HassConfig struct {
	Host string `validate:"required"`
	Port uint16 `validate:"required"`
	// Long-lived access token
	Token  string `validate:"required"`
	Secure bool
	// Applies to the dial and to each registry command
	Timeout time.Duration
}

// FeedConfig selects the transport events arrive on. Only the section named by Type is validated.
type FeedConfig struct {
	Type   string       `validate:"oneof=mqtt nats pulsar"`
	Mqtt   MqttConfig   `validate:"-"`
	Nats   NatsConfig   `validate:"-"`
	Pulsar PulsarConfig `validate:"-"`
}

type MqttConfig struct {
	Host           string `validate:"required"`
	Port           uint16 `validate:"required"`
	Topic          string `validate:"required"`
	ClientId       string `validate:"required"`
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

type NatsConfig struct {
	Servers []string `validate:"required,min=1"`
	Subject string   `validate:"required"`
	// Queue group shared by collector replicas; empty subscribes without one
	Queue string
}

type PulsarConfig struct {
	URL          string `validate:"required"`
	Topic        string `validate:"required"`
	Subscription string `validate:"required"`
}

type InfluxDBConfig struct {
	URL     string
	Token   string `validate:"required_with=URL"`
	Org     string `validate:"required_with=URL"`
	Bucket  string `validate:"required_with=URL"`
	Timeout time.Duration
}
