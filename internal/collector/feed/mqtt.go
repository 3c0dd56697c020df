package feed

import (
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
)

const (
	defaultMqttConnectTimeout = 30 * time.Second
	mqttQos                   = 0
	mqttDisconnectQuiesceMs   = 250
)

type MqttFeed struct {
	*buffer
	client       mqtt.Client
	topic        string
	timeout      time.Duration
	unsubscribed atomic.Bool
}

func NewMqttFeed(config configuration.MqttConfig, bufferSize int) (*MqttFeed, error) {
	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultMqttConnectTimeout
	}
	f := &MqttFeed{
		buffer:  newBuffer(bufferSize),
		topic:   config.Topic,
		timeout: timeout,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", config.Host, config.Port)).
		SetClientID(config.ClientId).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetOnConnectHandler(f.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost; reconnecting")
		})
	if config.KeepAlive > 0 {
		opts.SetKeepAlive(config.KeepAlive)
	}
	f.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker %s:%d", config.Host, config.Port)
	if err := waitFor(f.client.Connect(), timeout); err != nil {
		return nil, errors.WithMessagef(err, "connecting to MQTT broker %s:%d", config.Host, config.Port)
	}
	return f, nil
}

// onConnect runs on the initial connection and on every reconnect, since a clean session drops subscriptions.
func (f *MqttFeed) onConnect(client mqtt.Client) {
	if f.unsubscribed.Load() {
		return
	}
	if err := waitFor(client.Subscribe(f.topic, mqttQos, f.onMessage), f.timeout); err != nil {
		log.WithError(err).WithField("topic", f.topic).Error("Failed to subscribe")
		return
	}
	log.WithField("topic", f.topic).Info("Subscribed")
}

func (f *MqttFeed) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if !f.push(msg.Payload()) {
		log.WithField("topic", msg.Topic()).Debug("Dropping message received after close")
	}
}

func (f *MqttFeed) Unsubscribe() error {
	f.unsubscribed.Store(true)
	return errors.WithMessagef(waitFor(f.client.Unsubscribe(f.topic), f.timeout), "unsubscribing from %s", f.topic)
}

func (f *MqttFeed) Close() error {
	f.close()
	f.client.Disconnect(mqttDisconnectQuiesceMs)
	return nil
}

func waitFor(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errors.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}
