package configuration

import (
	commonconfig "github.com/mcronce/hass-event-collector/internal/common/config"
)

func (c CollectorConfiguration) Validate() error {
	if err := commonconfig.Validate(c); err != nil {
		return err
	}
	return c.Feed.validateSelected()
}

func (c FeedConfig) validateSelected() error {
	switch c.Type {
	case FeedTypeMqtt:
		return commonconfig.Validate(c.Mqtt)
	case FeedTypeNats:
		return commonconfig.Validate(c.Nats)
	case FeedTypePulsar:
		return commonconfig.Validate(c.Pulsar)
	}
	return nil
}
