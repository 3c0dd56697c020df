package feed

import (
	"context"
	"sync/atomic"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
)

// PulsarFeed consumes a shared subscription. Messages are acknowledged as soon as they are received, so delivery
// is at most once.
type PulsarFeed struct {
	client   pulsar.Client
	consumer pulsar.Consumer
	closed   atomic.Bool
}

func NewPulsarFeed(config configuration.PulsarConfig, bufferSize int) (*PulsarFeed, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: config.URL})
	if err != nil {
		return nil, errors.WithMessagef(err, "creating pulsar client for %s", config.URL)
	}

	log.Infof("Creating subscription %s to pulsar topic %s", config.Subscription, config.Topic)
	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:             config.Topic,
		SubscriptionName:  config.Subscription,
		Type:              pulsar.Shared,
		ReceiverQueueSize: bufferSize,
	})
	if err != nil {
		client.Close()
		return nil, errors.WithMessagef(err, "subscribing to %s", config.Topic)
	}
	return &PulsarFeed{client: client, consumer: consumer}, nil
}

func (f *PulsarFeed) Receive(ctx context.Context) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	msg, err := f.consumer.Receive(ctx)
	if err != nil {
		if f.closed.Load() {
			return nil, ErrClosed
		}
		return nil, errors.WithStack(err)
	}
	f.consumer.Ack(msg)
	return msg.Payload(), nil
}

func (f *PulsarFeed) Unsubscribe() error {
	return errors.WithMessage(f.consumer.Unsubscribe(), "unsubscribing from pulsar")
}

func (f *PulsarFeed) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.consumer.Close()
		f.client.Close()
	}
	return nil
}
