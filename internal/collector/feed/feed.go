// Package feed subscribes to the transport Home Assistant publishes state_changed events on.
package feed

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
	"github.com/mcronce/hass-event-collector/internal/collector/pipeline"
)

// ErrClosed is returned by Receive once the feed has been closed.
var ErrClosed = pipeline.ErrFeedClosed

// Subscription is a pipeline.Feed that owns a transport connection.
type Subscription interface {
	pipeline.Feed
	Close() error
}

// New connects to the transport named by config.Type. bufferSize bounds how many payloads are held between the
// transport client and Receive.
func New(config configuration.FeedConfig, bufferSize int) (Subscription, error) {
	switch config.Type {
	case configuration.FeedTypeMqtt:
		return NewMqttFeed(config.Mqtt, bufferSize)
	case configuration.FeedTypeNats:
		return NewNatsFeed(config.Nats, bufferSize)
	case configuration.FeedTypePulsar:
		return NewPulsarFeed(config.Pulsar, bufferSize)
	default:
		return nil, errors.Errorf("unknown feed type %q", config.Type)
	}
}

// buffer hands payloads from a client callback to Receive. push blocks while the buffer is full, so a slow
// pipeline stalls the callback rather than growing memory.
type buffer struct {
	payloads  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newBuffer(size int) *buffer {
	if size < 1 {
		size = 1
	}
	return &buffer{
		payloads: make(chan []byte, size),
		done:     make(chan struct{}),
	}
}

// push reports false if the buffer was closed before the payload could be queued.
func (b *buffer) push(payload []byte) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.payloads <- payload:
		return true
	case <-b.done:
		return false
	}
}

// Receive returns ErrClosed after close even if payloads are still buffered.
func (b *buffer) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-b.done:
		return nil, ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	case payload := <-b.payloads:
		return payload, nil
	}
}

func (b *buffer) close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}
