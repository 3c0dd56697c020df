package feed

import (
	"context"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
)

// NatsFeed reports ErrClosed once the connection is closed for good, whether by Close or by the client giving up.
type NatsFeed struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	msgs     chan *nats.Msg
	done     chan struct{}
	doneOnce sync.Once
}

func NewNatsFeed(config configuration.NatsConfig, bufferSize int) (*NatsFeed, error) {
	if bufferSize < 1 {
		bufferSize = 1
	}
	f := &NatsFeed{
		msgs: make(chan *nats.Msg, bufferSize),
		done: make(chan struct{}),
	}
	servers := strings.Join(config.Servers, ",")
	conn, err := nats.Connect(servers,
		nats.Name("hass-event-collector"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("NATS reconnected to %s", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
			f.markDone()
		}))
	if err != nil {
		return nil, errors.WithMessagef(err, "connecting to NATS %s", servers)
	}
	f.conn = conn

	if config.Queue == "" {
		f.sub, err = conn.ChanSubscribe(config.Subject, f.msgs)
	} else {
		f.sub, err = conn.ChanQueueSubscribe(config.Subject, config.Queue, f.msgs)
	}
	if err != nil {
		conn.Close()
		return nil, errors.WithMessagef(err, "subscribing to %s", config.Subject)
	}
	// Make sure the server has registered the subscription before anything is published to it.
	if err := conn.Flush(); err != nil {
		conn.Close()
		return nil, errors.WithMessage(err, "flushing NATS subscription")
	}
	log.WithFields(log.Fields{"subject": config.Subject, "queue": config.Queue}).Info("Subscribed")
	return f, nil
}

func (f *NatsFeed) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return nil, ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return nil, ErrClosed
	case msg := <-f.msgs:
		return msg.Data, nil
	}
}

func (f *NatsFeed) Unsubscribe() error {
	return errors.WithMessage(f.sub.Unsubscribe(), "unsubscribing from NATS")
}

func (f *NatsFeed) Close() error {
	f.markDone()
	f.conn.Close()
	return nil
}

func (f *NatsFeed) markDone() {
	f.doneOnce.Do(func() {
		close(f.done)
	})
}
