package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/common/logging"
)

var (
	// ErrFeedClosed is returned by a Feed whose underlying subscription has gone away for good.
	ErrFeedClosed = errors.New("feed closed")
	// ErrFeedTerminated is returned by Pump when it stops for any reason other than ctx being cancelled.
	ErrFeedTerminated = errors.New("feed handler terminated")
)

// Feed supplies raw message payloads from the transport.
type Feed interface {
	// Receive blocks until a payload is available or ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	Unsubscribe() error
}

// DefaultReceiveErrorBackoff is how long Pump waits after a transient receive error.
const DefaultReceiveErrorBackoff = time.Second

// Pump moves payloads from feed into the pipeline until ctx is cancelled, in which case it returns nil. A closed
// feed or pipeline ends the pump with ErrFeedTerminated; other receive errors are logged and the pump continues.
func (p *Pipeline) Pump(ctx context.Context, feed Feed) error {
	return p.pump(ctx, feed, DefaultReceiveErrorBackoff)
}

func (p *Pipeline) pump(ctx context.Context, feed Feed, backoff time.Duration) error {
	for {
		payload, err := feed.Receive(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, ErrFeedClosed) {
				return errors.WithMessage(ErrFeedTerminated, err.Error())
			}
			logging.StdWithStacktrace(err).Error("Error receiving from feed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}

		if err := p.Submit(ctx, payload); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Error("Send channel has closed; terminating")
			return errors.WithMessage(ErrFeedTerminated, err.Error())
		}
	}
}
