// Package collector wires the event feed, the metadata registry and the sink together and runs them until
// shutdown.
package collector

import (
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
	"github.com/mcronce/hass-event-collector/internal/collector/feed"
	"github.com/mcronce/hass-event-collector/internal/collector/hass"
	"github.com/mcronce/hass-event-collector/internal/collector/metadata"
	"github.com/mcronce/hass-event-collector/internal/collector/metrics"
	"github.com/mcronce/hass-event-collector/internal/collector/pipeline"
	"github.com/mcronce/hass-event-collector/internal/collector/sink"
	"github.com/mcronce/hass-event-collector/internal/common"
	"github.com/mcronce/hass-event-collector/internal/common/app"
	"github.com/mcronce/hass-event-collector/internal/common/health"
	"github.com/mcronce/hass-event-collector/internal/common/logging"
)

// BackgroundTask runs until ctx is cancelled, returning an error if it stops for any other reason.
type BackgroundTask interface {
	Run(ctx context.Context) error
}

type closableSink interface {
	pipeline.Sink
	io.Closer
}

// metadataSource is the Home Assistant connection the registries are loaded and refreshed through.
type metadataSource interface {
	metadata.Fetcher
	io.Closer
}

// feedFactory subscribes to the event feed. It is only called once the initial metadata has loaded.
type feedFactory func(config configuration.FeedConfig, bufferSize int) (feed.Subscription, error)

// Run starts the collector and blocks until a shutdown signal, a fatal metadata refresh failure, or the feed
// terminating. Failing to load the initial metadata snapshot is an error and nothing is started.
func Run(config *configuration.CollectorConfiguration) error {
	log.Info("Event collector starting")
	if err := common.SetLogLevel(config.LogLevel); err != nil {
		return errors.WithMessagef(err, "invalid log level %q", config.LogLevel)
	}

	ctx, cancel := app.CreateCancellableContextWithShutdown(context.Background())
	defer cancel()

	hassClient, err := hass.Dial(ctx, config.Hass)
	if err != nil {
		return errors.WithMessage(err, "connecting to Home Assistant")
	}
	return start(ctx, config, hassClient, metrics.Get(), feed.New)
}

func start(
	ctx context.Context,
	config *configuration.CollectorConfiguration,
	source metadataSource,
	m *metrics.Metrics,
	newFeed feedFactory,
) error {
	closers := []io.Closer{source}

	snapshot, err := metadata.Load(ctx, source)
	if err != nil {
		closeAll(closers)
		return errors.WithMessage(err, "loading initial metadata")
	}
	log.WithFields(log.Fields{
		"entities": snapshot.NumEntities(),
		"devices":  snapshot.NumDevices(),
		"areas":    snapshot.NumAreas(),
	}).Info("Loaded metadata")
	m.SetRegistrySize(snapshot.NumEntities(), snapshot.NumDevices(), snapshot.NumAreas())
	registry := metadata.NewRegistry(snapshot)
	refresher := metadata.NewRefresher(source, registry, config.Metadata.RefreshInterval, config.Metadata.MaxConsecutiveFailures, m)

	out := newSink(ctx, config.InfluxDB)
	closers = append(closers, out)

	processor := pipeline.NewProcessor(config.EntityFilter, config.DefaultFilter, registry, out, m)
	p := pipeline.New(config.Workers, processor, m)

	shutdownMetricServer := common.ServeMetrics(config.MetricsPort, health.NewMultiChecker(refresher, p))
	defer shutdownMetricServer()

	sub, err := newFeed(config.Feed, p.Capacity())
	if err != nil {
		closeAll(closers)
		return errors.WithMessagef(err, "subscribing to %s feed", config.Feed.Type)
	}
	closers = append([]io.Closer{sub}, closers...)

	return Coordinate(ctx, sub, p, refresher, closers...)
}

func newSink(ctx context.Context, config configuration.InfluxDBConfig) closableSink {
	if config.URL == "" {
		log.Warn("No InfluxDB URL configured; points will only be logged")
		return sink.NewLogSink(log.StandardLogger())
	}
	influx := sink.NewInfluxSink(config)
	if err := influx.Ping(ctx); err != nil {
		logging.StdWithStacktrace(err).Warn("InfluxDB is not reachable yet")
	}
	return influx
}

// Coordinate starts the workers, then pumps the feed and runs the refresher until ctx is cancelled or either of
// them fails. Shutdown unsubscribes from the feed, lets the workers drain the queue and finally closes closers.
// The error that caused the shutdown is returned; nil if ctx was cancelled.
func Coordinate(ctx context.Context, sub pipeline.Feed, p *pipeline.Pipeline, refresher BackgroundTask, closers ...io.Closer) error {
	p.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Pump(gctx, sub)
	})
	g.Go(func() error {
		return refresher.Run(gctx)
	})
	runErr := g.Wait()
	if runErr != nil {
		logging.StdWithStacktrace(runErr).Error("Shutting down")
	} else {
		log.Info("Shutting down")
	}

	if err := sub.Unsubscribe(); err != nil {
		logging.StdWithStacktrace(err).Warn("Failed to unsubscribe from feed")
	}
	p.Close()
	p.Wait()
	log.Info("All workers finished")

	closeAll(closers)
	return runErr
}

func closeAll(closers []io.Closer) {
	var result *multierror.Error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		log.WithError(err).Warn("Failed to close cleanly")
	}
}
