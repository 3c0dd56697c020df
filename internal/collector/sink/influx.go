// Package sink persists points built by the pipeline.
package sink

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
	"github.com/mcronce/hass-event-collector/internal/collector/model"
)

const defaultInfluxTimeout = 10 * time.Second

// InfluxSink writes each point synchronously through the blocking write API.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

func NewInfluxSink(config configuration.InfluxDBConfig) *InfluxSink {
	options := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(requestTimeoutSeconds(config.Timeout))
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, options)
	log.Infof("Writing points to InfluxDB at %s, bucket %s", config.URL, config.Bucket)
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(config.Org, config.Bucket),
	}
}

// requestTimeoutSeconds rounds up to whole seconds, since the client reads zero as no timeout.
func requestTimeoutSeconds(timeout time.Duration) uint {
	if timeout <= 0 {
		timeout = defaultInfluxTimeout
	}
	return uint((timeout + time.Second - 1) / time.Second)
}

func (s *InfluxSink) Write(ctx context.Context, point *model.Point) error {
	p := influxdb2.NewPoint(point.Measurement, point.Tags, point.Fields, point.Time)
	return errors.WithStack(s.writer.WritePoint(ctx, p))
}

// Ping reports whether the server is reachable.
func (s *InfluxSink) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if !ok {
		return errors.New("influxdb ping failed")
	}
	return nil
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
